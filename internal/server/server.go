// Пакет server — HTTP-сервер Document Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/docstore/document-module/internal/api/handlers"
	"github.com/arturkryukov/docstore/document-module/internal/api/middleware"
	"github.com/arturkryukov/docstore/document-module/internal/api/openapi"
	"github.com/arturkryukov/docstore/document-module/internal/config"
)

// Server — HTTP-сервер Document Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) (*Server, error) {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth, "/health/", "/metrics", "/api/v1/openapi.json"))
	}

	openapiHandler, err := openapi.Handler()
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки OpenAPI-контракта: %w", err)
	}

	// Системные endpoints
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)
	router.Get("/api/v1/openapi.json", openapiHandler)

	// Документы
	router.Route("/api/v1/documents", func(r chi.Router) {
		r.Post("/", handler.SubmitDocument)
		r.Get("/current", handler.ListCurrent)
		r.Get("/history/{type}", handler.ListHistory)
		r.Get("/{id}", handler.GetDocument)
		r.Get("/{id}/file", handler.DownloadDocument)

		// Операции проверяющего
		if jwtAuth != nil {
			r.With(middleware.RequireAdmin()).Get("/pending", handler.ListPending)
			r.With(middleware.RequireAdmin()).Post("/{id}/approve", handler.ApproveDocument)
			r.With(middleware.RequireAdmin()).Post("/{id}/reject", handler.RejectDocument)
		} else {
			r.Get("/pending", handler.ListPending)
			r.Post("/{id}/approve", handler.ApproveDocument)
			r.Post("/{id}/reject", handler.RejectDocument)
		}
	})

	// Обслуживание
	if jwtAuth != nil {
		router.With(middleware.RequireAdmin()).Post("/api/v1/maintenance/sweep", handler.RunSweep)
	} else {
		router.Post("/api/v1/maintenance/sweep", handler.RunSweep)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}, nil
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без JWT.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			jwtMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
