// health.go — обработчики health-проверок и метрик Document Module.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturkryukov/docstore/document-module/internal/config"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	CheckReady() (status string, message string)
}

// HealthHandler — обработчик health-проверок.
type HealthHandler struct {
	pgChecker   ReadinessChecker
	kcChecker   ReadinessChecker
	promHandler http.Handler
	logger      *slog.Logger
}

// NewHealthHandler создаёт обработчик health-проверок.
func NewHealthHandler(pgChecker, kcChecker ReadinessChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		pgChecker:   pgChecker,
		kcChecker:   kcChecker,
		promHandler: promhttp.Handler(),
		logger:      logger.With(slog.String("component", "health_handler")),
	}
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Service   string                       `json:"service"`
	Version   string                       `json:"version"`
	Timestamp string                       `json:"timestamp"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

// HealthLive — liveness probe. Процесс жив и отвечает на запросы.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Service:   "document-module",
		Version:   config.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthReady — readiness probe. Проверяет доступность PostgreSQL и Keycloak.
// При отказе критической зависимости возвращает 503.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]healthCheckResult)

	pgStatus, pgMessage := h.pgChecker.CheckReady()
	checks["postgresql"] = healthCheckResult{Status: pgStatus, Message: pgMessage}

	kcStatus, kcMessage := h.kcChecker.CheckReady()
	checks["keycloak"] = healthCheckResult{Status: kcStatus, Message: kcMessage}

	overall := overallStatus(pgStatus, kcStatus)

	httpStatus := http.StatusOK
	if overall == "fail" {
		httpStatus = http.StatusServiceUnavailable
		h.logger.Warn("Readiness проверка не пройдена",
			slog.String("postgresql", pgStatus),
			slog.String("keycloak", kcStatus),
		)
	}

	writeJSON(w, httpStatus, healthReadyResponse{
		Status:    overall,
		Service:   "document-module",
		Version:   config.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// GetMetrics — endpoint Prometheus метрик.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus агрегирует статусы проверок: fail > degraded > ok.
func overallStatus(statuses ...string) string {
	overall := "ok"
	for _, s := range statuses {
		switch s {
		case "fail":
			return "fail"
		case "degraded":
			overall = "degraded"
		}
	}
	return overall
}
