// sweep.go — сервис периодической очистки вытесненных версий.
//
// Вытесненная версия хранится до expires_at, затем sweep удаляет
// файл с диска и запись из БД. Актуальные версии не затрагиваются:
// у них expires_at всегда NULL.
//
// Запускается как горутина с периодическим тикером (DM_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/docstore/document-module/internal/repository"
)

// Prometheus метрики sweep
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_sweep_runs_total",
		Help: "Общее количество запусков очистки",
	})

	sweepDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_sweep_deleted_total",
		Help: "Общее количество удалённых очисткой документов",
	})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_sweep_errors_total",
		Help: "Общее количество ошибок при очистке",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dm_sweep_duration_seconds",
		Help:    "Длительность выполнения очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// DeletedCount — количество удалённых документов
	DeletedCount int
	// Errors — количество ошибок при обработке записей
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// SweepService — сервис очистки истёкших вытесненных версий.
type SweepService struct {
	repo     repository.DocumentRepository
	store    FileStore
	clock    Clock
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewSweepService создаёт сервис очистки.
func NewSweepService(
	repo repository.DocumentRepository,
	store FileStore,
	clock Clock,
	interval time.Duration,
	logger *slog.Logger,
) *SweepService {
	return &SweepService{
		repo:     repo,
		store:    store,
		clock:    clock,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweep")),
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (s *SweepService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(sweepCtx)

	s.logger.Info("Очистка запущена",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновый процесс очистки.
func (s *SweepService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (s *SweepService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: mutex защищает от параллельного запуска
// (тикер + ручной запуск через API).
//
// Ошибка обработки одной записи не прерывает цикл: остальные
// записи обрабатываются, ошибки считаются и логируются.
// Повторный запуск над теми же данными — no-op.
func (s *SweepService) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}
	now := s.clock.Now()

	s.logger.Debug("Очистка начата")
	sweepRunsTotal.Inc()

	expired, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		s.logger.Error("Ошибка выборки истёкших документов",
			slog.String("error", err.Error()),
		)
		sweepErrorsTotal.Inc()
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	for _, doc := range expired {
		// Сначала файл: при ошибке запись остаётся, удалим в следующий раз
		if err := s.store.Delete(doc.StoragePath); err != nil {
			s.logger.Warn("Не удалось удалить файл истёкшего документа",
				slog.String("document_id", doc.ID),
				slog.String("storage_path", doc.StoragePath),
				slog.String("error", err.Error()),
			)
			sweepErrorsTotal.Inc()
			result.Errors++
			continue
		}

		if err := s.repo.Delete(ctx, doc.ID); err != nil {
			s.logger.Warn("Не удалось удалить запись истёкшего документа",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()),
			)
			sweepErrorsTotal.Inc()
			result.Errors++
			continue
		}

		sweepDeletedTotal.Inc()
		result.DeletedCount++
		s.logger.Debug("Истёкший документ удалён",
			slog.String("document_id", doc.ID),
			slog.String("owner_id", doc.OwnerID),
			slog.String("document_type", doc.DocumentType),
		)
	}

	result.Duration = time.Since(start)
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if result.DeletedCount > 0 || result.Errors > 0 {
		s.logger.Info("Очистка завершена",
			slog.Int("deleted", result.DeletedCount),
			slog.Int("errors", result.Errors),
			slog.String("duration", result.Duration.String()),
		)
	}

	return result
}
