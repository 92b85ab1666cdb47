// documents.go — сервис жизненного цикла документов.
// Подача, одобрение с вытеснением прежней версии, отклонение с
// немедленным удалением, списки и скачивание файлов.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/docstore/document-module/internal/domain/model"
	"github.com/arturkryukov/docstore/document-module/internal/repository"
	"github.com/arturkryukov/docstore/document-module/internal/storage"
)

// Prometheus метрики жизненного цикла документов
var (
	documentsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_documents_submitted_total",
		Help: "Общее количество поданных документов",
	})

	documentsApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_documents_approved_total",
		Help: "Общее количество одобренных документов",
	})

	documentsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_documents_rejected_total",
		Help: "Общее количество отклонённых документов",
	})

	documentsSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_documents_superseded_total",
		Help: "Общее количество вытесненных версий документов",
	})
)

// historyLimit — количество последних одобренных версий в истории типа.
const historyLimit = 3

// FileStore — файловое хранилище документов.
// Реализуется storage.FileStore.
type FileStore interface {
	Save(reader io.Reader, docType, ownerID, originalFilename string) (*storage.SaveResult, error)
	Open(storagePath string) (io.ReadCloser, error)
	Delete(storagePath string) error
}

// Notifier — отправка уведомлений о событиях жизненного цикла.
// Реализуется mailer.SMTPMailer и mailer.Noop.
type Notifier interface {
	DocumentApproved(ctx context.Context, doc *model.Document) error
	DocumentRejected(ctx context.Context, doc *model.Document, reason string) error
	NewSubmission(ctx context.Context, doc *model.Document) error
}

// DocumentService — сервис операций над документами.
type DocumentService struct {
	repo        repository.DocumentRepository
	store       FileStore
	notifier    Notifier
	clock       Clock
	expiryGrace time.Duration
	logger      *slog.Logger
}

// NewDocumentService создаёт сервис документов.
// expiryGrace — срок хранения вытесненной версии до удаления.
func NewDocumentService(
	repo repository.DocumentRepository,
	store FileStore,
	notifier Notifier,
	clock Clock,
	expiryGrace time.Duration,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		repo:        repo,
		store:       store,
		notifier:    notifier,
		clock:       clock,
		expiryGrace: expiryGrace,
		logger:      logger.With(slog.String("component", "document_service")),
	}
}

// SubmitInput — входные данные подачи документа.
type SubmitInput struct {
	OwnerID          string
	OwnerEmail       string
	DocumentType     string
	OriginalFilename string
	Reader           io.Reader
}

// Submit принимает новый документ: сохраняет файл на диск и создаёт
// запись в статусе pending. Прежние версии не затрагиваются — несколько
// pending-документов одного типа допустимы.
func (s *DocumentService) Submit(ctx context.Context, in SubmitInput) (*model.Document, error) {
	if !model.IsValidDocumentType(in.DocumentType) {
		return nil, fmt.Errorf("%w: неизвестный тип документа %q", ErrValidation, in.DocumentType)
	}
	if in.OriginalFilename == "" {
		return nil, fmt.Errorf("%w: имя файла не задано", ErrValidation)
	}

	saved, err := s.store.Save(in.Reader, in.DocumentType, in.OwnerID, in.OriginalFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	doc := &model.Document{
		ID:               uuid.New().String(),
		OwnerID:          in.OwnerID,
		OwnerEmail:       in.OwnerEmail,
		DocumentType:     in.DocumentType,
		OriginalFilename: in.OriginalFilename,
		StoragePath:      saved.StoragePath,
		Status:           model.StatusPending,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		// Запись не создана — файл не должен остаться сиротой
		if delErr := s.store.Delete(saved.StoragePath); delErr != nil {
			s.logger.Warn("Не удалось удалить файл после ошибки создания записи",
				slog.String("storage_path", saved.StoragePath),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("создание записи документа: %w", err)
	}

	documentsSubmittedTotal.Inc()
	s.logger.Info("Документ подан",
		slog.String("document_id", doc.ID),
		slog.String("owner_id", doc.OwnerID),
		slog.String("document_type", doc.DocumentType),
		slog.Int64("size", saved.Size),
	)

	// Уведомление проверяющих — best-effort, ошибка не блокирует подачу
	if err := s.notifier.NewSubmission(ctx, doc); err != nil {
		s.logger.Warn("Не удалось уведомить проверяющих о новом документе",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
	}

	return doc, nil
}

// Approve одобряет pending-документ. Прежняя актуальная версия той же
// пары (владелец, тип) вытесняется и получает срок удаления now+expiryGrace.
// Одобрение и вытеснение выполняются атомарно в одной транзакции.
func (s *DocumentService) Approve(ctx context.Context, id, reviewer string, comment *string) (*model.Document, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.expiryGrace)

	approved, superseded, err := s.repo.Approve(ctx, id, reviewer, comment, now, expiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrNotPending) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: параллельное одобрение того же типа", ErrConflict)
		}
		return nil, fmt.Errorf("одобрение документа: %w", err)
	}

	documentsApprovedTotal.Inc()
	attrs := []any{
		slog.String("document_id", approved.ID),
		slog.String("owner_id", approved.OwnerID),
		slog.String("document_type", approved.DocumentType),
		slog.String("reviewed_by", reviewer),
	}
	if superseded != nil {
		documentsSupersededTotal.Inc()
		attrs = append(attrs,
			slog.String("superseded_id", superseded.ID),
			slog.Time("superseded_expires_at", *superseded.ExpiresAt),
		)
	}
	s.logger.Info("Документ одобрен", attrs...)

	// Уведомление владельца — best-effort
	if err := s.notifier.DocumentApproved(ctx, approved); err != nil {
		s.logger.Warn("Не удалось уведомить владельца об одобрении",
			slog.String("document_id", approved.ID),
			slog.String("error", err.Error()),
		)
	}

	return approved, nil
}

// Reject отклоняет pending-документ. Отклонение терминально:
// владелец уведомляется, затем файл и запись удаляются безвозвратно.
// Уведомление отправляется до удаления — после него данных уже нет.
func (s *DocumentService) Reject(ctx context.Context, id, reviewer, reason string) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение документа: %w", err)
	}
	if !doc.IsPending() {
		return ErrNotFound
	}

	// Уведомление владельца — best-effort, до удаления данных
	if err := s.notifier.DocumentRejected(ctx, doc, reason); err != nil {
		s.logger.Warn("Не удалось уведомить владельца об отклонении",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
	}

	// Удаляем запись первой: при гонке с Approve выигрывает БД
	if err := s.repo.DeletePending(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotPending) || errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление записи документа: %w", err)
	}

	if err := s.store.Delete(doc.StoragePath); err != nil {
		// Запись уже удалена, файл подберёт ручная очистка
		s.logger.Warn("Не удалось удалить файл отклонённого документа",
			slog.String("document_id", doc.ID),
			slog.String("storage_path", doc.StoragePath),
			slog.String("error", err.Error()),
		)
	}

	documentsRejectedTotal.Inc()
	s.logger.Info("Документ отклонён и удалён",
		slog.String("document_id", doc.ID),
		slog.String("owner_id", doc.OwnerID),
		slog.String("document_type", doc.DocumentType),
		slog.String("reviewed_by", reviewer),
	)

	return nil
}

// Get возвращает документ по ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение документа: %w", err)
	}
	return doc, nil
}

// Current возвращает актуальные документы сотрудника.
func (s *DocumentService) Current(ctx context.Context, ownerID string) ([]*model.Document, error) {
	docs, err := s.repo.ListCurrent(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("получение актуальных документов: %w", err)
	}
	return docs, nil
}

// Pending возвращает документы, ожидающие проверки, с пагинацией.
func (s *DocumentService) Pending(ctx context.Context, limit, offset int) ([]*model.Document, int, error) {
	docs, err := s.repo.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение ожидающих документов: %w", err)
	}
	total, err := s.repo.CountPending(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт ожидающих документов: %w", err)
	}
	return docs, total, nil
}

// History возвращает последние одобренные версии документа типа docType.
func (s *DocumentService) History(ctx context.Context, ownerID, docType string) ([]*model.Document, error) {
	if !model.IsValidDocumentType(docType) {
		return nil, fmt.Errorf("%w: неизвестный тип документа %q", ErrValidation, docType)
	}
	docs, err := s.repo.History(ctx, ownerID, docType, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("получение истории документов: %w", err)
	}
	return docs, nil
}

// Download возвращает документ и поток содержимого файла.
// Вызывающий код обязан закрыть ReadCloser.
func (s *DocumentService) Download(ctx context.Context, id string) (*model.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.store.Open(doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return doc, f, nil
}
