package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arturkryukov/docstore/document-module/internal/domain/model"
)

// documentColumns — список колонок для SELECT-запросов по таблице documents.
const documentColumns = `id, owner_id, owner_email, document_type, original_filename, storage_path,
	status, is_current, expires_at, reviewed_at, reviewed_by, admin_comment,
	created_at, updated_at`

// DocumentRepository — интерфейс доступа к таблице documents.
type DocumentRepository interface {
	// Create создаёт новую запись документа.
	Create(ctx context.Context, d *model.Document) error
	// GetByID возвращает документ по UUID.
	GetByID(ctx context.Context, id string) (*model.Document, error)
	// ListPending возвращает документы в статусе pending (старые первыми).
	ListPending(ctx context.Context, limit, offset int) ([]*model.Document, error)
	// CountPending возвращает количество документов в статусе pending.
	CountPending(ctx context.Context) (int, error)
	// ListCurrent возвращает актуальные документы сотрудника.
	ListCurrent(ctx context.Context, ownerID string) ([]*model.Document, error)
	// History возвращает последние одобренные версии документа типа docType.
	History(ctx context.Context, ownerID, docType string, limit int) ([]*model.Document, error)
	// Approve одобряет документ в транзакции: вытесняет прежнюю актуальную
	// версию (если есть) и делает документ актуальным.
	// Возвращает одобренный документ и вытесненный (nil, если не было).
	Approve(ctx context.Context, id, reviewer string, comment *string, now, expiresAt time.Time) (approved, superseded *model.Document, err error)
	// DeletePending удаляет запись документа в статусе pending.
	DeletePending(ctx context.Context, id string) error
	// Delete удаляет запись документа безусловно.
	Delete(ctx context.Context, id string) error
	// ListExpired возвращает вытесненные версии с истёкшим сроком удаления.
	ListExpired(ctx context.Context, now time.Time) ([]*model.Document, error)
}

// documentRepo — реализация DocumentRepository.
// Держит пул напрямую: Approve выполняется в транзакции с блокировкой строк.
type documentRepo struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewDocumentRepository создаёт репозиторий документов.
func NewDocumentRepository(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepo{pool: pool, tx: NewTxRunner(pool)}
}

// scanDocument сканирует строку в model.Document.
func scanDocument(row pgx.Row) (*model.Document, error) {
	d := &model.Document{}
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.OwnerEmail, &d.DocumentType, &d.OriginalFilename, &d.StoragePath,
		&d.Status, &d.IsCurrent, &d.ExpiresAt, &d.ReviewedAt, &d.ReviewedBy, &d.AdminComment,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// scanDocuments сканирует все строки результата в срез документов.
func scanDocuments(rows pgx.Rows) ([]*model.Document, error) {
	defer rows.Close()

	var result []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования документа: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *documentRepo) Create(ctx context.Context, d *model.Document) error {
	query := `
		INSERT INTO documents (id, owner_id, owner_email, document_type, original_filename,
			storage_path, status, is_current)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		d.ID, d.OwnerID, d.OwnerEmail, d.DocumentType, d.OriginalFilename,
		d.StoragePath, d.Status, d.IsCurrent,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: документ с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания документа: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)

	d, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения документа: %w", err)
	}
	return d, nil
}

func (r *documentRepo) ListPending(ctx context.Context, limit, offset int) ([]*model.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2`, documentColumns)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ожидающих документов: %w", err)
	}
	return scanDocuments(rows)
}

func (r *documentRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта ожидающих документов: %w", err)
	}
	return count, nil
}

func (r *documentRepo) ListCurrent(ctx context.Context, ownerID string) ([]*model.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE owner_id = $1 AND is_current
		ORDER BY document_type ASC`, documentColumns)

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения актуальных документов: %w", err)
	}
	return scanDocuments(rows)
}

func (r *documentRepo) History(ctx context.Context, ownerID, docType string, limit int) ([]*model.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE owner_id = $1 AND document_type = $2 AND status = 'approved'
		ORDER BY reviewed_at DESC
		LIMIT $3`, documentColumns)

	rows, err := r.pool.Query(ctx, query, ownerID, docType, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории документов: %w", err)
	}
	return scanDocuments(rows)
}

// Approve выполняет одобрение документа в одной транзакции:
//  1. Блокирует целевую строку (FOR UPDATE) и проверяет статус pending.
//  2. Находит и блокирует прежнюю актуальную версию той же пары
//     (owner_id, document_type), вытесняет её с назначением срока удаления.
//  3. Делает целевой документ актуальным.
//
// Частичный уникальный индекс documents_current_uniq страхует от гонки
// двух параллельных одобрений.
func (r *documentRepo) Approve(ctx context.Context, id, reviewer string, comment *string, now, expiresAt time.Time) (*model.Document, *model.Document, error) {
	var approved, superseded *model.Document

	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		lockQuery := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1 FOR UPDATE`, documentColumns)

		target, err := scanDocument(tx.QueryRow(ctx, lockQuery, id))
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("ошибка блокировки документа: %w", err)
		}
		if !target.IsPending() {
			return ErrNotPending
		}

		// Прежняя актуальная версия той же пары (owner_id, document_type)
		oldQuery := fmt.Sprintf(`
			SELECT %s FROM documents
			WHERE owner_id = $1 AND document_type = $2 AND is_current AND id != $3
			FOR UPDATE`, documentColumns)

		old, err := scanDocument(tx.QueryRow(ctx, oldQuery, target.OwnerID, target.DocumentType, target.ID))
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("ошибка поиска актуальной версии: %w", err)
		}

		if old != nil {
			demoteQuery := fmt.Sprintf(`
				UPDATE documents
				SET is_current = FALSE, expires_at = $2, updated_at = $3
				WHERE id = $1
				RETURNING %s`, documentColumns)

			superseded, err = scanDocument(tx.QueryRow(ctx, demoteQuery, old.ID, expiresAt, now))
			if err != nil {
				return fmt.Errorf("ошибка вытеснения прежней версии: %w", err)
			}
		}

		promoteQuery := fmt.Sprintf(`
			UPDATE documents
			SET status = 'approved', is_current = TRUE,
				reviewed_at = $2, reviewed_by = $3, admin_comment = $4, updated_at = $2
			WHERE id = $1
			RETURNING %s`, documentColumns)

		approved, err = scanDocument(tx.QueryRow(ctx, promoteQuery, target.ID, now, reviewer, comment))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: актуальная версия уже назначена", ErrConflict)
			}
			return fmt.Errorf("ошибка одобрения документа: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return approved, superseded, nil
}

func (r *documentRepo) DeletePending(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления документа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления документа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *documentRepo) ListExpired(ctx context.Context, now time.Time) ([]*model.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE expires_at IS NOT NULL AND expires_at <= $1 AND NOT is_current
		ORDER BY expires_at ASC`, documentColumns)

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истёкших документов: %w", err)
	}
	return scanDocuments(rows)
}
