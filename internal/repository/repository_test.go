package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arturkryukov/docstore/document-module/internal/config"
	"github.com/arturkryukov/docstore/document-module/internal/database"
	"github.com/arturkryukov/docstore/document-module/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool и функцию очистки.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("docstore_test"),
		postgres.WithUsername("docstore"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("DM_DB_HOST", host)
	os.Setenv("DM_DB_PORT", port.Port())
	os.Setenv("DM_DB_NAME", "docstore_test")
	os.Setenv("DM_DB_USER", "docstore")
	os.Setenv("DM_DB_PASSWORD", "test-password")
	os.Setenv("DM_DB_SSL_MODE", "disable")
	os.Setenv("DM_DATA_DIR", t.TempDir())
	os.Setenv("DM_KEYCLOAK_URL", "http://localhost:8080")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newPendingDocument создаёт pending-документ для тестов.
func newPendingDocument(ownerID, docType string) *model.Document {
	return &model.Document{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		DocumentType:     docType,
		OriginalFilename: "ine.pdf",
		StoragePath:      "ine_" + uuid.New().String() + ".pdf",
		Status:           model.StatusPending,
	}
}

func TestDocumentLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(pool)

	ownerID := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Microsecond)
	expiresAt := now.Add(15 * 24 * time.Hour)

	doc := newPendingDocument(ownerID, "ine")

	// Create
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// GetByID
	got, err := repo.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, хотели %q", got.Status, model.StatusPending)
	}
	if got.IsCurrent {
		t.Error("Новый документ не должен быть актуальным")
	}

	// ListPending / CountPending
	pending, err := repo.ListPending(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListPending() ошибка: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("ListPending() вернул %d записей, хотели 1", len(pending))
	}
	count, err := repo.CountPending(ctx)
	if err != nil {
		t.Fatalf("CountPending() ошибка: %v", err)
	}
	if count != 1 {
		t.Errorf("CountPending() = %d, хотели 1", count)
	}

	// Approve — первая версия, вытеснять нечего
	comment := "всё в порядке"
	approved, superseded, err := repo.Approve(ctx, doc.ID, "admin", &comment, now, expiresAt)
	if err != nil {
		t.Fatalf("Approve() ошибка: %v", err)
	}
	if superseded != nil {
		t.Errorf("Первое одобрение вытеснило версию: %v", superseded.ID)
	}
	if approved.Status != model.StatusApproved || !approved.IsCurrent {
		t.Errorf("После Approve: Status=%q, IsCurrent=%v", approved.Status, approved.IsCurrent)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != "admin" {
		t.Errorf("ReviewedBy = %v, хотели admin", approved.ReviewedBy)
	}

	// ListCurrent
	current, err := repo.ListCurrent(ctx, ownerID)
	if err != nil {
		t.Fatalf("ListCurrent() ошибка: %v", err)
	}
	if len(current) != 1 || current[0].ID != doc.ID {
		t.Errorf("ListCurrent() = %v, хотели один документ %s", current, doc.ID)
	}

	// Повторный Approve уже одобренного — ErrNotPending
	if _, _, err := repo.Approve(ctx, doc.ID, "admin", nil, now, expiresAt); !errors.Is(err, ErrNotPending) {
		t.Errorf("Повторный Approve: ожидали ErrNotPending, получили %v", err)
	}
}

func TestApproveSupersedesCurrent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(pool)

	ownerID := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Microsecond)
	expiresAt := now.Add(15 * 24 * time.Hour)

	// Первая версия одобрена и актуальна
	first := newPendingDocument(ownerID, "curp")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() первой версии: %v", err)
	}
	if _, _, err := repo.Approve(ctx, first.ID, "admin", nil, now, expiresAt); err != nil {
		t.Fatalf("Approve() первой версии: %v", err)
	}

	// Вторая версия того же типа
	second := newPendingDocument(ownerID, "curp")
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create() второй версии: %v", err)
	}

	later := now.Add(time.Hour)
	laterExpires := later.Add(15 * 24 * time.Hour)
	approved, superseded, err := repo.Approve(ctx, second.ID, "admin", nil, later, laterExpires)
	if err != nil {
		t.Fatalf("Approve() второй версии: %v", err)
	}
	if approved.ID != second.ID || !approved.IsCurrent {
		t.Errorf("Вторая версия не стала актуальной: %+v", approved)
	}
	if superseded == nil || superseded.ID != first.ID {
		t.Fatalf("Первая версия не вытеснена: %+v", superseded)
	}
	if superseded.IsCurrent {
		t.Error("Вытесненная версия осталась актуальной")
	}
	if superseded.ExpiresAt == nil || !superseded.ExpiresAt.Equal(laterExpires) {
		t.Errorf("ExpiresAt = %v, хотели %v", superseded.ExpiresAt, laterExpires)
	}

	// Актуальная — ровно одна
	current, err := repo.ListCurrent(ctx, ownerID)
	if err != nil {
		t.Fatalf("ListCurrent() ошибка: %v", err)
	}
	if len(current) != 1 || current[0].ID != second.ID {
		t.Errorf("ListCurrent() после вытеснения: %d записей", len(current))
	}

	// История содержит обе одобренные версии, свежая первой
	history, err := repo.History(ctx, ownerID, "curp", 3)
	if err != nil {
		t.Fatalf("History() ошибка: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History() вернул %d записей, хотели 2", len(history))
	}
	if history[0].ID != second.ID {
		t.Errorf("History()[0] = %s, хотели свежую версию %s", history[0].ID, second.ID)
	}
}

func TestDeletePending(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(pool)

	ownerID := uuid.New().String()
	doc := newPendingDocument(ownerID, "cv")
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// DeletePending удаляет pending-документ
	if err := repo.DeletePending(ctx, doc.ID); err != nil {
		t.Fatalf("DeletePending() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После DeletePending ожидали ErrNotFound, получили: %v", err)
	}

	// DeletePending одобренного документа — ErrNotPending
	now := time.Now().UTC()
	approvedDoc := newPendingDocument(ownerID, "csf")
	if err := repo.Create(ctx, approvedDoc); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if _, _, err := repo.Approve(ctx, approvedDoc.ID, "admin", nil, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("Approve() ошибка: %v", err)
	}
	if err := repo.DeletePending(ctx, approvedDoc.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("DeletePending одобренного: ожидали ErrNotPending, получили %v", err)
	}
}

func TestListExpired(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(pool)

	ownerID := uuid.New().String()
	base := time.Now().UTC().Truncate(time.Microsecond)

	// Две версии одного типа: первая одобрена и вытеснена второй
	first := newPendingDocument(ownerID, "comp_dom")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() первой версии: %v", err)
	}
	if _, _, err := repo.Approve(ctx, first.ID, "admin", nil, base, base.Add(time.Hour)); err != nil {
		t.Fatalf("Approve() первой версии: %v", err)
	}

	second := newPendingDocument(ownerID, "comp_dom")
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create() второй версии: %v", err)
	}
	// Срок удаления вытесненной версии — в прошлом
	expiredAt := base.Add(-time.Minute)
	if _, _, err := repo.Approve(ctx, second.ID, "admin", nil, base, expiredAt); err != nil {
		t.Fatalf("Approve() второй версии: %v", err)
	}

	expired, err := repo.ListExpired(ctx, base)
	if err != nil {
		t.Fatalf("ListExpired() ошибка: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != first.ID {
		t.Fatalf("ListExpired() = %d записей, хотели вытесненную версию %s", len(expired), first.ID)
	}

	// Актуальная версия никогда не попадает в выборку
	for _, d := range expired {
		if d.IsCurrent {
			t.Errorf("ListExpired() вернул актуальный документ %s", d.ID)
		}
	}

	// Удаление истёкшей записи
	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	expired2, err := repo.ListExpired(ctx, base)
	if err != nil {
		t.Fatalf("ListExpired() повторный ошибка: %v", err)
	}
	if len(expired2) != 0 {
		t.Errorf("После Delete осталось %d истёкших записей", len(expired2))
	}
}
