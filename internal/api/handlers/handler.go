// handler.go — основной обработчик API Document Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apierrors "github.com/arturkryukov/docstore/document-module/internal/api/errors"
	"github.com/arturkryukov/docstore/document-module/internal/domain/model"
	"github.com/arturkryukov/docstore/document-module/internal/service"
)

// APIHandler — основной обработчик API Document Module.
type APIHandler struct {
	health    *HealthHandler
	documents *service.DocumentService
	sweep     SweepRunner
	maxUpload int64
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUpload — максимальный размер загружаемого файла в байтах (DM_MAX_UPLOAD_BYTES).
func NewAPIHandler(
	health *HealthHandler,
	documents *service.DocumentService,
	sweep SweepRunner,
	maxUpload int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		documents: documents,
		sweep:     sweep,
		maxUpload: maxUpload,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- DTO ---

// documentResponse — представление документа в API.
type documentResponse struct {
	ID                string  `json:"id"`
	OwnerID           string  `json:"owner_id"`
	DocumentType      string  `json:"document_type"`
	DocumentTypeLabel string  `json:"document_type_label"`
	OriginalFilename  string  `json:"original_filename"`
	Status            string  `json:"status"`
	IsCurrent         bool    `json:"is_current"`
	ExpiresAt         *string `json:"expires_at,omitempty"`
	ReviewedAt        *string `json:"reviewed_at,omitempty"`
	ReviewedBy        *string `json:"reviewed_by,omitempty"`
	AdminComment      *string `json:"admin_comment,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// toDocumentResponse конвертирует модель в API-представление.
func toDocumentResponse(d *model.Document) documentResponse {
	resp := documentResponse{
		ID:                d.ID,
		OwnerID:           d.OwnerID,
		DocumentType:      d.DocumentType,
		DocumentTypeLabel: model.DocumentTypeLabel(d.DocumentType),
		OriginalFilename:  d.OriginalFilename,
		Status:            string(d.Status),
		IsCurrent:         d.IsCurrent,
		ReviewedBy:        d.ReviewedBy,
		AdminComment:      d.AdminComment,
		CreatedAt:         d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         d.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if d.ExpiresAt != nil {
		s := d.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &s
	}
	if d.ReviewedAt != nil {
		s := d.ReviewedAt.UTC().Format(time.RFC3339)
		resp.ReviewedAt = &s
	}
	return resp
}

// toDocumentResponses конвертирует срез моделей.
// Пустой срез сериализуется как [], не null.
func toDocumentResponses(docs []*model.Document) []documentResponse {
	result := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		result = append(result, toDocumentResponse(d))
	}
	return result
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults нормализует query-параметры пагинации.
func paginationDefaults(query url.Values) (limit, offset int) {
	limit = 100
	offset = 0

	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	if v := query.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// writeServiceError маппит ошибки сервисного слоя в HTTP-ответы.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Документ не найден")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
