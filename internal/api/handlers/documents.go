// documents.go — HTTP-обработчики операций с документами.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/arturkryukov/docstore/document-module/internal/api/errors"
	"github.com/arturkryukov/docstore/document-module/internal/api/middleware"
	"github.com/arturkryukov/docstore/document-module/internal/domain/model"
	"github.com/arturkryukov/docstore/document-module/internal/service"
)

// listResponse — ответ списочных операций с пагинацией.
type listResponse struct {
	Documents []documentResponse `json:"documents"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// SubmitDocument — POST /api/v1/documents.
// Принимает multipart/form-data: поле document_type и файл file (только PDF).
// Владелец и его email берутся из JWT-токена.
func (h *APIHandler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.PayloadTooLarge(w,
				fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxUpload))
			return
		}
		apierrors.ValidationError(w, "Некорректный multipart-запрос")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	docType := r.FormValue("document_type")
	if !model.IsValidDocumentType(docType) {
		apierrors.ValidationError(w,
			fmt.Sprintf("Неизвестный тип документа: %s", docType))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Отсутствует поле file")
		return
	}
	defer file.Close()

	if !isPDF(header.Filename) {
		apierrors.ValidationError(w, "Допускаются только файлы PDF")
		return
	}

	doc, err := h.documents.Submit(r.Context(), service.SubmitInput{
		OwnerID:          claims.Subject,
		OwnerEmail:       claims.Email,
		DocumentType:     docType,
		OriginalFilename: header.Filename,
		Reader:           file,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

// GetDocument — GET /api/v1/documents/{id}.
// Доступен владельцу документа и администратору.
func (h *APIHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор документа")
		return
	}

	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if doc.OwnerID != claims.Subject && !claims.IsAdmin() {
		apierrors.Forbidden(w, "Доступ к чужому документу запрещён")
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// DownloadDocument — GET /api/v1/documents/{id}/file.
// Отдаёт содержимое PDF. Доступен владельцу и администратору.
func (h *APIHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор документа")
		return
	}

	doc, reader, err := h.documents.Download(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer reader.Close()

	if doc.OwnerID != claims.Subject && !claims.IsAdmin() {
		apierrors.Forbidden(w, "Доступ к чужому документу запрещён")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", doc.OriginalFilename))

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("Ошибка отдачи файла документа",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
	}
}

// approveRequest — тело запроса одобрения.
type approveRequest struct {
	Comment *string `json:"comment,omitempty"`
}

// ApproveDocument — POST /api/v1/documents/{id}/approve. Только администратор.
func (h *APIHandler) ApproveDocument(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор документа")
		return
	}

	var req approveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректное тело запроса")
			return
		}
	}

	doc, err := h.documents.Approve(r.Context(), id, reviewerName(claims), req.Comment)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// rejectRequest — тело запроса отклонения.
type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectDocument — POST /api/v1/documents/{id}/reject. Только администратор.
// Запись и файл документа удаляются, владелец получает уведомление с причиной.
func (h *APIHandler) RejectDocument(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор документа")
		return
	}

	var req rejectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректное тело запроса")
			return
		}
	}

	if err := h.documents.Reject(r.Context(), id, reviewerName(claims), req.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPending — GET /api/v1/documents/pending. Только администратор.
// Документы, ожидающие проверки, в порядке поступления.
func (h *APIHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationDefaults(r.URL.Query())

	docs, total, err := h.documents.Pending(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Documents: toDocumentResponses(docs),
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// ListCurrent — GET /api/v1/documents/current.
// Текущие одобренные документы владельца. Администратор может запросить
// документы другого сотрудника через ?owner_id=.
func (h *APIHandler) ListCurrent(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	ownerID, ok := h.resolveOwnerID(w, r, claims)
	if !ok {
		return
	}

	docs, err := h.documents.Current(r.Context(), ownerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": toDocumentResponses(docs),
	})
}

// ListHistory — GET /api/v1/documents/history/{type}.
// Последние одобренные версии документа указанного типа (включая текущую).
func (h *APIHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	ownerID, ok := h.resolveOwnerID(w, r, claims)
	if !ok {
		return
	}

	docType := chi.URLParam(r, "type")

	docs, err := h.documents.History(r.Context(), ownerID, docType)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": toDocumentResponses(docs),
	})
}

// resolveOwnerID определяет владельца для списочных операций.
// Обычный сотрудник видит только свои документы, администратор может
// указать ?owner_id= для просмотра чужих.
func (h *APIHandler) resolveOwnerID(
	w http.ResponseWriter, r *http.Request, claims *middleware.AuthClaims,
) (string, bool) {
	ownerID := claims.Subject
	if requested := r.URL.Query().Get("owner_id"); requested != "" && requested != claims.Subject {
		if !claims.IsAdmin() {
			apierrors.Forbidden(w, "Просмотр чужих документов запрещён")
			return "", false
		}
		ownerID = requested
	}
	return ownerID, true
}

// reviewerName возвращает имя проверяющего для записи в документ.
func reviewerName(claims *middleware.AuthClaims) string {
	if claims.PreferredUsername != "" {
		return claims.PreferredUsername
	}
	return claims.Subject
}

// isPDF проверяет расширение файла.
func isPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
