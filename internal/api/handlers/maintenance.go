// maintenance.go — административные операции обслуживания.
package handlers

import (
	"context"
	"net/http"

	"github.com/arturkryukov/docstore/document-module/internal/service"
)

// SweepRunner — интерфейс запуска очистки истёкших документов.
type SweepRunner interface {
	RunOnce(ctx context.Context) *service.SweepResult
}

// sweepResponse — результат ручного запуска очистки.
type sweepResponse struct {
	Deleted  int    `json:"deleted"`
	Errors   int    `json:"errors"`
	Duration string `json:"duration"`
}

// RunSweep — POST /api/v1/maintenance/sweep. Только администратор.
// Принудительно запускает очистку истёкших документов, не дожидаясь
// следующего тика фонового цикла.
func (h *APIHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result := h.sweep.RunOnce(r.Context())

	writeJSON(w, http.StatusOK, sweepResponse{
		Deleted:  result.DeletedCount,
		Errors:   result.Errors,
		Duration: result.Duration.String(),
	})
}
