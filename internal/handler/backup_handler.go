package handler

import (
	"net/http"
	"time"

	"ventas-sync/internal/domain"
	"ventas-sync/internal/service"
	"ventas-sync/pkg/response"
)

type BackupHandler struct {
	ventas *service.VentasService
	queue  *service.QueueService
}

func NewBackupHandler(ventas *service.VentasService, queue *service.QueueService) *BackupHandler {
	return &BackupHandler{
		ventas: ventas,
		queue:  queue,
	}
}

// Export dumps the full ledger plus anything still waiting in the offline
// queue as one JSON document, for external safekeeping.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	ventas := h.ventas.List()
	if ventas == nil {
		ventas = []domain.Venta{}
	}
	pending := h.queue.ListPending(r.Context())
	if pending == nil {
		pending = []domain.Venta{}
	}

	response.Success(w, map[string]interface{}{
		"ventas":     ventas,
		"pendientes": pending,
		"exportedAt": time.Now().UTC(),
		"source":     h.ventas.LastSource(),
	})
}
