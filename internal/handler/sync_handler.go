package handler

import (
	"log"
	"net/http"

	"ventas-sync/internal/connectivity"
	"ventas-sync/internal/domain"
	"ventas-sync/internal/service"
	"ventas-sync/internal/websocket"
	"ventas-sync/pkg/response"
)

type SyncHandler struct {
	queue   *service.QueueService
	ventas  *service.VentasService
	checker connectivity.Checker
	manager *websocket.Manager
}

func NewSyncHandler(
	queue *service.QueueService,
	ventas *service.VentasService,
	checker connectivity.Checker,
	manager *websocket.Manager,
) *SyncHandler {
	return &SyncHandler{
		queue:   queue,
		ventas:  ventas,
		checker: checker,
		manager: manager,
	}
}

// TriggerSync drains the offline queue. After a pass that synced anything the
// in-memory view is refreshed so temporary ids disappear, and connected
// screens are told the pass finished either way.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result := h.queue.SyncAll(r.Context())

	if result.Synced > 0 {
		if _, err := h.ventas.Refresh(r.Context()); err != nil {
			log.Printf("refresh after sync failed: %v", err)
		}
	}

	if msg, err := websocket.NewMessage(websocket.TypeSyncCompleted, result); err == nil {
		h.manager.Broadcast(msg)
	}

	response.Success(w, result)
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	state := h.checker.State(r.Context())
	pending := h.queue.ListPending(r.Context())

	response.Success(w, map[string]interface{}{
		"isOnline": state.Connected && state.InternetReachable,
		"network":  state,
		"pending":  len(pending),
		"screens":  h.manager.Connections(),
	})
}

func (h *SyncHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending := h.queue.ListPending(r.Context())
	if pending == nil {
		pending = []domain.Venta{}
	}
	response.Success(w, pending)
}
