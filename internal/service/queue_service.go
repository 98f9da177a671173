package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"ventas-sync/internal/connectivity"
	"ventas-sync/internal/domain"
	"ventas-sync/internal/repository"

	"github.com/google/uuid"
)

const offlineQueueKey = "offline_queue"

// TempIDPrefix marks locally-assigned identifiers of records that have not
// been accepted by the remote store yet.
const TempIDPrefix = "offline_"

type SyncError struct {
	VentaID string `json:"ventaId"`
	Error   string `json:"error"`
}

type SyncResult struct {
	Synced    int         `json:"synced"`
	Failed    int         `json:"failed"`
	Remaining int         `json:"remaining"`
	Errors    []SyncError `json:"errors,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// QueueService owns the persisted queue of writes that could not reach the
// remote store. It is the only writer of the offline_queue key.
type QueueService struct {
	store   LocalStore
	repo    repository.VentaRepository
	checker connectivity.Checker
}

func NewQueueService(store LocalStore, repo repository.VentaRepository, checker connectivity.Checker) *QueueService {
	return &QueueService{
		store:   store,
		repo:    repo,
		checker: checker,
	}
}

// Enqueue stamps the venta with a temporary id and local bookkeeping flags,
// appends it to the persisted queue and returns the stored form.
func (s *QueueService) Enqueue(ctx context.Context, venta domain.Venta) (*domain.Venta, error) {
	if err := venta.Validate(); err != nil {
		return nil, err
	}

	venta.ID = fmt.Sprintf("%s%d_%s", TempIDPrefix, time.Now().UnixMilli(), randFragment())
	venta.TempID = venta.ID
	venta.Offline = true
	venta.Synced = false
	if venta.Fecha.IsZero() {
		venta.Fecha = time.Now().UTC()
	}

	queue := s.ListPending(ctx)
	queue = append(queue, venta)

	if err := s.store.SetJSON(ctx, offlineQueueKey, queue); err != nil {
		return nil, fmt.Errorf("failed to persist offline queue: %w", err)
	}

	return &venta, nil
}

// ListPending returns the queued ventas in enqueue order. A store failure
// degrades to an empty queue rather than surfacing an error.
func (s *QueueService) ListPending(ctx context.Context) []domain.Venta {
	var queue []domain.Venta
	if _, err := s.store.GetJSON(ctx, offlineQueueKey, &queue); err != nil {
		log.Printf("failed to read offline queue: %v", err)
		return nil
	}
	return queue
}

// Dequeue removes one entry by temporary id. Removing an absent id is a
// no-op, so a repeated dequeue leaves the queue unchanged.
func (s *QueueService) Dequeue(ctx context.Context, tempID string) error {
	queue := s.ListPending(ctx)

	remaining := make([]domain.Venta, 0, len(queue))
	for _, v := range queue {
		if v.TempID != tempID {
			remaining = append(remaining, v)
		}
	}
	if len(remaining) == len(queue) {
		return nil
	}

	if err := s.store.SetJSON(ctx, offlineQueueKey, remaining); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	return nil
}

// SyncAll replays the queue against the remote store in enqueue order. Each
// item is dequeued immediately after its own create succeeds, so a crash
// mid-pass can duplicate at most the in-flight item. A failed item stays in
// the queue and never blocks the rest of the pass; failures are aggregated in
// the result, not raised.
func (s *QueueService) SyncAll(ctx context.Context) *SyncResult {
	if !s.checker.IsOnline(ctx) {
		return &SyncResult{Message: "no connectivity"}
	}

	queue := s.ListPending(ctx)
	if len(queue) == 0 {
		return &SyncResult{Message: "queue empty"}
	}

	result := &SyncResult{}
	for _, venta := range queue {
		if _, err := s.repo.Create(ctx, stripLocal(venta)); err != nil {
			log.Printf("failed to sync venta %s: %v", venta.TempID, err)
			result.Failed++
			result.Errors = append(result.Errors, SyncError{VentaID: venta.TempID, Error: err.Error()})
			continue
		}

		if err := s.Dequeue(ctx, venta.TempID); err != nil {
			log.Printf("synced venta %s but failed to dequeue: %v", venta.TempID, err)
		}
		result.Synced++
	}

	result.Remaining = len(s.ListPending(ctx))
	return result
}

// stripLocal drops the temporary id and queue flags so the remote create
// carries only the original field values.
func stripLocal(venta domain.Venta) domain.Venta {
	venta.ID = ""
	venta.TempID = ""
	venta.Offline = false
	venta.Synced = false
	return venta
}

func randFragment() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:7]
}
