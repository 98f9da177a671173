package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"ventas-sync/internal/connectivity"
	"ventas-sync/internal/domain"
	"ventas-sync/internal/repository"
)

const ventasCacheKey = "ventas_cache"

// DefaultCacheMaxAge is how long a cached snapshot stays usable.
const DefaultCacheMaxAge = 24 * time.Hour

type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceQueue  Source = "queue"
)

type LoadResult struct {
	Ventas []domain.Venta `json:"ventas"`
	Source Source         `json:"source"`
}

type ventasCache struct {
	Ventas    []domain.Venta `json:"ventas"`
	Timestamp int64          `json:"timestamp"` // epoch millis at capture
}

// ReconcilerService resolves every read against three tiers: the remote
// store, the last cached snapshot, and the pending queue itself.
type ReconcilerService struct {
	store       LocalStore
	repo        repository.VentaRepository
	checker     connectivity.Checker
	queue       *QueueService
	cacheMaxAge time.Duration
}

func NewReconcilerService(
	store LocalStore,
	repo repository.VentaRepository,
	checker connectivity.Checker,
	queue *QueueService,
	cacheMaxAge time.Duration,
) *ReconcilerService {
	if cacheMaxAge <= 0 {
		cacheMaxAge = DefaultCacheMaxAge
	}
	return &ReconcilerService{
		store:       store,
		repo:        repo,
		checker:     checker,
		queue:       queue,
		cacheMaxAge: cacheMaxAge,
	}
}

// LoadAll prefers the authoritative remote read and refreshes the cache on
// success. On remote failure or offline it falls back to the cache, then to
// the queued records. The remote error surfaces only when both fallback
// tiers are empty.
func (s *ReconcilerService) LoadAll(ctx context.Context) (*LoadResult, error) {
	var remoteErr error

	if s.checker.IsOnline(ctx) {
		ventas, err := s.repo.GetAll(ctx)
		if err == nil {
			s.cacheVentas(ctx, ventas)
			return &LoadResult{Ventas: ventas, Source: SourceRemote}, nil
		}
		log.Printf("remote read failed, falling back to cache: %v", err)
		remoteErr = err
	}

	if cached, ok := s.cachedVentas(ctx); ok {
		return &LoadResult{Ventas: cached, Source: SourceCache}, nil
	}

	queued := s.queue.ListPending(ctx)
	if len(queued) > 0 || remoteErr == nil {
		return &LoadResult{Ventas: queued, Source: SourceQueue}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrSinDatos, remoteErr)
}

// cacheVentas replaces the snapshot wholesale. A store failure only degrades
// future offline reads, so it is logged and swallowed.
func (s *ReconcilerService) cacheVentas(ctx context.Context, ventas []domain.Venta) {
	snapshot := ventasCache{
		Ventas:    ventas,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.store.SetJSON(ctx, ventasCacheKey, snapshot); err != nil {
		log.Printf("failed to cache ventas snapshot: %v", err)
	}
}

// cachedVentas returns the snapshot if present and not expired. An expired
// snapshot is treated as absent and purged.
func (s *ReconcilerService) cachedVentas(ctx context.Context) ([]domain.Venta, bool) {
	var snapshot ventasCache
	found, err := s.store.GetJSON(ctx, ventasCacheKey, &snapshot)
	if err != nil {
		log.Printf("failed to read ventas cache: %v", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	age := time.Since(time.UnixMilli(snapshot.Timestamp))
	if age > s.cacheMaxAge {
		if err := s.store.Remove(ctx, ventasCacheKey); err != nil {
			log.Printf("failed to purge stale ventas cache: %v", err)
		}
		return nil, false
	}

	return snapshot.Ventas, true
}
