package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"ventas-sync/internal/connectivity"
	"ventas-sync/internal/domain"
	"ventas-sync/internal/repository"

	"github.com/shopspring/decimal"
)

// FailedVenta is a create that could not reach the remote store nor the
// offline queue. It stays visible until the user retries or discards it.
type FailedVenta struct {
	Venta    domain.Venta `json:"venta"`
	Error    string       `json:"error"`
	FailedAt time.Time    `json:"failedAt"`
}

// VentasService is the in-memory view of the ledger shown to the UI. It is
// the sole writer of that view: every mutation is applied optimistically
// here first and rolled back if the backing operation fails. The list is
// always kept sorted by fecha descending.
type VentasService struct {
	repo       repository.VentaRepository
	checker    connectivity.Checker
	queue      *QueueService
	reconciler *ReconcilerService

	mu         sync.Mutex
	ventas     []domain.Venta
	failed     []FailedVenta
	lastSource Source

	notify func(event string)
}

func NewVentasService(
	repo repository.VentaRepository,
	checker connectivity.Checker,
	queue *QueueService,
	reconciler *ReconcilerService,
) *VentasService {
	return &VentasService{
		repo:       repo,
		checker:    checker,
		queue:      queue,
		reconciler: reconciler,
		lastSource: SourceQueue,
	}
}

// SetNotifier registers a hook invoked after the in-memory view changed
// (used to push refresh events to connected UI screens).
func (s *VentasService) SetNotifier(notify func(event string)) {
	s.notify = notify
}

func (s *VentasService) emit(event string) {
	if s.notify != nil {
		s.notify(event)
	}
}

// List returns a copy of the current view, fecha descending.
func (s *VentasService) List() []domain.Venta {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Venta, len(s.ventas))
	copy(out, s.ventas)
	return out
}

func (s *VentasService) LastSource() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSource
}

// Refresh drains the offline queue first (a no-op while offline), then
// reloads the view through the reconciler so drained records come back with
// their server ids. Records that failed to drain stay visible alongside the
// remote list instead of disappearing until the next sync.
func (s *VentasService) Refresh(ctx context.Context) (*LoadResult, error) {
	s.queue.SyncAll(ctx)

	result, err := s.reconciler.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	ventas := result.Ventas
	if result.Source == SourceRemote {
		if pending := s.queue.ListPending(ctx); len(pending) > 0 {
			ventas = append(append([]domain.Venta{}, ventas...), pending...)
		}
	}
	s.replaceAll(ventas, result.Source)

	s.emit("ventas_updated")
	return &LoadResult{Ventas: s.List(), Source: result.Source}, nil
}

// Create attempts the remote create when online and falls back to the
// offline queue on any remote failure (connectivity loss and server
// rejection are deliberately not distinguished here, matching the replay
// semantics). Only when the queue also fails is the record retained as a
// visible failed item; it is never silently dropped.
func (s *VentasService) Create(ctx context.Context, req *domain.CreateVentaRequest) (*domain.Venta, error) {
	venta := req.ToVenta()
	if venta.Fecha.IsZero() {
		venta.Fecha = time.Now().UTC()
	}
	if err := venta.Validate(); err != nil {
		return nil, err
	}

	if !s.checker.IsOnline(ctx) {
		return s.createOffline(ctx, venta, nil)
	}

	created, err := s.repo.Create(ctx, venta)
	if err == nil {
		s.insert(*created)
		s.emit("ventas_updated")
		return created, nil
	}

	log.Printf("remote create failed, queueing offline: %v", err)
	return s.createOffline(ctx, venta, err)
}

func (s *VentasService) createOffline(ctx context.Context, venta domain.Venta, remoteErr error) (*domain.Venta, error) {
	queued, err := s.queue.Enqueue(ctx, venta)
	if err == nil {
		s.insert(*queued)
		s.emit("ventas_updated")
		return queued, nil
	}

	cause := err
	if remoteErr != nil {
		cause = remoteErr
	}
	s.retainFailed(venta, cause)
	return nil, cause
}

func (s *VentasService) retainFailed(venta domain.Venta, cause error) {
	if venta.TempID == "" {
		venta.TempID = fmt.Sprintf("failed_%d_%s", time.Now().UnixMilli(), randFragment())
		venta.ID = venta.TempID
	}

	s.mu.Lock()
	s.failed = append(s.failed, FailedVenta{
		Venta:    venta,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC(),
	})
	s.mu.Unlock()

	s.emit("ventas_updated")
}

// UpdatePagado flips the flag optimistically and restores the prior value if
// the remote update fails.
func (s *VentasService) UpdatePagado(ctx context.Context, id string, pagado bool) error {
	err := s.optimistic(
		func() func() {
			i := s.indexLocked(id)
			if i < 0 {
				return nil
			}
			prev := s.ventas[i].Pagado
			s.ventas[i].Pagado = pagado
			return func() {
				if j := s.indexLocked(id); j >= 0 {
					s.ventas[j].Pagado = prev
				}
			}
		},
		func() error {
			_, err := s.repo.UpdatePagado(ctx, id, pagado)
			return err
		},
	)
	if err != nil {
		return err
	}
	s.emit("ventas_updated")
	return nil
}

// AddAbono is not applied optimistically: the pagado flag derives from the
// server-confirmed totals, so the local record is replaced wholesale with the
// remote response and left untouched on failure.
func (s *VentasService) AddAbono(ctx context.Context, id string, req *domain.AddAbonoRequest) (*domain.Venta, error) {
	if !req.Monto.IsPositive() {
		return nil, fmt.Errorf("abono monto must be positive")
	}
	if !s.checker.IsOnline(ctx) {
		return nil, ErrSinConexion
	}

	updated, err := s.repo.AddAbono(ctx, id, domain.Abono{
		Monto:  req.Monto,
		Metodo: req.Metodo,
		Fecha:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.replaceOne(*updated)
	s.emit("ventas_updated")
	return updated, nil
}

// Update edits cliente, productos or metodo de pago and replaces the local
// record with the remote response on success.
func (s *VentasService) Update(ctx context.Context, id string, req *domain.UpdateVentaRequest) (*domain.Venta, error) {
	if !s.checker.IsOnline(ctx) {
		return nil, ErrSinConexion
	}

	updated, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.replaceOne(*updated)
	s.emit("ventas_updated")
	return updated, nil
}

// Delete removes the record from the view immediately, keeping a copy so a
// failed remote delete reinserts it at its sorted position. Records still in
// the offline queue are removed locally without touching the remote.
func (s *VentasService) Delete(ctx context.Context, id string) error {
	if strings.HasPrefix(id, TempIDPrefix) {
		if err := s.queue.Dequeue(ctx, id); err != nil {
			return err
		}
		s.mu.Lock()
		if i := s.indexLocked(id); i >= 0 {
			s.ventas = append(s.ventas[:i], s.ventas[i+1:]...)
		}
		s.mu.Unlock()
		s.emit("ventas_updated")
		return nil
	}

	err := s.optimistic(
		func() func() {
			i := s.indexLocked(id)
			if i < 0 {
				return nil
			}
			copia := s.ventas[i]
			s.ventas = append(s.ventas[:i], s.ventas[i+1:]...)
			return func() {
				s.insertLocked(copia)
			}
		},
		func() error {
			return s.repo.Delete(ctx, id)
		},
	)
	if err != nil {
		return err
	}
	s.emit("ventas_updated")
	return nil
}

// optimistic is the shared three-phase mutation: apply returns a rollback
// closure (or nil if the record is unknown), attempt runs the backing
// operation, and the rollback restores the prior state on failure. apply and
// rollback run under the lock; attempt does not, so an interleaved operation
// can read a consistent view while the remote call is in flight.
func (s *VentasService) optimistic(apply func() func(), attempt func() error) error {
	s.mu.Lock()
	rollback := apply()
	s.mu.Unlock()

	if rollback == nil {
		return repository.ErrVentaNotFound
	}

	if err := attempt(); err != nil {
		s.mu.Lock()
		rollback()
		s.mu.Unlock()
		return err
	}
	return nil
}

// Subscribe wires the remote change feed to Refresh. The returned function
// cancels the subscription.
func (s *VentasService) Subscribe(ctx context.Context) (func(), error) {
	return s.repo.SubscribeToChanges(ctx, func() {
		if _, err := s.Refresh(context.Background()); err != nil {
			log.Printf("refresh after remote change failed: %v", err)
		}
	})
}

func (s *VentasService) ByCliente(cliente string) []domain.Venta {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Venta
	for _, v := range s.ventas {
		if v.Cliente == cliente {
			out = append(out, v)
		}
	}
	return out
}

// FailedItems lists retained failed creates for the retry/discard screen.
func (s *VentasService) FailedItems() []FailedVenta {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FailedVenta, len(s.failed))
	copy(out, s.failed)
	return out
}

func (s *VentasService) DiscardFailed(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.failed {
		if f.Venta.TempID == tempID {
			s.failed = append(s.failed[:i], s.failed[i+1:]...)
			return true
		}
	}
	return false
}

// RetryFailed re-runs the create path for a retained failed item. On another
// failure the item is retained again by the create path itself.
func (s *VentasService) RetryFailed(ctx context.Context, tempID string) (*domain.Venta, error) {
	s.mu.Lock()
	var venta *domain.Venta
	for i, f := range s.failed {
		if f.Venta.TempID == tempID {
			v := f.Venta
			venta = &v
			s.failed = append(s.failed[:i], s.failed[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if venta == nil {
		return nil, repository.ErrVentaNotFound
	}

	retry := stripLocal(*venta)
	if !s.checker.IsOnline(ctx) {
		return s.createOffline(ctx, retry, nil)
	}
	created, err := s.repo.Create(ctx, retry)
	if err != nil {
		return s.createOffline(ctx, retry, err)
	}
	s.insert(*created)
	s.emit("ventas_updated")
	return created, nil
}

// TotalDelDia sums the totals of today's ventas in the current view.
func (s *VentasService) TotalDelDia(now time.Time) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, v := range s.ventas {
		if sameDay(v.Fecha, now) {
			total = total.Add(v.Total())
		}
	}
	return total
}

func (s *VentasService) NumeroVentasDelDia(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, v := range s.ventas {
		if sameDay(v.Fecha, now) {
			n++
		}
	}
	return n
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

func (s *VentasService) replaceAll(ventas []domain.Venta, source Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ventas = make([]domain.Venta, len(ventas))
	copy(s.ventas, ventas)
	sort.Slice(s.ventas, func(i, j int) bool {
		return s.ventas[i].Fecha.After(s.ventas[j].Fecha)
	})
	s.lastSource = source
}

func (s *VentasService) replaceOne(venta domain.Venta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(venta.ID); i >= 0 {
		s.ventas[i] = venta
		return
	}
	s.insertLocked(venta)
}

func (s *VentasService) insert(venta domain.Venta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(venta)
}

// insertLocked keeps the fecha-descending order on every insert, including
// rollback reinsertion.
func (s *VentasService) insertLocked(venta domain.Venta) {
	i := sort.Search(len(s.ventas), func(i int) bool {
		return !s.ventas[i].Fecha.After(venta.Fecha)
	})
	s.ventas = append(s.ventas, domain.Venta{})
	copy(s.ventas[i+1:], s.ventas[i:])
	s.ventas[i] = venta
}

func (s *VentasService) indexLocked(id string) int {
	for i, v := range s.ventas {
		if v.ID == id || (v.TempID != "" && v.TempID == id) {
			return i
		}
	}
	return -1
}
