package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ventas-sync/internal/domain"

	"github.com/shopspring/decimal"
)

func newVentasFixture(online bool) (*VentasService, *mockStore, *mockRepo, *mockChecker) {
	store := newMockStore()
	repo := newMockRepo()
	checker := &mockChecker{online: online}
	queue := NewQueueService(store, repo, checker)
	reconciler := NewReconcilerService(store, repo, checker, queue, DefaultCacheMaxAge)
	svc := NewVentasService(repo, checker, queue, reconciler)
	return svc, store, repo, checker
}

func createRequest(cliente string, precio float64) *domain.CreateVentaRequest {
	return &domain.CreateVentaRequest{
		Cliente: cliente,
		Productos: []domain.ProductoRequest{
			{Nombre: "articulo", Cantidad: 1, Precio: decimal.NewFromFloat(precio)},
		},
		MetodoPago: domain.MetodoSimple("Efectivo"),
	}
}

func seedRemote(t *testing.T, svc *VentasService, repo *mockRepo, ventas ...domain.Venta) {
	t.Helper()
	repo.ventas = append(repo.ventas, ventas...)
	result, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("seeding refresh: %v", err)
	}
	if result.Source != SourceRemote {
		t.Fatalf("seeding refresh source = %q, want remote", result.Source)
	}
}

func TestVentasService_ListSortedByFechaDesc(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	vieja := ventaDePrueba("Ana", 1, 100)
	vieja.ID, vieja.Fecha = "v-vieja", base.Add(-2*time.Hour)
	media := ventaDePrueba("Bruno", 1, 100)
	media.ID, media.Fecha = "v-media", base.Add(-time.Hour)
	nueva := ventaDePrueba("Carla", 1, 100)
	nueva.ID, nueva.Fecha = "v-nueva", base

	seedRemote(t, svc, repo, vieja, nueva, media)

	lista := svc.List()
	if len(lista) != 3 {
		t.Fatalf("List() len = %d, want 3", len(lista))
	}
	for i, want := range []string{"v-nueva", "v-media", "v-vieja"} {
		if lista[i].ID != want {
			t.Errorf("List()[%d] = %q, want %q", i, lista[i].ID, want)
		}
	}
}

func TestVentasService_CreateOnline(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)

	created, err := svc.Create(context.Background(), createRequest("Ana", 250))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.TempID != "" || created.Offline {
		t.Errorf("online create returned local bookkeeping: %+v", created)
	}
	if len(repo.created) != 1 {
		t.Fatalf("remote received %d creates, want 1", len(repo.created))
	}
	if lista := svc.List(); len(lista) != 1 || lista[0].ID != created.ID {
		t.Errorf("List() = %+v, want the created venta", lista)
	}
}

func TestVentasService_CreateOfflineQueues(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(false)

	created, err := svc.Create(context.Background(), createRequest("Ana", 250))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(created.ID, TempIDPrefix) || !created.Offline {
		t.Errorf("offline create = %+v, want queued temp record", created)
	}
	if len(repo.created) != 0 {
		t.Error("offline create must not reach the remote")
	}

	lista := svc.List()
	if len(lista) != 1 || lista[0].TempID != created.TempID {
		t.Errorf("List() = %+v, want the queued venta visible", lista)
	}
}

func TestVentasService_CreateRemoteFailureFallsBackToQueue(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)
	repo.failAll = true

	created, err := svc.Create(context.Background(), createRequest("Ana", 250))
	if err != nil {
		t.Fatalf("Create() error = %v, want queued fallback", err)
	}
	if !strings.HasPrefix(created.ID, TempIDPrefix) {
		t.Errorf("fallback create id = %q, want %q prefix", created.ID, TempIDPrefix)
	}
}

func TestVentasService_CreateRetainedWhenQueueAlsoFails(t *testing.T) {
	svc, store, repo, _ := newVentasFixture(true)
	repo.failAll = true
	store.failAll = true

	_, err := svc.Create(context.Background(), createRequest("Ana", 250))
	if err == nil {
		t.Fatal("Create() expected error when remote and queue both fail")
	}

	failed := svc.FailedItems()
	if len(failed) != 1 {
		t.Fatalf("FailedItems() len = %d, want 1", len(failed))
	}
	if failed[0].Venta.Cliente != "Ana" || failed[0].Error == "" {
		t.Errorf("retained item = %+v, want the venta with its error", failed[0])
	}
}

func TestVentasService_RetryFailed(t *testing.T) {
	svc, store, repo, _ := newVentasFixture(true)
	repo.failAll = true
	store.failAll = true
	svc.Create(context.Background(), createRequest("Ana", 250))

	repo.failAll = false
	store.failAll = false
	tempID := svc.FailedItems()[0].Venta.TempID

	created, err := svc.RetryFailed(context.Background(), tempID)
	if err != nil {
		t.Fatalf("RetryFailed() error = %v", err)
	}
	if created.ID == "" || strings.HasPrefix(created.ID, TempIDPrefix) {
		t.Errorf("RetryFailed() id = %q, want a server id", created.ID)
	}
	if len(svc.FailedItems()) != 0 {
		t.Error("retried item still listed as failed")
	}
}

func TestVentasService_DiscardFailed(t *testing.T) {
	svc, store, repo, _ := newVentasFixture(true)
	repo.failAll = true
	store.failAll = true
	svc.Create(context.Background(), createRequest("Ana", 250))

	tempID := svc.FailedItems()[0].Venta.TempID
	if !svc.DiscardFailed(tempID) {
		t.Fatal("DiscardFailed() = false, want true")
	}
	if svc.DiscardFailed(tempID) {
		t.Error("second DiscardFailed() = true, want false")
	}
	if len(svc.FailedItems()) != 0 {
		t.Error("discarded item still listed")
	}
}

func TestVentasService_UpdatePagadoOptimistic(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)
	v := ventaDePrueba("Ana", 1, 100)
	v.ID, v.Fecha = "v-1", time.Now().UTC()
	seedRemote(t, svc, repo, v)

	if err := svc.UpdatePagado(context.Background(), "v-1", true); err != nil {
		t.Fatalf("UpdatePagado() error = %v", err)
	}
	if lista := svc.List(); !lista[0].Pagado {
		t.Error("pagado not applied to the view")
	}
	if !repo.ventas[0].Pagado {
		t.Error("pagado not applied remotely")
	}
}

func TestVentasService_UpdatePagadoRollsBackOnFailure(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)
	v := ventaDePrueba("Ana", 1, 100)
	v.ID, v.Fecha = "v-1", time.Now().UTC()
	seedRemote(t, svc, repo, v)

	repo.failAll = true
	if err := svc.UpdatePagado(context.Background(), "v-1", true); err == nil {
		t.Fatal("UpdatePagado() expected error")
	}

	if lista := svc.List(); lista[0].Pagado {
		t.Error("failed update left pagado flipped, want prior value restored")
	}
}

func TestVentasService_UpdatePagadoUnknownID(t *testing.T) {
	svc, _, _, _ := newVentasFixture(true)

	if err := svc.UpdatePagado(context.Background(), "no-existe", true); err == nil {
		t.Error("UpdatePagado() expected error for unknown id")
	}
}

func TestVentasService_DeleteRollbackPreservesOrder(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var seed []domain.Venta
	for i, cliente := range []string{"Ana", "Bruno", "Carla"} {
		v := ventaDePrueba(cliente, 1, 100)
		v.ID = "v-" + cliente
		v.Fecha = base.Add(-time.Duration(i) * time.Hour)
		seed = append(seed, v)
	}
	seedRemote(t, svc, repo, seed...)

	repo.failAll = true
	if err := svc.Delete(context.Background(), "v-Bruno"); err == nil {
		t.Fatal("Delete() expected error")
	}

	lista := svc.List()
	if len(lista) != 3 {
		t.Fatalf("List() len = %d after rollback, want 3", len(lista))
	}
	for i, want := range []string{"v-Ana", "v-Bruno", "v-Carla"} {
		if lista[i].ID != want {
			t.Errorf("List()[%d] = %q, want %q (order restored)", i, lista[i].ID, want)
		}
	}
}

func TestVentasService_DeleteQueuedRecord(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(false)

	created, err := svc.Create(context.Background(), createRequest("Ana", 100))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(context.Background(), created.TempID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(svc.List()) != 0 {
		t.Error("queued record still visible after delete")
	}
	if len(repo.created) != 0 {
		t.Error("deleting a queued record must not touch the remote")
	}
}

func TestVentasService_AddAbonoFailureLeavesViewUntouched(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)
	v := ventaDePrueba("Ana", 1, 100)
	v.ID, v.Fecha = "v-1", time.Now().UTC()
	seedRemote(t, svc, repo, v)

	repo.failAll = true
	_, err := svc.AddAbono(context.Background(), "v-1", &domain.AddAbonoRequest{
		Monto: decimal.NewFromFloat(40), Metodo: "Efectivo",
	})
	if err == nil {
		t.Fatal("AddAbono() expected error")
	}

	if lista := svc.List(); len(lista[0].Abonos) != 0 {
		t.Error("failed abono was applied locally")
	}
}

func TestVentasService_AddAbonoSettlesVenta(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)
	v := ventaDePrueba("Ana", 1, 100)
	v.ID, v.Fecha = "v-1", time.Now().UTC()
	seedRemote(t, svc, repo, v)

	updated, err := svc.AddAbono(context.Background(), "v-1", &domain.AddAbonoRequest{
		Monto: decimal.NewFromFloat(100), Metodo: "Efectivo",
	})
	if err != nil {
		t.Fatalf("AddAbono() error = %v", err)
	}
	if !updated.Pagado {
		t.Error("full abono did not settle the venta")
	}
	if !updated.Saldo().IsZero() {
		t.Errorf("Saldo() = %s after full abono, want 0", updated.Saldo())
	}
	if lista := svc.List(); !lista[0].Pagado || len(lista[0].Abonos) != 1 {
		t.Errorf("view not replaced with the confirmed record: %+v", lista[0])
	}
}

func TestVentasService_AddAbonoRequiresConnectivity(t *testing.T) {
	svc, _, _, _ := newVentasFixture(false)

	_, err := svc.AddAbono(context.Background(), "v-1", &domain.AddAbonoRequest{
		Monto: decimal.NewFromFloat(10), Metodo: "Efectivo",
	})
	if !errors.Is(err, ErrSinConexion) {
		t.Errorf("AddAbono() offline error = %v, want ErrSinConexion", err)
	}
}

func TestVentasService_AddAbonoRejectsNonPositive(t *testing.T) {
	svc, _, _, _ := newVentasFixture(true)

	_, err := svc.AddAbono(context.Background(), "v-1", &domain.AddAbonoRequest{
		Monto: decimal.Zero,
	})
	if err == nil {
		t.Error("AddAbono() expected error for zero monto")
	}
}

// Reconnection: records created offline drain into the remote on the next
// refresh and their temporary ids disappear from the view.
func TestVentasService_OfflineCreateThenReconnect(t *testing.T) {
	svc, _, repo, checker := newVentasFixture(false)
	ctx := context.Background()

	svc.Create(ctx, createRequest("Ana", 100))
	svc.Create(ctx, createRequest("Bruno", 200))

	checker.online = true
	result, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if result.Source != SourceRemote {
		t.Errorf("Refresh() source = %q, want remote after drain", result.Source)
	}

	lista := svc.List()
	if len(lista) != 2 {
		t.Fatalf("List() len = %d, want 2", len(lista))
	}
	for _, v := range lista {
		if strings.HasPrefix(v.ID, TempIDPrefix) || v.TempID != "" {
			t.Errorf("temp id survived reconnection: %+v", v)
		}
	}
	if len(repo.created) != 2 || repo.created[0].Cliente != "Ana" || repo.created[1].Cliente != "Bruno" {
		t.Errorf("drain order = %+v, want creation order", repo.created)
	}
}

// Degraded read: when the remote fails and a fresh snapshot exists, the view
// serves the snapshot and reports its source.
func TestVentasService_RefreshServesCacheWhenRemoteDown(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)
	v := ventaDePrueba("Ana", 1, 100)
	v.ID, v.Fecha = "v-1", time.Now().UTC()
	seedRemote(t, svc, repo, v)

	repo.failAll = true
	result, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if result.Source != SourceCache {
		t.Errorf("Refresh() source = %q, want cache", result.Source)
	}
	if svc.LastSource() != SourceCache {
		t.Errorf("LastSource() = %q, want cache", svc.LastSource())
	}
	if lista := svc.List(); len(lista) != 1 || lista[0].ID != "v-1" {
		t.Errorf("List() = %+v, want the cached snapshot", lista)
	}
}

func TestVentasService_ByCliente(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)

	a := ventaDePrueba("Ana", 1, 100)
	a.ID, a.Fecha = "v-1", time.Now().UTC()
	b := ventaDePrueba("Bruno", 1, 100)
	b.ID, b.Fecha = "v-2", time.Now().UTC()
	a2 := ventaDePrueba("Ana", 2, 50)
	a2.ID, a2.Fecha = "v-3", time.Now().UTC()
	seedRemote(t, svc, repo, a, b, a2)

	deAna := svc.ByCliente("Ana")
	if len(deAna) != 2 {
		t.Fatalf("ByCliente(Ana) len = %d, want 2", len(deAna))
	}
	for _, v := range deAna {
		if v.Cliente != "Ana" {
			t.Errorf("ByCliente(Ana) returned %q", v.Cliente)
		}
	}
}

func TestVentasService_TotalesDelDia(t *testing.T) {
	svc, _, repo, _ := newVentasFixture(true)

	now := time.Now()
	hoy := ventaDePrueba("Ana", 2, 150)
	hoy.ID, hoy.Fecha = "v-hoy", now
	ayer := ventaDePrueba("Bruno", 1, 999)
	ayer.ID, ayer.Fecha = "v-ayer", now.Add(-48*time.Hour)
	seedRemote(t, svc, repo, hoy, ayer)

	if got := svc.NumeroVentasDelDia(now); got != 1 {
		t.Errorf("NumeroVentasDelDia() = %d, want 1", got)
	}
	if got := svc.TotalDelDia(now); !got.Equal(decimal.NewFromInt(300)) {
		t.Errorf("TotalDelDia() = %s, want 300", got)
	}
}

// Full offline/online cycle: sell while offline, read through the queue
// tier, reconnect, drain, read from the remote, then settle the sale.
func TestOfflineLedgerEndToEnd(t *testing.T) {
	store := newMockStore()
	repo := newMockRepo()
	checker := &mockChecker{online: false}
	queue := NewQueueService(store, repo, checker)
	rec := NewReconcilerService(store, repo, checker, queue, DefaultCacheMaxAge)
	svc := NewVentasService(repo, checker, queue, rec)
	ctx := context.Background()

	req := &domain.CreateVentaRequest{
		Cliente: "Ana",
		Productos: []domain.ProductoRequest{
			{Nombre: "articulo", Cantidad: 2, Precio: decimal.NewFromInt(500)},
		},
		MetodoPago: domain.MetodoSimple("Efectivo"),
	}
	if _, err := svc.Create(ctx, req); err != nil {
		t.Fatalf("offline Create() error = %v", err)
	}

	result, err := rec.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() offline error = %v", err)
	}
	if result.Source != SourceQueue || len(result.Ventas) != 1 {
		t.Fatalf("LoadAll() offline = %+v, want 1 queued venta", result)
	}
	queued := result.Ventas[0]
	if want := decimal.NewFromInt(1000); !queued.Total().Equal(want) {
		t.Errorf("queued Total() = %s, want %s", queued.Total(), want)
	}
	if want := decimal.NewFromInt(1000); !queued.Saldo().Equal(want) {
		t.Errorf("queued Saldo() = %s, want %s", queued.Saldo(), want)
	}

	if _, err := svc.Create(ctx, createRequest("Bruno", 300)); err != nil {
		t.Fatalf("second offline Create() error = %v", err)
	}

	checker.online = true
	sync := queue.SyncAll(ctx)
	if sync.Synced != 2 || sync.Failed != 0 {
		t.Fatalf("SyncAll() = %+v, want both drained", sync)
	}

	result, err = rec.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() online error = %v", err)
	}
	if result.Source != SourceRemote || len(result.Ventas) != 2 {
		t.Fatalf("LoadAll() online = %+v, want 2 remote ventas", result)
	}
	var anaID string
	for _, v := range result.Ventas {
		if v.Offline || v.TempID != "" || v.Synced {
			t.Errorf("synced venta still carries local bookkeeping: %+v", v)
		}
		if v.Cliente == "Ana" {
			anaID = v.ID
		}
	}
	if anaID == "" {
		t.Fatal("synced ventas missing Ana's sale")
	}

	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	settled, err := svc.AddAbono(ctx, anaID, &domain.AddAbonoRequest{
		Monto: decimal.NewFromInt(1000), Metodo: "Efectivo",
	})
	if err != nil {
		t.Fatalf("AddAbono() error = %v", err)
	}
	if !settled.Pagado || !settled.Saldo().IsZero() {
		t.Errorf("settled venta = pagado:%v saldo:%s, want paid with zero balance", settled.Pagado, settled.Saldo())
	}
}

func TestVentasService_NotifierFiresOnMutation(t *testing.T) {
	svc, _, _, _ := newVentasFixture(true)

	var events []string
	svc.SetNotifier(func(event string) { events = append(events, event) })

	svc.Create(context.Background(), createRequest("Ana", 100))
	if len(events) == 0 || events[0] != "ventas_updated" {
		t.Errorf("notifier events = %v, want ventas_updated", events)
	}
}
