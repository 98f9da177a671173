package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"ventas-sync/internal/connectivity"
	"ventas-sync/internal/domain"
	"ventas-sync/internal/repository"

	"github.com/shopspring/decimal"
)

type mockStore struct {
	data    map[string]json.RawMessage
	failAll bool
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]json.RawMessage)}
}

func (m *mockStore) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	if m.failAll {
		return false, errors.New("store unavailable")
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (m *mockStore) SetJSON(ctx context.Context, key string, v interface{}) error {
	if m.failAll {
		return errors.New("store unavailable")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *mockStore) Remove(ctx context.Context, key string) error {
	if m.failAll {
		return errors.New("store unavailable")
	}
	delete(m.data, key)
	return nil
}

type mockChecker struct {
	online bool
}

func (m *mockChecker) IsOnline(ctx context.Context) bool {
	return m.online
}

func (m *mockChecker) State(ctx context.Context) connectivity.NetworkState {
	return connectivity.NetworkState{Connected: m.online, InternetReachable: m.online}
}

type mockRepo struct {
	ventas     []domain.Venta
	created    []domain.Venta // every Create in call order
	nextID     int
	failCreate func(v domain.Venta) error
	failAll    bool
	onChange   func()
}

func newMockRepo() *mockRepo {
	return &mockRepo{}
}

func (m *mockRepo) GetAll(ctx context.Context) ([]domain.Venta, error) {
	if m.failAll {
		return nil, errors.New("remote unavailable")
	}
	out := make([]domain.Venta, len(m.ventas))
	copy(out, m.ventas)
	return out, nil
}

func (m *mockRepo) GetByCliente(ctx context.Context, cliente string) ([]domain.Venta, error) {
	if m.failAll {
		return nil, errors.New("remote unavailable")
	}
	var out []domain.Venta
	for _, v := range m.ventas {
		if v.Cliente == cliente {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockRepo) Create(ctx context.Context, venta domain.Venta) (*domain.Venta, error) {
	if m.failAll {
		return nil, errors.New("remote unavailable")
	}
	if m.failCreate != nil {
		if err := m.failCreate(venta); err != nil {
			return nil, err
		}
	}
	m.nextID++
	venta.ID = fmt.Sprintf("venta-%d", m.nextID)
	venta.TempID = ""
	venta.Offline = false
	venta.Synced = false
	if venta.Fecha.IsZero() {
		venta.Fecha = time.Now().UTC()
	}
	m.ventas = append(m.ventas, venta)
	m.created = append(m.created, venta)
	return &venta, nil
}

func (m *mockRepo) find(id string) int {
	for i, v := range m.ventas {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func (m *mockRepo) UpdatePagado(ctx context.Context, id string, pagado bool) (*domain.Venta, error) {
	if m.failAll {
		return nil, errors.New("remote unavailable")
	}
	i := m.find(id)
	if i < 0 {
		return nil, repository.ErrVentaNotFound
	}
	m.ventas[i].Pagado = pagado
	v := m.ventas[i]
	return &v, nil
}

func (m *mockRepo) AddAbono(ctx context.Context, id string, abono domain.Abono) (*domain.Venta, error) {
	if m.failAll {
		return nil, errors.New("remote unavailable")
	}
	i := m.find(id)
	if i < 0 {
		return nil, repository.ErrVentaNotFound
	}
	if abono.Fecha.IsZero() {
		abono.Fecha = time.Now().UTC()
	}
	m.ventas[i].Abonos = append(m.ventas[i].Abonos, abono)
	m.ventas[i].Pagado = m.ventas[i].EstaPagada()
	v := m.ventas[i]
	return &v, nil
}

func (m *mockRepo) Update(ctx context.Context, id string, req *domain.UpdateVentaRequest) (*domain.Venta, error) {
	if m.failAll {
		return nil, errors.New("remote unavailable")
	}
	i := m.find(id)
	if i < 0 {
		return nil, repository.ErrVentaNotFound
	}
	if req.Cliente != nil {
		m.ventas[i].Cliente = *req.Cliente
	}
	v := m.ventas[i]
	return &v, nil
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	if m.failAll {
		return errors.New("remote unavailable")
	}
	i := m.find(id)
	if i < 0 {
		return repository.ErrVentaNotFound
	}
	m.ventas = append(m.ventas[:i], m.ventas[i+1:]...)
	return nil
}

func (m *mockRepo) SubscribeToChanges(ctx context.Context, onChange func()) (func(), error) {
	m.onChange = onChange
	return func() { m.onChange = nil }, nil
}

func (m *mockRepo) Ping(ctx context.Context) (bool, error) {
	return !m.failAll, nil
}

func ventaDePrueba(cliente string, cantidad int64, precio float64) domain.Venta {
	return domain.Venta{
		Cliente: cliente,
		Productos: []domain.Producto{
			{Nombre: "articulo", Cantidad: cantidad, Precio: decimal.NewFromFloat(precio)},
		},
		MetodoPago: domain.MetodoSimple("Efectivo"),
	}
}

func mustSetJSON(t *testing.T, store *mockStore, key string, v interface{}) {
	t.Helper()
	if err := store.SetJSON(context.Background(), key, v); err != nil {
		t.Fatalf("seeding %s: %v", key, err)
	}
}
