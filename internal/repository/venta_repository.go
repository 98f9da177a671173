package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"ventas-sync/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/google/uuid"
)

var ErrVentaNotFound = errors.New("venta not found")

// VentaRepository is the contract of the authoritative remote store. The
// rest of the app never talks to the backend except through this interface.
type VentaRepository interface {
	GetAll(ctx context.Context) ([]domain.Venta, error)
	GetByCliente(ctx context.Context, cliente string) ([]domain.Venta, error)
	Create(ctx context.Context, venta domain.Venta) (*domain.Venta, error)
	UpdatePagado(ctx context.Context, id string, pagado bool) (*domain.Venta, error)
	AddAbono(ctx context.Context, id string, abono domain.Abono) (*domain.Venta, error)
	Update(ctx context.Context, id string, req *domain.UpdateVentaRequest) (*domain.Venta, error)
	Delete(ctx context.Context, id string) error
	SubscribeToChanges(ctx context.Context, onChange func()) (func(), error)
	Ping(ctx context.Context) (bool, error)
}

type ventaRepository struct {
	client *kivik.Client
	dbName string
}

func NewVentaRepository(client *kivik.Client, dbName string) VentaRepository {
	return &ventaRepository{
		client: client,
		dbName: dbName,
	}
}

// ventaDoc wraps a venta with the CouchDB document envelope.
type ventaDoc struct {
	DocID string `json:"_id"`
	Rev   string `json:"_rev,omitempty"`
	domain.Venta
}

func docID(id string) string {
	return fmt.Sprintf("venta:%s", id)
}

func (r *ventaRepository) GetAll(ctx context.Context) ([]domain.Venta, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"cliente": map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list ventas: %w", err)
	}
	defer rows.Close()

	var ventas []domain.Venta
	for rows.Next() {
		var doc ventaDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		ventas = append(ventas, doc.Venta)
	}

	sort.Slice(ventas, func(i, j int) bool {
		return ventas[i].Fecha.After(ventas[j].Fecha)
	})

	return ventas, nil
}

func (r *ventaRepository) GetByCliente(ctx context.Context, cliente string) ([]domain.Venta, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"cliente": cliente,
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list ventas by cliente: %w", err)
	}
	defer rows.Close()

	var ventas []domain.Venta
	for rows.Next() {
		var doc ventaDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		ventas = append(ventas, doc.Venta)
	}

	sort.Slice(ventas, func(i, j int) bool {
		return ventas[i].Fecha.After(ventas[j].Fecha)
	})

	return ventas, nil
}

// Create assigns the authoritative id. A fecha carried by the venta (e.g. a
// record created offline earlier) is preserved, not regenerated. Local-only
// queue bookkeeping never reaches the remote document.
func (r *ventaRepository) Create(ctx context.Context, venta domain.Venta) (*domain.Venta, error) {
	db := r.client.DB(r.dbName)

	venta.ID = uuid.New().String()
	venta.TempID = ""
	venta.Offline = false
	venta.Synced = false
	if venta.Fecha.IsZero() {
		venta.Fecha = time.Now().UTC()
	}
	if venta.Abonos == nil {
		venta.Abonos = []domain.Abono{}
	}

	doc := ventaDoc{DocID: docID(venta.ID), Venta: venta}
	if _, err := db.Put(ctx, doc.DocID, doc); err != nil {
		return nil, fmt.Errorf("failed to create venta: %w", err)
	}

	return &venta, nil
}

func (r *ventaRepository) get(ctx context.Context, id string) (*ventaDoc, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(ctx, docID(id))

	var doc ventaDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrVentaNotFound
		}
		return nil, fmt.Errorf("failed to fetch venta: %w", err)
	}
	return &doc, nil
}

func (r *ventaRepository) put(ctx context.Context, doc *ventaDoc) (*domain.Venta, error) {
	db := r.client.DB(r.dbName)

	if _, err := db.Put(ctx, doc.DocID, doc); err != nil {
		return nil, fmt.Errorf("failed to update venta: %w", err)
	}
	venta := doc.Venta
	return &venta, nil
}

func (r *ventaRepository) UpdatePagado(ctx context.Context, id string, pagado bool) (*domain.Venta, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.Pagado = pagado
	return r.put(ctx, doc)
}

// AddAbono appends to the abono ledger and recomputes the pagado flag from
// the post-update state, so the caller gets the authoritative answer.
func (r *ventaRepository) AddAbono(ctx context.Context, id string, abono domain.Abono) (*domain.Venta, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if abono.Fecha.IsZero() {
		abono.Fecha = time.Now().UTC()
	}
	doc.Abonos = append(doc.Abonos, abono)
	doc.Pagado = doc.EstaPagada()

	return r.put(ctx, doc)
}

func (r *ventaRepository) Update(ctx context.Context, id string, req *domain.UpdateVentaRequest) (*domain.Venta, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Cliente != nil {
		doc.Cliente = *req.Cliente
	}
	if req.Productos != nil {
		productos := make([]domain.Producto, 0, len(req.Productos))
		for _, p := range req.Productos {
			productos = append(productos, domain.Producto{
				Nombre:   p.Nombre,
				Cantidad: p.Cantidad,
				Precio:   p.Precio,
			})
		}
		doc.Productos = productos
	}
	if req.MetodoPago != nil {
		doc.MetodoPago = *req.MetodoPago
	}

	return r.put(ctx, doc)
}

func (r *ventaRepository) Delete(ctx context.Context, id string) error {
	db := r.client.DB(r.dbName)

	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := db.Delete(ctx, doc.DocID, doc.Rev); err != nil {
		return fmt.Errorf("failed to delete venta: %w", err)
	}
	return nil
}

// SubscribeToChanges follows the continuous changes feed and invokes onChange
// for every remote insert, update or delete. The returned function tears the
// subscription down.
func (r *ventaRepository) SubscribeToChanges(ctx context.Context, onChange func()) (func(), error) {
	db := r.client.DB(r.dbName)

	ctx, cancel := context.WithCancel(ctx)

	changes := db.Changes(ctx, kivik.Params(map[string]interface{}{
		"feed":      "continuous",
		"since":     "now",
		"heartbeat": 5000,
	}))
	if err := changes.Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open changes feed: %w", err)
	}

	go func() {
		defer changes.Close()
		for changes.Next() {
			onChange()
		}
	}()

	return cancel, nil
}

func (r *ventaRepository) Ping(ctx context.Context) (bool, error) {
	return r.client.Ping(ctx)
}
