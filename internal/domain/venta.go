package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MargenPago is the tolerance used when deciding whether a venta is fully
// covered by its abonos (rounding slack of one cent).
var MargenPago = decimal.NewFromFloat(0.01)

var (
	ErrClienteVacio  = errors.New("cliente must not be empty")
	ErrSinProductos  = errors.New("venta must contain at least one producto")
	ErrPagoExcedente = errors.New("split payment amounts exceed venta total")
)

type Producto struct {
	ID       string          `json:"id,omitempty"`
	Nombre   string          `json:"nombre"`
	Cantidad int64           `json:"cantidad"`
	Precio   decimal.Decimal `json:"precio"`
}

type Abono struct {
	Monto  decimal.Decimal `json:"monto"`
	Fecha  time.Time       `json:"fecha"`
	Metodo string          `json:"metodo,omitempty"`
}

type Venta struct {
	ID         string     `json:"id"`
	Cliente    string     `json:"cliente"`
	Productos  []Producto `json:"productos"`
	MetodoPago MetodoPago `json:"metodo_pago"`
	Fecha      time.Time  `json:"fecha"`
	Pagado     bool       `json:"pagado"`
	Abonos     []Abono    `json:"abonos"`

	// Local-only bookkeeping for records that have not reached the remote
	// store yet. Never persisted remotely (Create strips them).
	TempID  string `json:"tempId,omitempty"`
	Offline bool   `json:"offline,omitempty"`
	Synced  bool   `json:"synced,omitempty"`
}

// Total is always derived from the productos, never stored.
func (v *Venta) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range v.Productos {
		total = total.Add(p.Precio.Mul(decimal.NewFromInt(p.Cantidad)))
	}
	return total
}

func (v *Venta) TotalAbonado() decimal.Decimal {
	abonado := decimal.Zero
	for _, a := range v.Abonos {
		abonado = abonado.Add(a.Monto)
	}
	return abonado
}

// Saldo is the outstanding balance, floored at zero.
func (v *Venta) Saldo() decimal.Decimal {
	saldo := v.Total().Sub(v.TotalAbonado())
	if saldo.IsNegative() {
		return decimal.Zero
	}
	return saldo
}

// EstaPagada reports whether the venta is fully covered: either the pagado
// flag was set explicitly or the abonos cover the total within MargenPago.
func (v *Venta) EstaPagada() bool {
	if v.Pagado {
		return true
	}
	return v.Total().Sub(v.TotalAbonado()).LessThanOrEqual(MargenPago)
}

func (v *Venta) Validate() error {
	if strings.TrimSpace(v.Cliente) == "" {
		return ErrClienteVacio
	}
	if len(v.Productos) == 0 {
		return ErrSinProductos
	}
	for i, p := range v.Productos {
		if p.Cantidad <= 0 {
			return fmt.Errorf("producto %d: cantidad must be positive", i)
		}
		if p.Precio.IsNegative() {
			return fmt.Errorf("producto %d: precio must not be negative", i)
		}
	}
	for i, a := range v.Abonos {
		if !a.Monto.IsPositive() {
			return fmt.Errorf("abono %d: monto must be positive", i)
		}
	}
	if v.MetodoPago.EsDividido() {
		if v.MetodoPago.TotalDividido().GreaterThan(v.Total()) {
			return ErrPagoExcedente
		}
	}
	return nil
}
