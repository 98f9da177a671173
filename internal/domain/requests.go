package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductoRequest struct {
	Nombre   string          `json:"nombre" validate:"required"`
	Cantidad int64           `json:"cantidad" validate:"required,min=1"`
	Precio   decimal.Decimal `json:"precio"`
}

type AbonoRequest struct {
	Monto  decimal.Decimal `json:"monto"`
	Metodo string          `json:"metodo"`
}

type CreateVentaRequest struct {
	Cliente    string            `json:"cliente" validate:"required"`
	Productos  []ProductoRequest `json:"productos" validate:"required,min=1,dive"`
	MetodoPago MetodoPago        `json:"metodo_pago"`
	Pagado     bool              `json:"pagado"`
	Abonos     []AbonoRequest    `json:"abonos"`
	Fecha      *time.Time        `json:"fecha"`
}

func (r *CreateVentaRequest) ToVenta() Venta {
	venta := Venta{
		Cliente:    r.Cliente,
		MetodoPago: r.MetodoPago,
		Pagado:     r.Pagado,
	}
	for _, p := range r.Productos {
		venta.Productos = append(venta.Productos, Producto{
			Nombre:   p.Nombre,
			Cantidad: p.Cantidad,
			Precio:   p.Precio,
		})
	}
	for _, a := range r.Abonos {
		venta.Abonos = append(venta.Abonos, Abono{
			Monto:  a.Monto,
			Metodo: a.Metodo,
			Fecha:  time.Now(),
		})
	}
	if r.Fecha != nil {
		venta.Fecha = *r.Fecha
	}
	return venta
}

type UpdateVentaRequest struct {
	Cliente    *string           `json:"cliente"`
	Productos  []ProductoRequest `json:"productos"`
	MetodoPago *MetodoPago       `json:"metodo_pago"`
}

type UpdatePagadoRequest struct {
	Pagado *bool `json:"pagado" validate:"required"`
}

type AddAbonoRequest struct {
	Monto  decimal.Decimal `json:"monto"`
	Metodo string          `json:"metodo"`
}

type LoginRequest struct {
	PIN string `json:"pin" validate:"required,min=4"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
