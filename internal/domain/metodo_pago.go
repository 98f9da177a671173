package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type PagoDividido struct {
	Metodo string          `json:"metodo"`
	Monto  decimal.Decimal `json:"monto"`
}

// MetodoPago is either a single payment method label ("Efectivo") or an
// ordered list of split payments. On the wire it serializes as a bare JSON
// string in the first case and as an array of {metodo, monto} in the second,
// matching the shape the backing store already holds.
type MetodoPago struct {
	Etiqueta string
	Dividido []PagoDividido
}

func MetodoSimple(etiqueta string) MetodoPago {
	return MetodoPago{Etiqueta: etiqueta}
}

func (m MetodoPago) EsDividido() bool {
	return len(m.Dividido) > 0
}

func (m MetodoPago) TotalDividido() decimal.Decimal {
	total := decimal.Zero
	for _, p := range m.Dividido {
		total = total.Add(p.Monto)
	}
	return total
}

func (m MetodoPago) String() string {
	if !m.EsDividido() {
		return m.Etiqueta
	}
	s := ""
	for i, p := range m.Dividido {
		if i > 0 {
			s += " + "
		}
		s += p.Metodo
	}
	return s
}

func (m MetodoPago) MarshalJSON() ([]byte, error) {
	if m.EsDividido() {
		return json.Marshal(m.Dividido)
	}
	return json.Marshal(m.Etiqueta)
}

func (m *MetodoPago) UnmarshalJSON(data []byte) error {
	var etiqueta string
	if err := json.Unmarshal(data, &etiqueta); err == nil {
		m.Etiqueta = etiqueta
		m.Dividido = nil
		return nil
	}

	var dividido []PagoDividido
	if err := json.Unmarshal(data, &dividido); err == nil {
		m.Etiqueta = ""
		m.Dividido = dividido
		return nil
	}

	return fmt.Errorf("metodo_pago must be a string or a list of split payments")
}
