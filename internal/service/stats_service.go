package service

import (
	"time"

	"ventas-sync/internal/domain"

	"github.com/shopspring/decimal"
)

type Stats struct {
	TotalVentas      int             `json:"totalVentas"`
	VentasPagadas    int             `json:"ventasPagadas"`
	VentasConAbono   int             `json:"ventasConAbono"`
	VentasPendientes int             `json:"ventasPendientes"`
	TotalDinero      decimal.Decimal `json:"totalDinero"`
	TotalAbonado     decimal.Decimal `json:"totalAbonado"`
	TotalPendiente   decimal.Decimal `json:"totalPendiente"`
	PorcentajePagado decimal.Decimal `json:"porcentajePagado"`
	TotalDelDia      decimal.Decimal `json:"totalDelDia"`
	VentasDelDia     int             `json:"ventasDelDia"`
}

// StatsService derives ledger statistics from the projector's current view.
type StatsService struct {
	ventas *VentasService
}

func NewStatsService(ventas *VentasService) *StatsService {
	return &StatsService{ventas: ventas}
}

func (s *StatsService) General() Stats {
	stats := General(s.ventas.List())
	now := time.Now()
	stats.TotalDelDia = s.ventas.TotalDelDia(now)
	stats.VentasDelDia = s.ventas.NumeroVentasDelDia(now)
	return stats
}

// General buckets every venta as paid, partially paid or pending, and totals
// the money columns.
func General(ventas []domain.Venta) Stats {
	stats := Stats{
		TotalVentas:      len(ventas),
		TotalDinero:      decimal.Zero,
		TotalAbonado:     decimal.Zero,
		TotalPendiente:   decimal.Zero,
		PorcentajePagado: decimal.Zero,
		TotalDelDia:      decimal.Zero,
	}

	for _, v := range ventas {
		total := v.Total()
		abonado := v.TotalAbonado()

		stats.TotalDinero = stats.TotalDinero.Add(total)
		stats.TotalAbonado = stats.TotalAbonado.Add(abonado)

		switch {
		case v.EstaPagada():
			stats.VentasPagadas++
		case abonado.IsPositive():
			stats.VentasConAbono++
		default:
			stats.VentasPendientes++
		}
	}

	stats.TotalPendiente = stats.TotalDinero.Sub(stats.TotalAbonado)
	if stats.TotalDinero.IsPositive() {
		stats.PorcentajePagado = stats.TotalAbonado.
			Div(stats.TotalDinero).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return stats
}
