package service

import (
	"cajapos/internal/apperr"
	"cajapos/internal/model"

	"github.com/shopspring/decimal"
)

// DerivarEstadoPago is the single source of truth for a sale's payment state.
// Every mutation path (payment, deferral, correction, removal of a payment)
// calls it instead of deciding the state inline.
func DerivarEstadoPago(total, totalPagado decimal.Decimal, diferido bool) model.EstadoPago {
	switch {
	case diferido:
		return model.EstadoDiferido
	case totalPagado.GreaterThanOrEqual(total):
		return model.EstadoPagado
	case totalPagado.IsZero():
		return model.EstadoPendiente
	default:
		return model.EstadoPagoParcial
	}
}

// EstadoInicial is the state of a freshly created sale.
func EstadoInicial(esCuentaCorriente bool) model.EstadoPago {
	if esCuentaCorriente {
		return model.EstadoCuentaCorriente
	}
	return model.EstadoPendiente
}

// recalcularEstado re-derives the state after an amount correction.
// Deferred sales stay deferred while a balance remains; running-account sales
// keep their initial state until something is paid.
func recalcularEstado(v *model.Venta) model.EstadoPago {
	if v.RestoPendiente.IsPositive() {
		switch v.EstadoPago {
		case model.EstadoDiferido:
			return DerivarEstadoPago(v.Total, v.TotalPagado, true)
		case model.EstadoCuentaCorriente:
			if v.TotalPagado.IsZero() {
				return model.EstadoCuentaCorriente
			}
		}
	}
	return DerivarEstadoPago(v.Total, v.TotalPagado, false)
}

// aplicarSaldo sets TotalPagado and keeps RestoPendiente = Total - TotalPagado.
func aplicarSaldo(v *model.Venta, totalPagado decimal.Decimal) {
	v.TotalPagado = totalPagado
	v.RestoPendiente = v.Total.Sub(totalPagado)
}

// centavos rejects amounts finer than the two-decimal scale the columns store.
// Trailing zeros are fine: 1.500 is 1.50.
func centavos(campo string, d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return apperr.Validation("%s admite como máximo 2 decimales: %s", campo, d.String())
	}
	return nil
}
