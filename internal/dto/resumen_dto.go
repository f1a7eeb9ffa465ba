package dto

import "github.com/shopspring/decimal"

// ResumenQuery is bound from query string of GET /v1/resumen-cuenta/negocio/:id.
type ResumenQuery struct {
	CajaID string `form:"caja_id" validate:"omitempty,uuid"`
	Desde  string `form:"desde"   validate:"omitempty,datetime=2006-01-02"`
	Hasta  string `form:"hasta"   validate:"omitempty,datetime=2006-01-02"`
}

// MovimientoCuenta is one line of the running-account statement.
// Tipo: "venta" | "entrega" | "nota_credito"
type MovimientoCuenta struct {
	Tipo    string          `json:"tipo"`
	ID      string          `json:"id"`
	Numero  string          `json:"numero,omitempty"`
	Detalle string          `json:"detalle,omitempty"`
	Fecha   string          `json:"fecha"`
	Monto   decimal.Decimal `json:"monto"`
	Saldo   decimal.Decimal `json:"saldo"`
}

type ResumenCuentaResponse struct {
	NegocioID         string             `json:"negocio_id"`
	Desde             string             `json:"desde,omitempty"`
	Hasta             string             `json:"hasta,omitempty"`
	Movimientos       []MovimientoCuenta `json:"movimientos"`
	TotalVentas       decimal.Decimal    `json:"total_ventas"`
	TotalEntregas     decimal.Decimal    `json:"total_entregas"`
	TotalNotasCredito decimal.Decimal    `json:"total_notas_credito"`
	SaldoFinal        decimal.Decimal    `json:"saldo_final"`
}
