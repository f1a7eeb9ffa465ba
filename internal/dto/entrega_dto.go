package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// EntregaFilter is bound from query string of GET /v1/entregas.
// Desde/Hasta are inclusive days; empty Desde and Hasta mean today.
type EntregaFilter struct {
	NegocioID string `form:"negocio_id" validate:"omitempty,uuid"`
	CajaID    string `form:"caja_id"    validate:"omitempty,uuid"`
	Desde     string `form:"desde"      validate:"omitempty,datetime=2006-01-02"`
	Hasta     string `form:"hasta"      validate:"omitempty,datetime=2006-01-02"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type EntregaListResponse struct {
	Data  []EntregaResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// RegistrarEntregaRequest records a payment, or defers the sale when Diferir is set.
// MetodoPago is the fixed id 1..5; it is ignored when deferring.
type RegistrarEntregaRequest struct {
	VentaID    *string         `json:"venta_id"    validate:"omitempty,uuid"`
	CajaID     string          `json:"caja_id"     validate:"required,uuid"`
	NegocioID  string          `json:"negocio_id"  validate:"required,uuid"`
	MetodoPago int             `json:"metodo_pago"`
	Monto      decimal.Decimal `json:"monto"`
	Diferir    bool            `json:"diferir"`
}

// CorregirMontoRequest rewrites the amount of an existing payment.
type CorregirMontoRequest struct {
	Monto decimal.Decimal `json:"monto" validate:"gt=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type EntregaResponse struct {
	ID         string          `json:"id"`
	Numero     string          `json:"numero"`
	VentaID    *string         `json:"venta_id"`
	CajaID     string          `json:"caja_id"`
	NegocioID  string          `json:"negocio_id"`
	MetodoPago int             `json:"metodo_pago"`
	Metodo     string          `json:"metodo"` // efectivo | debito | credito | transferencia | qr
	Monto      decimal.Decimal `json:"monto"`
	CreatedAt  string          `json:"created_at"`
}

// RegistrarEntregaResponse carries the created payment (nil when deferring)
// and the sale after the mutation (nil for a standalone collection).
type RegistrarEntregaResponse struct {
	Entrega *EntregaResponse `json:"entrega"`
	Venta   *VentaResponse   `json:"venta"`
}
