package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
type VentaFilter struct {
	CajaID    string `form:"caja_id"    validate:"omitempty,uuid"`
	NegocioID string `form:"negocio_id" validate:"omitempty,uuid"`
	Fecha     string `form:"fecha"      validate:"omitempty,datetime=2006-01-02"` // empty = today
	Estado    string `form:"estado"     validate:"omitempty,oneof=pendiente pago_parcial pagado diferido cuenta_corriente"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type DetalleVentaRequest struct {
	ProductoID     string          `json:"producto_id"     validate:"required,uuid"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"min=0"`
	Cantidad       int             `json:"cantidad"        validate:"required,min=1"`
}

type CrearVentaRequest struct {
	NegocioID string                `json:"negocio_id" validate:"required,uuid"`
	CajaID    string                `json:"caja_id"    validate:"required,uuid"`
	ClienteID *string               `json:"cliente_id" validate:"omitempty,uuid"`
	Detalles  []DetalleVentaRequest `json:"detalles"   validate:"dive"`
}

// CorregirTotalRequest is the explicit correction path for a sale total.
type CorregirTotalRequest struct {
	Total decimal.Decimal `json:"total" validate:"min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DetalleVentaResponse struct {
	ProductoID     string          `json:"producto_id"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Cantidad       int             `json:"cantidad"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// VentaResponse is also the Sale payload of realtime events.
type VentaResponse struct {
	ID             string                 `json:"id"`
	Numero         string                 `json:"numero"`
	CajaID         string                 `json:"caja_id"`
	NegocioID      string                 `json:"negocio_id"`
	ClienteID      *string                `json:"cliente_id"`
	Detalles       []DetalleVentaResponse `json:"detalles"`
	Total          decimal.Decimal        `json:"total"`
	TotalPagado    decimal.Decimal        `json:"total_pagado"`
	RestoPendiente decimal.Decimal        `json:"resto_pendiente"`
	EstadoPago     string                 `json:"estado_pago"`
	CreatedAt      string                 `json:"created_at"`
}
