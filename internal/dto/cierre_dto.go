package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// CierreFilter is bound from query string of GET /v1/cierres.
type CierreFilter struct {
	CajaID string `form:"caja_id" validate:"omitempty,uuid"`
	Estado string `form:"estado"  validate:"omitempty,oneof=pendiente cerrado"`
	Desde  string `form:"desde"   validate:"omitempty,datetime=2006-01-02"`
	Hasta  string `form:"hasta"   validate:"omitempty,datetime=2006-01-02"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type CierreListResponse struct {
	Data  []CierreResponse `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// TotalesQuery is bound from query string of GET /v1/cajas/:id/totales and /v1/cajas/totales-dia.
type TotalesQuery struct {
	Fecha string `form:"fecha" validate:"omitempty,datetime=2006-01-02"`
	Modo  string `form:"modo"  validate:"omitempty,oneof=entregas ventas_pagadas"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearCierreRequest struct {
	CajaID       string          `json:"caja_id"       validate:"required,uuid"`
	TotalContado decimal.Decimal `json:"total_contado" validate:"min=0"`
}

// CerrarCierreRequest closes a pending closing. TotalContado is optional;
// when absent the amount already stored on the closing is kept.
type CerrarCierreRequest struct {
	TotalContado *decimal.Decimal `json:"total_contado"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MontosPorMetodo struct {
	Efectivo      decimal.Decimal `json:"efectivo"`
	Debito        decimal.Decimal `json:"debito"`
	Credito       decimal.Decimal `json:"credito"`
	Transferencia decimal.Decimal `json:"transferencia"`
	QR            decimal.Decimal `json:"qr"`
}

type TotalSistemaResponse struct {
	CajaID    string          `json:"caja_id"`
	Fecha     string          `json:"fecha"`
	Modo      string          `json:"modo"` // entregas | ventas_pagadas
	Total     decimal.Decimal `json:"total"`
	PorMetodo MontosPorMetodo `json:"por_metodo"`
}

type TotalesDiaResponse struct {
	Fecha string                 `json:"fecha"`
	Modo  string                 `json:"modo"`
	Cajas []TotalSistemaResponse `json:"cajas"`
	Total decimal.Decimal        `json:"total"`
}

type DesvioResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

type CierreResponse struct {
	ID                   string          `json:"id"`
	CajaID               string          `json:"caja_id"`
	UsuarioID            *string         `json:"usuario_id"`
	FechaDia             string          `json:"fecha_dia"`
	TotalSistema         decimal.Decimal `json:"total_sistema"`
	TotalContado         decimal.Decimal `json:"total_contado"`
	Desvio               DesvioResponse  `json:"desvio"`
	TotalCuentaCorriente decimal.Decimal `json:"total_cuenta_corriente"`
	TotalDiferido        decimal.Decimal `json:"total_diferido"`
	Estado               string          `json:"estado"`
	Sello                string          `json:"sello"`
	SelloValido          bool            `json:"sello_valido"`
	Fecha                string          `json:"fecha"`
}

type FalloBarrido struct {
	CajaID string `json:"caja_id"`
	Error  string `json:"error"`
}

// ReporteBarridoResponse summarises one run of the pending-closing sweep.
type ReporteBarridoResponse struct {
	Fecha      string         `json:"fecha"`
	Creados    []string       `json:"creados"`    // caja ids that got a new pending closing
	Existentes []string       `json:"existentes"` // caja ids that already had a closing for the day
	Fallidos   []FalloBarrido `json:"fallidos"`
}

type CajaResponse struct {
	ID       string          `json:"id"`
	Nombre   string          `json:"nombre"`
	TotalDia decimal.Decimal `json:"total_dia"` // paid sales of the current day
}
