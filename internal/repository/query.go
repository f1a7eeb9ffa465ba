package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Periodo is a half-open time range [Desde, Hasta). Services build it from the
// business day in the configured timezone; a zero Periodo means no time filter.
type Periodo struct {
	Desde time.Time
	Hasta time.Time
}

func (p Periodo) aplicar(q *gorm.DB, col string) *gorm.DB {
	if !p.Desde.IsZero() {
		q = q.Where(col+" >= ?", p.Desde)
	}
	if !p.Hasta.IsZero() {
		q = q.Where(col+" < ?", p.Hasta)
	}
	return q
}

type VentaQuery struct {
	CajaID    *uuid.UUID
	NegocioID *uuid.UUID
	Estado    string
	Periodo   Periodo
	Offset    int
	Limit     int
}

type EntregaQuery struct {
	CajaID    *uuid.UUID
	NegocioID *uuid.UUID
	Periodo   Periodo
	Offset    int
	Limit     int
}

// CierreQuery filters closings by business day (YYYY-MM-DD, inclusive).
type CierreQuery struct {
	CajaID   *uuid.UUID
	Estado   string
	DesdeDia string
	HastaDia string
	Offset   int
	Limit    int
}

// CuentaQuery scopes the running-account statement of a business.
type CuentaQuery struct {
	NegocioID uuid.UUID
	CajaID    *uuid.UUID
	Periodo   Periodo
}

// conn returns tx when the call is part of a transaction, db otherwise.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
