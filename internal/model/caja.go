package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Caja is a physical register. Created by configuration (cmd/seedcajas),
// never deleted in normal operation.
type Caja struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre    string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	CreatedAt time.Time
}

// TableName overrides GORM's default singular → plural logic for Spanish names.
func (Caja) TableName() string { return "cajas" }

// Estado values for CierreCaja.
const (
	CierrePendiente = "pendiente"
	CierreCerrado   = "cerrado"
)

// CierreCaja is the end-of-day reconciliation record of a register.
// At most one pendiente and one cerrado row exist per (caja_id, fecha_dia);
// both are enforced by partial unique indexes created in infra.NewDatabase.
// A close transitions the pendiente row in place.
type CierreCaja struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CajaID uuid.UUID `gorm:"type:uuid;not null;index"`
	// UsuarioID is nil while the closing is pendiente
	UsuarioID *uuid.UUID `gorm:"type:uuid"`
	// FechaDia is the business day (in TIMEZONE) the closing settles, formatted YYYY-MM-DD
	FechaDia     string          `gorm:"type:varchar(10);not null;index"`
	TotalSistema decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalContado decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// Diferencia = TotalContado - TotalSistema
	Diferencia decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// ClasificacionDesvio: "normal" | "advertencia" | "critico"
	ClasificacionDesvio  string          `gorm:"type:varchar(20);not null;default:'normal'"`
	TotalCuentaCorriente decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalDiferido        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Estado               string          `gorm:"type:varchar(20);not null;default:'pendiente'"`
	// Sello is a hex SHA-256 over the settled fields, see service.SellarCierre
	Sello     string    `gorm:"type:char(64);not null"`
	Fecha     time.Time `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Caja *Caja `gorm:"foreignKey:CajaID"`
}

func (CierreCaja) TableName() string { return "cierres_caja" }
