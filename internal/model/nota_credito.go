package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotaCredito reduces a running-account balance. Read-only for the settlement core.
type NotaCredito struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NegocioID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClienteID *uuid.UUID      `gorm:"type:uuid"`
	CajaID    *uuid.UUID      `gorm:"type:uuid;index"`
	Monto     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Motivo    string          `gorm:"not null"`
	CreatedAt time.Time       `gorm:"index"`
}

func (NotaCredito) TableName() string { return "notas_credito" }
