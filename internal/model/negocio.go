package model

import (
	"time"

	"github.com/google/uuid"
)

// Negocio is a customer business. The catalog itself is maintained elsewhere;
// the settlement core only reads EsCuentaCorriente.
type Negocio struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre string    `gorm:"type:varchar(150);not null"`
	// EsCuentaCorriente marks a running-account customer: sales start as cuenta_corriente
	EsCuentaCorriente bool `gorm:"not null;default:false"`
	CreatedAt         time.Time
}

func (Negocio) TableName() string { return "negocios" }
