package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetodoPago is the fixed payment method enumeration. Values are stable ids
// stored in entregas.metodo_pago.
type MetodoPago int

const (
	MetodoEfectivo      MetodoPago = 1
	MetodoDebito        MetodoPago = 2
	MetodoCredito       MetodoPago = 3
	MetodoTransferencia MetodoPago = 4
	MetodoQR            MetodoPago = 5
)

// MetodosPago lists every valid method in id order.
var MetodosPago = []MetodoPago{MetodoEfectivo, MetodoDebito, MetodoCredito, MetodoTransferencia, MetodoQR}

func (m MetodoPago) Valido() bool { return m >= MetodoEfectivo && m <= MetodoQR }

func (m MetodoPago) String() string {
	switch m {
	case MetodoEfectivo:
		return "efectivo"
	case MetodoDebito:
		return "debito"
	case MetodoCredito:
		return "credito"
	case MetodoTransferencia:
		return "transferencia"
	case MetodoQR:
		return "qr"
	}
	return fmt.Sprintf("metodo(%d)", int(m))
}

// Entrega is a recorded collection of money. VentaID is nil for a standalone
// collection against a running account, and is nulled when the sale is deleted.
// Append-only except through the amount correction path.
type Entrega struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	// Numero is YYYYMMDD-0001 per day, or E<unix millis> when the sequence is unavailable
	Numero     string          `gorm:"type:varchar(30);not null;index"`
	VentaID    *uuid.UUID      `gorm:"type:uuid;index"`
	CajaID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	NegocioID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	MetodoPago MetodoPago      `gorm:"type:smallint;not null"`
	Monto      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt  time.Time       `gorm:"index"`
}

func (Entrega) TableName() string { return "entregas" }
