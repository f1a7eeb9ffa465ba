package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstadoPago of a Venta. Always derived through service.DerivarEstadoPago,
// except cuenta_corriente which is only assigned at creation.
type EstadoPago string

const (
	EstadoPendiente       EstadoPago = "pendiente"
	EstadoPagoParcial     EstadoPago = "pago_parcial"
	EstadoPagado          EstadoPago = "pagado"
	EstadoDiferido        EstadoPago = "diferido"
	EstadoCuentaCorriente EstadoPago = "cuenta_corriente"
)

// Venta is a recorded sale.
// Invariant: TotalPagado + RestoPendiente == Total and RestoPendiente >= 0.
// Total is computed from the line items once and never re-derived.
type Venta struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	// Numero is V00001.. per day, reserved from the secuencias table
	Numero         string          `gorm:"type:varchar(20);not null;index"`
	CajaID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	NegocioID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClienteID      *uuid.UUID      `gorm:"type:uuid"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalPagado    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RestoPendiente decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	EstadoPago     EstadoPago      `gorm:"type:varchar(20);not null;default:'pendiente'"`
	// Version increments on every mutation; updates compare-and-swap on it
	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Detalles []DetalleVenta `gorm:"foreignKey:VentaID;constraint:OnDelete:CASCADE"`
}

// TableName overrides GORM's default singular → plural logic for Spanish names.
func (Venta) TableName() string { return "ventas" }

// DetalleVenta is an immutable line item.
type DetalleVenta struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Orden          int             `gorm:"not null"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Cantidad       int             `gorm:"not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (DetalleVenta) TableName() string { return "detalle_ventas" }
