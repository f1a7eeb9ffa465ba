package model

// Secuencia is a per-day counter row. Reserving a number is a single
// INSERT .. ON CONFLICT DO UPDATE .. RETURNING statement.
// Clave: "venta" | "entrega"
type Secuencia struct {
	Clave string `gorm:"type:varchar(20);primaryKey"`
	Fecha string `gorm:"type:varchar(10);primaryKey"`
	Valor int64  `gorm:"not null"`
}

func (Secuencia) TableName() string { return "secuencias" }
