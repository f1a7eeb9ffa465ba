package repository

import (
	"context"

	"gorm.io/gorm"
)

// SecuenciaRepository hands out per-day counters. Each call is one atomic
// upsert, so concurrent callers never observe the same value.
type SecuenciaRepository interface {
	Reservar(ctx context.Context, tx *gorm.DB, clave, fecha string) (int64, error)
}

const reservarSQL = `INSERT INTO secuencias (clave, fecha, valor) VALUES (?, ?, 1)
ON CONFLICT (clave, fecha) DO UPDATE SET valor = secuencias.valor + 1
RETURNING valor`

type secuenciaRepo struct{ db *gorm.DB }

func NewSecuenciaRepository(db *gorm.DB) SecuenciaRepository { return &secuenciaRepo{db: db} }

func (r *secuenciaRepo) Reservar(ctx context.Context, tx *gorm.DB, clave, fecha string) (int64, error) {
	var valor int64
	err := conn(r.db, tx).WithContext(ctx).Raw(reservarSQL, clave, fecha).Scan(&valor).Error
	return valor, err
}
