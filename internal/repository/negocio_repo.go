package repository

import (
	"context"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NegocioRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Negocio, error)
	ListNotasCredito(ctx context.Context, q CuentaQuery) ([]model.NotaCredito, error)
}

type negocioRepo struct{ db *gorm.DB }

func NewNegocioRepository(db *gorm.DB) NegocioRepository { return &negocioRepo{db: db} }

func (r *negocioRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Negocio, error) {
	var n model.Negocio
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	return &n, err
}

func (r *negocioRepo) ListNotasCredito(ctx context.Context, q CuentaQuery) ([]model.NotaCredito, error) {
	var notas []model.NotaCredito
	db := r.db.WithContext(ctx).Where("negocio_id = ?", q.NegocioID)
	if q.CajaID != nil {
		db = db.Where("caja_id = ?", *q.CajaID)
	}
	err := q.Periodo.aplicar(db, "created_at").Order("created_at ASC").Find(&notas).Error
	return notas, err
}
