package repository

import (
	"context"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntregaRepository interface {
	Create(ctx context.Context, tx *gorm.DB, e *model.Entrega) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Entrega, error)
	FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Entrega, error)
	UpdateMonto(ctx context.Context, tx *gorm.DB, id uuid.UUID, monto decimal.Decimal) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	// DetachVenta nulls venta_id on every payment of a deleted sale.
	DetachVenta(ctx context.Context, tx *gorm.DB, ventaID uuid.UUID) (int64, error)
	List(ctx context.Context, q EntregaQuery) ([]model.Entrega, int64, error)
	ListByNegocio(ctx context.Context, q CuentaQuery) ([]model.Entrega, error)
	// SumPorMetodo aggregates the register's payments in the period in one GROUP BY.
	SumPorMetodo(ctx context.Context, cajaID uuid.UUID, p Periodo) (map[model.MetodoPago]decimal.Decimal, error)
}

type entregaRepo struct{ db *gorm.DB }

func NewEntregaRepository(db *gorm.DB) EntregaRepository { return &entregaRepo{db: db} }

func (r *entregaRepo) Create(ctx context.Context, tx *gorm.DB, e *model.Entrega) error {
	return conn(r.db, tx).WithContext(ctx).Create(e).Error
}

func (r *entregaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Entrega, error) {
	var e model.Entrega
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	return &e, err
}

func (r *entregaRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Entrega, error) {
	var e model.Entrega
	q := conn(r.db, tx).WithContext(ctx)
	if tx != nil {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&e, "id = ?", id).Error
	return &e, err
}

func (r *entregaRepo) UpdateMonto(ctx context.Context, tx *gorm.DB, id uuid.UUID, monto decimal.Decimal) error {
	return conn(r.db, tx).WithContext(ctx).Model(&model.Entrega{}).Where("id = ?", id).Update("monto", monto).Error
}

func (r *entregaRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return conn(r.db, tx).WithContext(ctx).Delete(&model.Entrega{}, "id = ?", id).Error
}

func (r *entregaRepo) DetachVenta(ctx context.Context, tx *gorm.DB, ventaID uuid.UUID) (int64, error) {
	res := conn(r.db, tx).WithContext(ctx).Model(&model.Entrega{}).
		Where("venta_id = ?", ventaID).
		Update("venta_id", nil)
	return res.RowsAffected, res.Error
}

func (r *entregaRepo) List(ctx context.Context, q EntregaQuery) ([]model.Entrega, int64, error) {
	var entregas []model.Entrega
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Entrega{})
	if q.CajaID != nil {
		db = db.Where("caja_id = ?", *q.CajaID)
	}
	if q.NegocioID != nil {
		db = db.Where("negocio_id = ?", *q.NegocioID)
	}
	db = q.Periodo.aplicar(db, "created_at")

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset(q.Offset).Limit(q.Limit).Find(&entregas).Error
	return entregas, total, err
}

func (r *entregaRepo) ListByNegocio(ctx context.Context, q CuentaQuery) ([]model.Entrega, error) {
	var entregas []model.Entrega
	db := r.db.WithContext(ctx).Where("negocio_id = ?", q.NegocioID)
	if q.CajaID != nil {
		db = db.Where("caja_id = ?", *q.CajaID)
	}
	err := q.Periodo.aplicar(db, "created_at").Order("created_at ASC").Find(&entregas).Error
	return entregas, err
}

type montoPorMetodo struct {
	MetodoPago model.MetodoPago
	Total      decimal.Decimal
}

func (r *entregaRepo) SumPorMetodo(ctx context.Context, cajaID uuid.UUID, p Periodo) (map[model.MetodoPago]decimal.Decimal, error) {
	var rows []montoPorMetodo
	db := r.db.WithContext(ctx).Model(&model.Entrega{}).
		Select("metodo_pago, COALESCE(SUM(monto), 0) AS total").
		Where("caja_id = ?", cajaID)
	if err := p.aplicar(db, "created_at").Group("metodo_pago").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[model.MetodoPago]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.MetodoPago] = row.Total
	}
	return out, nil
}
