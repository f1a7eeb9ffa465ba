package repository

import (
	"context"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VentaRepository interface {
	Create(ctx context.Context, tx *gorm.DB, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	// FindForUpdate loads the sale with SELECT .. FOR UPDATE when tx is set.
	FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	// UpdateSaldos writes total, paid, remaining and state if the stored version
	// still equals v.Version, then bumps the version. Returns false on a lost update.
	UpdateSaldos(ctx context.Context, tx *gorm.DB, v *model.Venta) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int64, error)
	List(ctx context.Context, q VentaQuery) ([]model.Venta, int64, error)
	// ListDelDia returns the register's sales in the period, oldest first.
	ListDelDia(ctx context.Context, cajaID uuid.UUID, p Periodo) ([]model.Venta, error)
	ListByNegocio(ctx context.Context, q CuentaQuery) ([]model.Venta, error)
	SumPagadas(ctx context.Context, cajaID uuid.UUID, p Periodo) (decimal.Decimal, error)
	SumPagadasPorCaja(ctx context.Context, p Periodo) (map[uuid.UUID]decimal.Decimal, error)
	// SumPendientes returns the total of cuenta_corriente sales and the
	// remaining balance of diferido sales in the period.
	SumPendientes(ctx context.Context, cajaID uuid.UUID, p Periodo) (cuentaCorriente, diferido decimal.Decimal, err error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) DB() *gorm.DB { return r.db }

func (r *ventaRepo) Create(ctx context.Context, tx *gorm.DB, v *model.Venta) error {
	return conn(r.db, tx).WithContext(ctx).Create(v).Error
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).
		Preload("Detalles", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		First(&v, "id = ?", id).Error
	return &v, err
}

func (r *ventaRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	q := conn(r.db, tx).WithContext(ctx)
	if tx != nil {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&v, "id = ?", id).Error
	return &v, err
}

func (r *ventaRepo) UpdateSaldos(ctx context.Context, tx *gorm.DB, v *model.Venta) (bool, error) {
	res := conn(r.db, tx).WithContext(ctx).Model(&model.Venta{}).
		Where("id = ? AND version = ?", v.ID, v.Version).
		Updates(map[string]interface{}{
			"total":           v.Total,
			"total_pagado":    v.TotalPagado,
			"resto_pendiente": v.RestoPendiente,
			"estado_pago":     v.EstadoPago,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ventaRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int64, error) {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Where("venta_id = ?", id).Delete(&model.DetalleVenta{}).Error; err != nil {
		return 0, err
	}
	res := db.Delete(&model.Venta{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *ventaRepo) List(ctx context.Context, q VentaQuery) ([]model.Venta, int64, error) {
	var ventas []model.Venta
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Venta{})
	if q.CajaID != nil {
		db = db.Where("caja_id = ?", *q.CajaID)
	}
	if q.NegocioID != nil {
		db = db.Where("negocio_id = ?", *q.NegocioID)
	}
	if q.Estado != "" {
		db = db.Where("estado_pago = ?", q.Estado)
	}
	db = q.Periodo.aplicar(db, "created_at")

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Detalles", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Order("created_at DESC").
		Offset(q.Offset).Limit(q.Limit).
		Find(&ventas).Error

	return ventas, total, err
}

func (r *ventaRepo) ListDelDia(ctx context.Context, cajaID uuid.UUID, p Periodo) ([]model.Venta, error) {
	var ventas []model.Venta
	db := r.db.WithContext(ctx).Where("caja_id = ?", cajaID)
	err := p.aplicar(db, "created_at").
		Preload("Detalles", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Order("created_at ASC").
		Find(&ventas).Error
	return ventas, err
}

func (r *ventaRepo) ListByNegocio(ctx context.Context, q CuentaQuery) ([]model.Venta, error) {
	var ventas []model.Venta
	db := r.db.WithContext(ctx).Where("negocio_id = ?", q.NegocioID)
	if q.CajaID != nil {
		db = db.Where("caja_id = ?", *q.CajaID)
	}
	err := q.Periodo.aplicar(db, "created_at").Order("created_at ASC").Find(&ventas).Error
	return ventas, err
}

func (r *ventaRepo) SumPagadas(ctx context.Context, cajaID uuid.UUID, p Periodo) (decimal.Decimal, error) {
	var total decimal.Decimal
	db := r.db.WithContext(ctx).Model(&model.Venta{}).
		Select("COALESCE(SUM(total), 0)").
		Where("caja_id = ? AND estado_pago = ?", cajaID, model.EstadoPagado)
	err := p.aplicar(db, "created_at").Row().Scan(&total)
	return total, err
}

type totalPorCaja struct {
	CajaID uuid.UUID
	Total  decimal.Decimal
}

func (r *ventaRepo) SumPagadasPorCaja(ctx context.Context, p Periodo) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []totalPorCaja
	db := r.db.WithContext(ctx).Model(&model.Venta{}).
		Select("caja_id, COALESCE(SUM(total), 0) AS total").
		Where("estado_pago = ?", model.EstadoPagado)
	if err := p.aplicar(db, "created_at").Group("caja_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.CajaID] = row.Total
	}
	return out, nil
}

type sumPendientes struct {
	CuentaCorriente decimal.Decimal
	Diferido        decimal.Decimal
}

func (r *ventaRepo) SumPendientes(ctx context.Context, cajaID uuid.UUID, p Periodo) (decimal.Decimal, decimal.Decimal, error) {
	var row sumPendientes
	db := r.db.WithContext(ctx).Model(&model.Venta{}).
		Select(
			"COALESCE(SUM(CASE WHEN estado_pago = ? THEN total ELSE 0 END), 0) AS cuenta_corriente, "+
				"COALESCE(SUM(CASE WHEN estado_pago = ? THEN resto_pendiente ELSE 0 END), 0) AS diferido",
			model.EstadoCuentaCorriente, model.EstadoDiferido,
		).
		Where("caja_id = ?", cajaID)
	err := p.aplicar(db, "created_at").Scan(&row).Error
	return row.CuentaCorriente, row.Diferido, err
}
