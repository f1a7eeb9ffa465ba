package repository

import (
	"context"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CajaRepository interface {
	ListCajas(ctx context.Context) ([]model.Caja, error)
	FindCaja(ctx context.Context, id uuid.UUID) (*model.Caja, error)
	// CreateCaja inserts a register unless one with the same name exists.
	CreateCaja(ctx context.Context, c *model.Caja) (bool, error)

	FindCierre(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error)
	FindCierreForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CierreCaja, error)
	// FindCierreDelDia returns the closing of the register for the day in the
	// given state, locking it when tx is set.
	FindCierreDelDia(ctx context.Context, tx *gorm.DB, cajaID uuid.UUID, fechaDia, estado string) (*model.CierreCaja, error)
	CountCierresDelDia(ctx context.Context, tx *gorm.DB, cajaID uuid.UUID, fechaDia string) (int64, error)
	CreateCierre(ctx context.Context, tx *gorm.DB, c *model.CierreCaja) error
	// CreateCierrePendiente inserts a pendiente closing and reports false when the
	// partial unique index already holds one for that register and day.
	CreateCierrePendiente(ctx context.Context, tx *gorm.DB, c *model.CierreCaja) (bool, error)
	UpdateCierre(ctx context.Context, tx *gorm.DB, c *model.CierreCaja) error
	ListCierres(ctx context.Context, q CierreQuery) ([]model.CierreCaja, int64, error)
	DB() *gorm.DB
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) ListCajas(ctx context.Context) ([]model.Caja, error) {
	var cajas []model.Caja
	err := r.db.WithContext(ctx).Order("nombre ASC").Find(&cajas).Error
	return cajas, err
}

func (r *cajaRepo) FindCaja(ctx context.Context, id uuid.UUID) (*model.Caja, error) {
	var c model.Caja
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *cajaRepo) CreateCaja(ctx context.Context, c *model.Caja) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "nombre"}}, DoNothing: true}).
		Create(c)
	return res.RowsAffected == 1, res.Error
}

func (r *cajaRepo) FindCierre(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error) {
	var c model.CierreCaja
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *cajaRepo) FindCierreForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CierreCaja, error) {
	var c model.CierreCaja
	q := conn(r.db, tx).WithContext(ctx)
	if tx != nil {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&c, "id = ?", id).Error
	return &c, err
}

func (r *cajaRepo) FindCierreDelDia(ctx context.Context, tx *gorm.DB, cajaID uuid.UUID, fechaDia, estado string) (*model.CierreCaja, error) {
	var c model.CierreCaja
	q := conn(r.db, tx).WithContext(ctx)
	if tx != nil {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("caja_id = ? AND fecha_dia = ? AND estado = ?", cajaID, fechaDia, estado).First(&c).Error
	return &c, err
}

func (r *cajaRepo) CountCierresDelDia(ctx context.Context, tx *gorm.DB, cajaID uuid.UUID, fechaDia string) (int64, error) {
	var n int64
	err := conn(r.db, tx).WithContext(ctx).Model(&model.CierreCaja{}).
		Where("caja_id = ? AND fecha_dia = ?", cajaID, fechaDia).
		Count(&n).Error
	return n, err
}

func (r *cajaRepo) CreateCierre(ctx context.Context, tx *gorm.DB, c *model.CierreCaja) error {
	return conn(r.db, tx).WithContext(ctx).Create(c).Error
}

func (r *cajaRepo) CreateCierrePendiente(ctx context.Context, tx *gorm.DB, c *model.CierreCaja) (bool, error) {
	res := conn(r.db, tx).WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	return res.RowsAffected == 1, res.Error
}

func (r *cajaRepo) UpdateCierre(ctx context.Context, tx *gorm.DB, c *model.CierreCaja) error {
	return conn(r.db, tx).WithContext(ctx).Save(c).Error
}

func (r *cajaRepo) ListCierres(ctx context.Context, q CierreQuery) ([]model.CierreCaja, int64, error) {
	var cierres []model.CierreCaja
	var total int64

	db := r.db.WithContext(ctx).Model(&model.CierreCaja{})
	if q.CajaID != nil {
		db = db.Where("caja_id = ?", *q.CajaID)
	}
	if q.Estado != "" {
		db = db.Where("estado = ?", q.Estado)
	}
	if q.DesdeDia != "" {
		db = db.Where("fecha_dia >= ?", q.DesdeDia)
	}
	if q.HastaDia != "" {
		db = db.Where("fecha_dia <= ?", q.HastaDia)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("fecha DESC").Offset(q.Offset).Limit(q.Limit).Find(&cierres).Error
	return cierres, total, err
}
