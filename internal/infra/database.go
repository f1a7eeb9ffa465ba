package infra

import (
	"fmt"
	"time"

	"cajapos/internal/model"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the GORM connection, installs tracing, then migrates the
// schema. TranslateError is required: closings rely on gorm.ErrDuplicatedKey
// to detect a second row for the same day.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return nil, fmt.Errorf("otelgorm: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Models lists every migrated table, parents first.
func Models() []any {
	return []any{
		&model.Caja{},
		&model.Negocio{},
		&model.Venta{},
		&model.DetalleVenta{},
		&model.Entrega{},
		&model.NotaCredito{},
		&model.CierreCaja{},
		&model.Secuencia{},
	}
}

// RunMigrations creates or updates every table, then applies the constraints
// AutoMigrate cannot express. Safe to run on every start.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

type schemaPatch struct{ descr, sql string }

// schemaPatches is idempotent DDL: partial unique indexes and CHECK
// constraints backing the ledger invariants. Table names must match the
// models' TableName.
var schemaPatches = []schemaPatch{
	// one pendiente and one cerrado closing per register and day
	{"uniq pending closing", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_cierres_caja_pendiente
    ON cierres_caja (caja_id, fecha_dia) WHERE estado = 'pendiente'`},
	{"uniq closed closing", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_cierres_caja_cerrado
    ON cierres_caja (caja_id, fecha_dia) WHERE estado = 'cerrado'`},
	{"ventas balance check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_ventas_saldo') THEN
    ALTER TABLE ventas ADD CONSTRAINT chk_ventas_saldo
      CHECK (resto_pendiente >= 0 AND total_pagado >= 0 AND total_pagado + resto_pendiente = total);
  END IF;
END $$`},
	{"entregas positive amount", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_entregas_monto') THEN
    ALTER TABLE entregas ADD CONSTRAINT chk_entregas_monto CHECK (monto > 0);
  END IF;
END $$`},
	{"entregas day index", `
CREATE INDEX IF NOT EXISTS idx_entregas_caja_fecha ON entregas (caja_id, created_at)`},
	{"ventas day index", `
CREATE INDEX IF NOT EXISTS idx_ventas_caja_fecha ON ventas (caja_id, created_at)`},
}

func applySchemaPatches(db *gorm.DB) error {
	for _, p := range schemaPatches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
