package service

import (
	"context"
	"testing"
	"time"

	"cajapos/internal/apperr"
	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumenCuenta_RunningBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v := f.crearVenta(t, f.negocio, f.caja, detalle(100, 3))
	_, err := f.entregas.RegistrarEntrega(ctx, "", pago(f, v.ID, 1, 120))
	require.NoError(t, err)
	f.store.notas = append(f.store.notas, model.NotaCredito{
		ID: uuid.New(), NegocioID: f.negocio, Monto: d(30), Motivo: "devolución", CreatedAt: f.reloj.ahora(),
	})
	// another business never shows up
	f.crearVenta(t, f.negocioCorriente, f.caja, detalle(999, 1))

	res, err := f.resumen.ResumenCuenta(ctx, f.negocio, dto.ResumenQuery{})
	require.NoError(t, err)
	require.Len(t, res.Movimientos, 3)

	assert.Equal(t, "venta", res.Movimientos[0].Tipo)
	assert.True(t, res.Movimientos[0].Saldo.Equal(d(300)))
	assert.Equal(t, "entrega", res.Movimientos[1].Tipo)
	assert.True(t, res.Movimientos[1].Saldo.Equal(d(180)))
	assert.Equal(t, "nota_credito", res.Movimientos[2].Tipo)
	assert.True(t, res.Movimientos[2].Saldo.Equal(d(150)))

	assert.True(t, res.TotalVentas.Equal(d(300)))
	assert.True(t, res.TotalEntregas.Equal(d(120)))
	assert.True(t, res.TotalNotasCredito.Equal(d(30)))
	assert.True(t, res.SaldoFinal.Equal(d(150)))
}

func TestResumenCuenta_PeriodAndErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.crearVenta(t, f.negocio, f.caja, detalle(10, 1))
	f.reloj.avanzar(48 * time.Hour)
	f.crearVenta(t, f.negocio, f.caja, detalle(20, 1))

	res, err := f.resumen.ResumenCuenta(ctx, f.negocio, dto.ResumenQuery{Desde: "2026-10-16"})
	require.NoError(t, err)
	require.Len(t, res.Movimientos, 1)
	assert.True(t, res.SaldoFinal.Equal(d(20)))

	_, err = f.resumen.ResumenCuenta(ctx, uuid.New(), dto.ResumenQuery{})
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.resumen.ResumenCuenta(ctx, f.negocio, dto.ResumenQuery{CajaID: "caja-1"})
	assert.True(t, apperr.IsValidation(err))
}
