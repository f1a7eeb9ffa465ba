package service

import (
	"context"
	"testing"
	"time"

	"cajapos/internal/apperr"
	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detalle(precio int64, cantidad int) dto.DetalleVentaRequest {
	return dto.DetalleVentaRequest{ProductoID: uuid.NewString(), PrecioUnitario: d(precio), Cantidad: cantidad}
}

func (f *fixture) crearVenta(t *testing.T, negocio, caja uuid.UUID, detalles ...dto.DetalleVentaRequest) *dto.VentaResponse {
	t.Helper()
	v, err := f.ventas.CrearVenta(context.Background(), dto.CrearVentaRequest{
		NegocioID: negocio.String(),
		CajaID:    caja.String(),
		Detalles:  detalles,
	})
	require.NoError(t, err)
	return v
}

func TestCrearVenta_ComputesTotalAndNumbers(t *testing.T) {
	f := newFixture()

	v := f.crearVenta(t, f.negocio, f.caja, detalle(100, 2), detalle(50, 1))
	assert.True(t, v.Total.Equal(d(250)))
	assert.True(t, v.TotalPagado.IsZero())
	assert.True(t, v.RestoPendiente.Equal(d(250)))
	assert.Equal(t, string(model.EstadoPendiente), v.EstadoPago)
	assert.Equal(t, "V00001", v.Numero)
	require.Len(t, v.Detalles, 2)
	assert.True(t, v.Detalles[0].Subtotal.Equal(d(200)))

	v2 := f.crearVenta(t, f.negocio, f.caja, detalle(10, 1))
	assert.Equal(t, "V00002", v2.Numero)

	assert.Equal(t, []string{dto.EventoNewSale, dto.EventoNewSale}, f.hooks.eventos())
	m := f.hooks.ultima()
	assert.Equal(t, f.caja, m.CajaID)
	assert.Equal(t, []string{CacheVentas}, m.Caches)
}

func TestCrearVenta_NumberingResetsDaily(t *testing.T) {
	f := newFixture()
	f.crearVenta(t, f.negocio, f.caja, detalle(10, 1))
	f.reloj.avanzar(24 * time.Hour)
	v := f.crearVenta(t, f.negocio, f.caja, detalle(10, 1))
	assert.Equal(t, "V00001", v.Numero)
}

func TestCrearVenta_CuentaCorriente(t *testing.T) {
	f := newFixture()
	v := f.crearVenta(t, f.negocioCorriente, f.caja, detalle(300, 1))
	assert.Equal(t, string(model.EstadoCuentaCorriente), v.EstadoPago)
}

func TestCrearVenta_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ventas.CrearVenta(ctx, dto.CrearVentaRequest{NegocioID: f.negocio.String(), CajaID: f.caja.String()})
	assert.True(t, apperr.IsValidation(err), "empty line items")

	_, err = f.ventas.CrearVenta(ctx, dto.CrearVentaRequest{
		NegocioID: uuid.NewString(), CajaID: f.caja.String(), Detalles: []dto.DetalleVentaRequest{detalle(10, 1)},
	})
	assert.True(t, apperr.IsNotFound(err), "unknown business")

	_, err = f.ventas.CrearVenta(ctx, dto.CrearVentaRequest{
		NegocioID: f.negocio.String(), CajaID: f.caja.String(), Detalles: []dto.DetalleVentaRequest{detalle(10, 0)},
	})
	assert.True(t, apperr.IsValidation(err), "zero quantity")

	assert.Empty(t, f.store.ventas)
	assert.Empty(t, f.hooks.eventos())
}

func TestEliminarVenta_DetachesPaymentsAndBroadcasts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.crearVenta(t, f.negocio, f.caja, detalle(100, 1))
	_, err := f.entregas.RegistrarEntrega(ctx, "", pago(f, v.ID, 1, 40))
	require.NoError(t, err)

	require.NoError(t, f.ventas.EliminarVenta(ctx, uuid.MustParse(v.ID), f.caja))

	_, err = f.ventas.ObtenerVenta(ctx, uuid.MustParse(v.ID))
	assert.True(t, apperr.IsNotFound(err))
	for _, e := range f.store.entregas {
		assert.Nil(t, e.VentaID, "payments survive the sale without a reference")
	}
	m := f.hooks.ultima()
	assert.Equal(t, dto.EventoSaleRemoved, m.Evento)
	assert.Equal(t, uuid.MustParse(v.ID), m.VentaID)

	snapshot, err := f.ventas.VentasDelDia(ctx, f.caja)
	require.NoError(t, err)
	assert.Empty(t, snapshot)

	// collected money stays in the day total
	total, err := f.cierres.CalcularTotalSistema(ctx, f.caja, "", "")
	require.NoError(t, err)
	assert.True(t, total.Total.Equal(d(40)))
}

func TestEliminarVenta_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.crearVenta(t, f.negocio, f.caja, detalle(100, 1))

	err := f.ventas.EliminarVenta(ctx, uuid.MustParse(v.ID), uuid.New())
	assert.True(t, apperr.IsValidation(err), "sale belongs to another register")

	err = f.ventas.EliminarVenta(ctx, uuid.New(), f.caja)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCorregirTotal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.crearVenta(t, f.negocio, f.caja, detalle(100, 2))
	id := uuid.MustParse(v.ID)
	_, err := f.entregas.RegistrarEntrega(ctx, "", pago(f, v.ID, 1, 150))
	require.NoError(t, err)

	_, err = f.ventas.CorregirTotal(ctx, id, d(120))
	assert.True(t, apperr.IsValidation(err), "below what was already paid")

	out, err := f.ventas.CorregirTotal(ctx, id, d(150))
	require.NoError(t, err)
	assert.Equal(t, string(model.EstadoPagado), out.EstadoPago)
	assert.True(t, out.RestoPendiente.IsZero())
	assert.Equal(t, dto.EventoSaleUpdated, f.hooks.ultima().Evento)

	stored := f.venta(v.ID)
	assert.True(t, stored.TotalPagado.Add(stored.RestoPendiente).Equal(stored.Total))
}

func TestMontos_RejectSubCentPrecision(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ventas.CrearVenta(ctx, dto.CrearVentaRequest{
		NegocioID: f.negocio.String(),
		CajaID:    f.caja.String(),
		Detalles: []dto.DetalleVentaRequest{
			{ProductoID: uuid.NewString(), PrecioUnitario: decimal.RequireFromString("0.005"), Cantidad: 1},
		},
	})
	assert.True(t, apperr.IsValidation(err), "half a cent")
	assert.Empty(t, f.store.ventas)

	v, err := f.ventas.CrearVenta(ctx, dto.CrearVentaRequest{
		NegocioID: f.negocio.String(),
		CajaID:    f.caja.String(),
		Detalles: []dto.DetalleVentaRequest{
			{ProductoID: uuid.NewString(), PrecioUnitario: decimal.RequireFromString("19.990"), Cantidad: 3},
		},
	})
	require.NoError(t, err)
	assert.True(t, v.Total.Equal(decimal.RequireFromString("59.97")))

	_, err = f.ventas.CorregirTotal(ctx, uuid.MustParse(v.ID), decimal.RequireFromString("60.015"))
	assert.True(t, apperr.IsValidation(err))
	assert.True(t, f.venta(v.ID).Total.Equal(decimal.RequireFromString("59.97")))

	_, err = f.cierres.CrearCierre(ctx, f.caja, decimal.RequireFromString("59.971"), nil)
	assert.True(t, apperr.IsValidation(err))
	assert.Empty(t, f.cierresDe(f.caja))
}

func TestVentasDelDia_OnlyTodayForRegister(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	otraCaja := f.nuevaCaja("Caja 2")

	ayer := f.crearVenta(t, f.negocio, f.caja, detalle(10, 1))
	f.reloj.avanzar(24 * time.Hour)
	hoy1 := f.crearVenta(t, f.negocio, f.caja, detalle(20, 1))
	f.crearVenta(t, f.negocio, otraCaja, detalle(30, 1))
	hoy2 := f.crearVenta(t, f.negocioCorriente, f.caja, detalle(40, 1))

	snapshot, err := f.ventas.VentasDelDia(ctx, f.caja)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, hoy1.ID, snapshot[0].ID)
	assert.Equal(t, hoy2.ID, snapshot[1].ID)
	for _, v := range snapshot {
		assert.NotEqual(t, ayer.ID, v.ID)
	}
}

func TestListarVentas_Filters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.crearVenta(t, f.negocio, f.caja, detalle(10, 1))
	f.crearVenta(t, f.negocioCorriente, f.caja, detalle(20, 1))

	res, err := f.ventas.ListarVentas(ctx, dto.VentaFilter{CajaID: f.caja.String(), Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)

	res, err = f.ventas.ListarVentas(ctx, dto.VentaFilter{Estado: string(model.EstadoCuentaCorriente), Page: 1, Limit: 50})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.True(t, res.Data[0].Total.Equal(decimal.NewFromInt(20)))

	_, err = f.ventas.ListarVentas(ctx, dto.VentaFilter{Fecha: "ayer", Page: 1, Limit: 50})
	assert.True(t, apperr.IsValidation(err))
}
