//go:build integration

package router

// End-to-end flow against real Postgres and Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cajapos/internal/config"
	"cajapos/internal/dto"
	"cajapos/internal/infra"
	"cajapos/internal/middleware"
	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const secretoE2E = "test-secret-key-for-integration!"

type entorno struct {
	srv     *httptest.Server
	token   string
	caja    model.Caja
	negocio model.Negocio
}

func levantar(t *testing.T) *entorno {
	t.Helper()
	ctx := context.Background()

	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("cajapos_test"),
		tcpostgres.WithUsername("cajapos"),
		tcpostgres.WithPassword("cajapos"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })
	pgURL, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rd, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rd.Terminate(ctx) })
	rdURL, err := rd.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                        "test",
		ServiceName:                "cajapos-test",
		JWTSecret:                  secretoE2E,
		CORSOrigins:                "*",
		RateLimitPerMinute:         10000,
		Timezone:                   "America/Argentina/Buenos_Aires",
		CierreAutoHora:             "23:59",
		PaymentMaxRetries:          3,
		CacheInvalidationTimeoutMS: 1500,
		IdempotencyTTLHours:        1,
		WSPingIntervalSeconds:      30,
		WSSendBuffer:               16,
	}

	db, err := infra.NewDatabase(pgURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(ctx, rdURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	app, err := New(cfg, db, rdb)
	require.NoError(t, err)
	runCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	require.NoError(t, app.Start(runCtx))

	e := &entorno{
		caja:    model.Caja{ID: uuid.New(), Nombre: "Caja E2E"},
		negocio: model.Negocio{ID: uuid.New(), Nombre: "Almacén E2E"},
	}
	require.NoError(t, db.Create(&e.caja).Error)
	require.NoError(t, db.Create(&e.negocio).Error)

	e.token, err = middleware.NewToken(secretoE2E, uuid.NewString(), middleware.RolAdmin, time.Hour)
	require.NoError(t, err)

	e.srv = httptest.NewServer(app.Engine)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *entorno) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodificar(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func leerEvento(t *testing.T, ws *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&ev))
	return ev.Type, ev.Data
}

func TestE2E_VentaEntregaCierre(t *testing.T) {
	e := levantar(t)
	cajaID := e.caja.ID.String()
	negocioID := e.negocio.ID.String()

	// The terminal joins before any sale exists
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/v1/ws?caja_id=" + cajaID
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	tipo, data := leerEvento(t, ws)
	assert.Equal(t, dto.EventoInitialSales, tipo)
	assert.JSONEq(t, `[]`, string(data))

	// Sale of 200
	resp := e.do(t, http.MethodPost, "/v1/ventas", dto.CrearVentaRequest{
		NegocioID: negocioID,
		CajaID:    cajaID,
		Detalles: []dto.DetalleVentaRequest{
			{ProductoID: uuid.NewString(), PrecioUnitario: decimal.NewFromInt(100), Cantidad: 2},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var venta dto.VentaResponse
	decodificar(t, resp, &venta)
	assert.True(t, venta.Total.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "pendiente", venta.EstadoPago)

	tipo, _ = leerEvento(t, ws)
	assert.Equal(t, dto.EventoNewSale, tipo)

	// Partial payment
	resp = e.do(t, http.MethodPost, "/v1/entregas", dto.RegistrarEntregaRequest{
		VentaID: &venta.ID, CajaID: cajaID, NegocioID: negocioID,
		MetodoPago: int(model.MetodoEfectivo), Monto: decimal.NewFromInt(150),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var parcial dto.RegistrarEntregaResponse
	decodificar(t, resp, &parcial)
	require.NotNil(t, parcial.Venta)
	assert.Equal(t, "pago_parcial", parcial.Venta.EstadoPago)
	assert.True(t, parcial.Venta.RestoPendiente.Equal(decimal.NewFromInt(50)))

	tipo, _ = leerEvento(t, ws)
	assert.Equal(t, dto.EventoSaleUpdated, tipo)

	// Overpayment is rejected with the excess
	resp = e.do(t, http.MethodPost, "/v1/entregas", dto.RegistrarEntregaRequest{
		VentaID: &venta.ID, CajaID: cajaID, NegocioID: negocioID,
		MetodoPago: int(model.MetodoDebito), Monto: decimal.NewFromInt(80),
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var over map[string]string
	decodificar(t, resp, &over)
	assert.Equal(t, "30.00", over["excedente"])

	// The remaining balance, retried with the same key
	saldo := dto.RegistrarEntregaRequest{
		VentaID: &venta.ID, CajaID: cajaID, NegocioID: negocioID,
		MetodoPago: int(model.MetodoQR), Monto: decimal.NewFromInt(50),
	}
	resp = e.do(t, http.MethodPost, "/v1/entregas", saldo, "Idempotency-Key", "e2e-saldo-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var primera dto.RegistrarEntregaResponse
	decodificar(t, resp, &primera)
	require.NotNil(t, primera.Entrega)
	assert.Equal(t, "pagado", primera.Venta.EstadoPago)

	resp = e.do(t, http.MethodPost, "/v1/entregas", saldo, "Idempotency-Key", "e2e-saldo-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var repetida dto.RegistrarEntregaResponse
	decodificar(t, resp, &repetida)
	require.NotNil(t, repetida.Entrega)
	assert.Equal(t, primera.Entrega.ID, repetida.Entrega.ID)

	// System total counts 150 cash + 50 QR once
	resp = e.do(t, http.MethodGet, "/v1/cajas/"+cajaID+"/totales", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var totales dto.TotalSistemaResponse
	decodificar(t, resp, &totales)
	assert.True(t, totales.Total.Equal(decimal.NewFromInt(200)), totales.Total.String())
	assert.True(t, totales.PorMetodo.Efectivo.Equal(decimal.NewFromInt(150)))
	assert.True(t, totales.PorMetodo.QR.Equal(decimal.NewFromInt(50)))

	// Closing with an exact count
	resp = e.do(t, http.MethodPost, "/v1/cierres", dto.CrearCierreRequest{CajaID: cajaID, TotalContado: decimal.NewFromInt(200)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var cierre dto.CierreResponse
	decodificar(t, resp, &cierre)
	assert.Equal(t, "cerrado", cierre.Estado)
	assert.True(t, cierre.Desvio.Monto.IsZero())
	assert.Equal(t, "normal", cierre.Desvio.Clasificacion)
	assert.True(t, cierre.SelloValido)

	resp = e.do(t, http.MethodPost, "/v1/cierres", dto.CrearCierreRequest{CajaID: cajaID, TotalContado: decimal.NewFromInt(200)})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The sweep finds the closed register and leaves it alone
	resp = e.do(t, http.MethodPost, "/v1/cierres/auto?fecha="+cierre.FechaDia, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reporte dto.ReporteBarridoResponse
	decodificar(t, resp, &reporte)
	assert.Contains(t, reporte.Existentes, cajaID)
	assert.NotContains(t, reporte.Creados, cajaID)
	assert.Empty(t, reporte.Fallidos)
}

func TestE2E_HealthAndAuth(t *testing.T) {
	e := levantar(t)

	resp, err := e.srv.Client().Get(e.srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	decodificar(t, resp, &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "connected", health["db"])
	assert.Equal(t, "connected", health["redis"])

	resp, err = e.srv.Client().Get(e.srv.URL + "/v1/ventas")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
