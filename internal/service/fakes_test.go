package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	lecturaBackoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
	}
}

var errConexion = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

// ── In-memory store shared by the fake repositories ─────────────────────────
// Every read returns a copy so the services observe storage the way they would
// through a database: a stale copy loses its compare-and-swap.

type memStore struct {
	mu         sync.Mutex
	ventas     map[uuid.UUID]model.Venta
	entregas   map[uuid.UUID]model.Entrega
	cajas      map[uuid.UUID]model.Caja
	cierres    map[uuid.UUID]model.CierreCaja
	negocios   map[uuid.UUID]model.Negocio
	notas      []model.NotaCredito
	secuencias map[string]int64

	// failure injection
	secuenciaRota  bool
	fallasSuma     int                // SumPorMetodo fails this many times
	cajaRota       map[uuid.UUID]bool // SumPorMetodo always fails for these
	casPerdidos    int                // UpdateSaldos reports a lost update this many times
	updateSaldosOK int
}

func newMemStore() *memStore {
	return &memStore{
		ventas:     make(map[uuid.UUID]model.Venta),
		entregas:   make(map[uuid.UUID]model.Entrega),
		cajas:      make(map[uuid.UUID]model.Caja),
		cierres:    make(map[uuid.UUID]model.CierreCaja),
		negocios:   make(map[uuid.UUID]model.Negocio),
		secuencias: make(map[string]int64),
		cajaRota:   make(map[uuid.UUID]bool),
	}
}

func enPeriodo(t time.Time, p repository.Periodo) bool {
	if !p.Desde.IsZero() && t.Before(p.Desde) {
		return false
	}
	if !p.Hasta.IsZero() && !t.Before(p.Hasta) {
		return false
	}
	return true
}

func copiarVenta(v model.Venta) *model.Venta {
	v.Detalles = append([]model.DetalleVenta(nil), v.Detalles...)
	return &v
}

func paginar[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// ── VentaRepository ─────────────────────────────────────────────────────────

type fakeVentaRepo struct{ *memStore }

var _ repository.VentaRepository = (*fakeVentaRepo)(nil)

func (r *fakeVentaRepo) DB() *gorm.DB { return nil }

func (r *fakeVentaRepo) Create(_ context.Context, _ *gorm.DB, v *model.Venta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	r.ventas[v.ID] = *copiarVenta(*v)
	return nil
}

func (r *fakeVentaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.ventas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copiarVenta(v), nil
}

func (r *fakeVentaRepo) FindForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeVentaRepo) UpdateSaldos(_ context.Context, _ *gorm.DB, v *model.Venta) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.casPerdidos > 0 {
		r.casPerdidos--
		return false, nil
	}
	actual, ok := r.ventas[v.ID]
	if !ok || actual.Version != v.Version {
		return false, nil
	}
	actual.Total = v.Total
	actual.TotalPagado = v.TotalPagado
	actual.RestoPendiente = v.RestoPendiente
	actual.EstadoPago = v.EstadoPago
	actual.Version++
	r.ventas[v.ID] = actual
	r.updateSaldosOK++
	return true, nil
}

func (r *fakeVentaRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ventas[id]; !ok {
		return 0, nil
	}
	delete(r.ventas, id)
	return 1, nil
}

func (r *fakeVentaRepo) filtrar(keep func(v model.Venta) bool) []model.Venta {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Venta
	for _, v := range r.ventas {
		if keep(v) {
			out = append(out, *copiarVenta(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *fakeVentaRepo) List(_ context.Context, q repository.VentaQuery) ([]model.Venta, int64, error) {
	out := r.filtrar(func(v model.Venta) bool {
		return (q.CajaID == nil || v.CajaID == *q.CajaID) &&
			(q.NegocioID == nil || v.NegocioID == *q.NegocioID) &&
			(q.Estado == "" || string(v.EstadoPago) == q.Estado) &&
			enPeriodo(v.CreatedAt, q.Periodo)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginar(out, q.Offset, q.Limit), int64(len(out)), nil
}

func (r *fakeVentaRepo) ListDelDia(_ context.Context, cajaID uuid.UUID, p repository.Periodo) ([]model.Venta, error) {
	return r.filtrar(func(v model.Venta) bool { return v.CajaID == cajaID && enPeriodo(v.CreatedAt, p) }), nil
}

func (r *fakeVentaRepo) ListByNegocio(_ context.Context, q repository.CuentaQuery) ([]model.Venta, error) {
	return r.filtrar(func(v model.Venta) bool {
		return v.NegocioID == q.NegocioID && (q.CajaID == nil || v.CajaID == *q.CajaID) && enPeriodo(v.CreatedAt, q.Periodo)
	}), nil
}

func (r *fakeVentaRepo) SumPagadas(_ context.Context, cajaID uuid.UUID, p repository.Periodo) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, v := range r.filtrar(func(v model.Venta) bool {
		return v.CajaID == cajaID && v.EstadoPago == model.EstadoPagado && enPeriodo(v.CreatedAt, p)
	}) {
		total = total.Add(v.Total)
	}
	return total, nil
}

func (r *fakeVentaRepo) SumPagadasPorCaja(_ context.Context, p repository.Periodo) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, v := range r.filtrar(func(v model.Venta) bool { return v.EstadoPago == model.EstadoPagado && enPeriodo(v.CreatedAt, p) }) {
		out[v.CajaID] = out[v.CajaID].Add(v.Total)
	}
	return out, nil
}

func (r *fakeVentaRepo) SumPendientes(_ context.Context, cajaID uuid.UUID, p repository.Periodo) (decimal.Decimal, decimal.Decimal, error) {
	cc, dif := decimal.Zero, decimal.Zero
	for _, v := range r.filtrar(func(v model.Venta) bool { return v.CajaID == cajaID && enPeriodo(v.CreatedAt, p) }) {
		switch v.EstadoPago {
		case model.EstadoCuentaCorriente:
			cc = cc.Add(v.Total)
		case model.EstadoDiferido:
			dif = dif.Add(v.RestoPendiente)
		}
	}
	return cc, dif, nil
}

// ── EntregaRepository ───────────────────────────────────────────────────────

type fakeEntregaRepo struct{ *memStore }

var _ repository.EntregaRepository = (*fakeEntregaRepo)(nil)

func (r *fakeEntregaRepo) Create(_ context.Context, _ *gorm.DB, e *model.Entrega) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.entregas[e.ID] = *e
	return nil
}

func (r *fakeEntregaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Entrega, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entregas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r *fakeEntregaRepo) FindForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Entrega, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeEntregaRepo) UpdateMonto(_ context.Context, _ *gorm.DB, id uuid.UUID, monto decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entregas[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.Monto = monto
	r.entregas[id] = e
	return nil
}

func (r *fakeEntregaRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entregas, id)
	return nil
}

func (r *fakeEntregaRepo) DetachVenta(_ context.Context, _ *gorm.DB, ventaID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.entregas {
		if e.VentaID != nil && *e.VentaID == ventaID {
			e.VentaID = nil
			r.entregas[id] = e
			n++
		}
	}
	return n, nil
}

func (r *fakeEntregaRepo) filtrar(keep func(e model.Entrega) bool) []model.Entrega {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Entrega
	for _, e := range r.entregas {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *fakeEntregaRepo) List(_ context.Context, q repository.EntregaQuery) ([]model.Entrega, int64, error) {
	out := r.filtrar(func(e model.Entrega) bool {
		return (q.CajaID == nil || e.CajaID == *q.CajaID) &&
			(q.NegocioID == nil || e.NegocioID == *q.NegocioID) &&
			enPeriodo(e.CreatedAt, q.Periodo)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginar(out, q.Offset, q.Limit), int64(len(out)), nil
}

func (r *fakeEntregaRepo) ListByNegocio(_ context.Context, q repository.CuentaQuery) ([]model.Entrega, error) {
	return r.filtrar(func(e model.Entrega) bool {
		return e.NegocioID == q.NegocioID && (q.CajaID == nil || e.CajaID == *q.CajaID) && enPeriodo(e.CreatedAt, q.Periodo)
	}), nil
}

func (r *fakeEntregaRepo) SumPorMetodo(_ context.Context, cajaID uuid.UUID, p repository.Periodo) (map[model.MetodoPago]decimal.Decimal, error) {
	r.mu.Lock()
	if r.cajaRota[cajaID] {
		r.mu.Unlock()
		return nil, errConexion
	}
	if r.fallasSuma > 0 {
		r.fallasSuma--
		r.mu.Unlock()
		return nil, errConexion
	}
	r.mu.Unlock()

	out := make(map[model.MetodoPago]decimal.Decimal)
	for _, e := range r.filtrar(func(e model.Entrega) bool { return e.CajaID == cajaID && enPeriodo(e.CreatedAt, p) }) {
		out[e.MetodoPago] = out[e.MetodoPago].Add(e.Monto)
	}
	return out, nil
}

// ── CajaRepository ──────────────────────────────────────────────────────────

type fakeCajaRepo struct{ *memStore }

var _ repository.CajaRepository = (*fakeCajaRepo)(nil)

func (r *fakeCajaRepo) DB() *gorm.DB { return nil }

func (r *fakeCajaRepo) ListCajas(_ context.Context) ([]model.Caja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Caja, 0, len(r.cajas))
	for _, c := range r.cajas {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *fakeCajaRepo) FindCaja(_ context.Context, id uuid.UUID) (*model.Caja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cajas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeCajaRepo) CreateCaja(_ context.Context, c *model.Caja) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existente := range r.cajas {
		if existente.Nombre == c.Nombre {
			return false, nil
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.cajas[c.ID] = *c
	return true, nil
}

func (r *fakeCajaRepo) FindCierre(_ context.Context, id uuid.UUID) (*model.CierreCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cierres[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeCajaRepo) FindCierreForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.CierreCaja, error) {
	return r.FindCierre(ctx, id)
}

func (r *fakeCajaRepo) FindCierreDelDia(_ context.Context, _ *gorm.DB, cajaID uuid.UUID, fechaDia, estado string) (*model.CierreCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cierres {
		if c.CajaID == cajaID && c.FechaDia == fechaDia && c.Estado == estado {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCajaRepo) CountCierresDelDia(_ context.Context, _ *gorm.DB, cajaID uuid.UUID, fechaDia string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.cierres {
		if c.CajaID == cajaID && c.FechaDia == fechaDia {
			n++
		}
	}
	return n, nil
}

// insertar enforces the partial unique indexes on (caja_id, fecha_dia, estado).
func (r *fakeCajaRepo) insertar(c *model.CierreCaja) bool {
	for _, existente := range r.cierres {
		if existente.CajaID == c.CajaID && existente.FechaDia == c.FechaDia && existente.Estado == c.Estado {
			return false
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.cierres[c.ID] = *c
	return true
}

func (r *fakeCajaRepo) CreateCierre(_ context.Context, _ *gorm.DB, c *model.CierreCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.insertar(c) {
		return gorm.ErrDuplicatedKey
	}
	return nil
}

func (r *fakeCajaRepo) CreateCierrePendiente(_ context.Context, _ *gorm.DB, c *model.CierreCaja) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertar(c), nil
}

func (r *fakeCajaRepo) UpdateCierre(_ context.Context, _ *gorm.DB, c *model.CierreCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cierres[c.ID] = *c
	return nil
}

func (r *fakeCajaRepo) ListCierres(_ context.Context, q repository.CierreQuery) ([]model.CierreCaja, int64, error) {
	r.mu.Lock()
	var out []model.CierreCaja
	for _, c := range r.cierres {
		if (q.CajaID == nil || c.CajaID == *q.CajaID) && (q.Estado == "" || c.Estado == q.Estado) &&
			(q.DesdeDia == "" || c.FechaDia >= q.DesdeDia) && (q.HastaDia == "" || c.FechaDia <= q.HastaDia) {
			out = append(out, c)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Fecha.After(out[j].Fecha) })
	return paginar(out, q.Offset, q.Limit), int64(len(out)), nil
}

// ── NegocioRepository / SecuenciaRepository ─────────────────────────────────

type fakeNegocioRepo struct{ *memStore }

var _ repository.NegocioRepository = (*fakeNegocioRepo)(nil)

func (r *fakeNegocioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Negocio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.negocios[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &n, nil
}

func (r *fakeNegocioRepo) ListNotasCredito(_ context.Context, q repository.CuentaQuery) ([]model.NotaCredito, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.NotaCredito
	for _, n := range r.notas {
		if n.NegocioID == q.NegocioID && (q.CajaID == nil || (n.CajaID != nil && *n.CajaID == *q.CajaID)) && enPeriodo(n.CreatedAt, q.Periodo) {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeSecuenciaRepo struct{ *memStore }

var _ repository.SecuenciaRepository = (*fakeSecuenciaRepo)(nil)

func (r *fakeSecuenciaRepo) Reservar(_ context.Context, _ *gorm.DB, clave, fecha string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.secuenciaRota {
		return 0, errConexion
	}
	r.secuencias[clave+"/"+fecha]++
	return r.secuencias[clave+"/"+fecha], nil
}

// ── Idempotency store / hook recorder / clock ───────────────────────────────

type memIdempotencia struct {
	mu      sync.Mutex
	valores map[string][]byte
}

func newMemIdempotencia() *memIdempotencia {
	return &memIdempotencia{valores: make(map[string][]byte)}
}

func (m *memIdempotencia) Reservar(_ context.Context, clave string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.valores[clave]; ok {
		return v, false, nil
	}
	m.valores[clave] = nil
	return nil, true, nil
}

func (m *memIdempotencia) Guardar(_ context.Context, clave string, respuesta []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valores[clave] = respuesta
	return nil
}

func (m *memIdempotencia) Liberar(_ context.Context, clave string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.valores, clave)
	return nil
}

type hookRecorder struct {
	mu         sync.Mutex
	mutaciones []Mutacion
}

func (h *hookRecorder) DespuesDeCommit(_ context.Context, m Mutacion) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mutaciones = append(h.mutaciones, m)
}

func (h *hookRecorder) eventos() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, m := range h.mutaciones {
		if m.Evento != "" {
			out = append(out, m.Evento)
		}
	}
	return out
}

func (h *hookRecorder) ultima() Mutacion {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mutaciones[len(h.mutaciones)-1]
}

type relojFalso struct {
	mu sync.Mutex
	t  time.Time
}

func (r *relojFalso) ahora() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	// every reading moves forward so records keep a stable order
	r.t = r.t.Add(time.Millisecond)
	return r.t
}

func (r *relojFalso) avanzar(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t = r.t.Add(d)
}

// ── Fixture ─────────────────────────────────────────────────────────────────

type fixture struct {
	store    *memStore
	reloj    *relojFalso
	jornada  *Jornada
	hooks    *hookRecorder
	idem     *memIdempotencia
	ventas   VentaService
	entregas EntregaService
	cierres  CierreService
	resumen  ResumenService

	caja            uuid.UUID
	negocio         uuid.UUID
	negocioCorriente uuid.UUID
}

func newFixture() *fixture {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		panic(err)
	}
	f := &fixture{
		store: newMemStore(),
		reloj: &relojFalso{t: time.Date(2026, 10, 14, 10, 0, 0, 0, loc)},
		hooks: &hookRecorder{},
		idem:  newMemIdempotencia(),
	}
	f.jornada = NewJornada(loc, f.reloj.ahora)

	ventaRepo := &fakeVentaRepo{f.store}
	entregaRepo := &fakeEntregaRepo{f.store}
	cajaRepo := &fakeCajaRepo{f.store}
	negocioRepo := &fakeNegocioRepo{f.store}
	secuenciaRepo := &fakeSecuenciaRepo{f.store}
	hooks := Hooks{f.hooks}

	f.ventas = NewVentaService(ventaRepo, entregaRepo, negocioRepo, secuenciaRepo, f.jornada, hooks, nil)
	f.entregas = NewEntregaService(entregaRepo, ventaRepo, secuenciaRepo, f.jornada, hooks, nil, f.idem, 3)
	f.cierres = NewCierreService(cajaRepo, ventaRepo, entregaRepo, f.jornada, hooks)
	f.resumen = NewResumenService(negocioRepo, ventaRepo, entregaRepo, f.jornada)

	f.caja = f.nuevaCaja("Caja 1")
	f.negocio = f.nuevoNegocio("Almacén Don Pepe", false)
	f.negocioCorriente = f.nuevoNegocio("Distribuidora Sur", true)
	return f
}

func (f *fixture) nuevaCaja(nombre string) uuid.UUID {
	id := uuid.New()
	f.store.cajas[id] = model.Caja{ID: id, Nombre: nombre}
	return id
}

func (f *fixture) nuevoNegocio(nombre string, corriente bool) uuid.UUID {
	id := uuid.New()
	f.store.negocios[id] = model.Negocio{ID: id, Nombre: nombre, EsCuentaCorriente: corriente}
	return id
}

func (f *fixture) venta(id string) model.Venta {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.ventas[uuid.MustParse(id)]
}

func (f *fixture) cierresDe(cajaID uuid.UUID) []model.CierreCaja {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []model.CierreCaja
	for _, c := range f.store.cierres {
		if c.CajaID == cajaID {
			out = append(out, c)
		}
	}
	return out
}
