package realtime

// ── Register Session Registry ────────────────────────────────────────────────
// Maps a caja id to its live terminal connections and to the day's sale
// snapshot. Mutations arrive through DespuesDeCommit, are queued, and are
// fanned out by Run without ever blocking the request that produced them.
//
// Lock order: Registry.mu before sesion.mu. Never the reverse.

import (
	"context"
	"encoding/json"
	"sync"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Fuente loads the snapshot replayed to a joining terminal.
type Fuente interface {
	VentasDelDia(ctx context.Context, cajaID uuid.UUID) ([]dto.VentaResponse, error)
}

// FuenteFunc adapts a function to Fuente. It lets the registry be built
// before the sale service that feeds it, since that service also publishes
// into the registry.
type FuenteFunc func(ctx context.Context, cajaID uuid.UUID) ([]dto.VentaResponse, error)

func (f FuenteFunc) VentasDelDia(ctx context.Context, cajaID uuid.UUID) ([]dto.VentaResponse, error) {
	return f(ctx, cajaID)
}

// Evento is a sale mutation scoped to one caja.
type Evento struct {
	Tipo    string             `json:"tipo"`
	CajaID  uuid.UUID          `json:"caja_id"`
	VentaID uuid.UUID          `json:"venta_id"`
	Venta   *dto.VentaResponse `json:"venta,omitempty"`
}

// Opciones tunes the registry. Zero values fall back to defaults.
type Opciones struct {
	BufferConexion int
	BufferEventos  int
	// Hoy returns the current business day; a snapshot loaded on another day
	// is rebuilt on the next join.
	Hoy func() string
}

type sesion struct {
	mu         sync.Mutex
	cajaID     uuid.UUID
	conexiones map[*Conexion]struct{}
	snapshot   []dto.VentaResponse
	dia        string
	cargada    bool
	descartada bool
	// cargando counts snapshot loads in flight; events seen meanwhile are
	// kept in pendientes and replayed onto the loaded snapshot.
	cargando   int
	pendientes []Evento
}

// Registry implements service.PostCommitHook.
type Registry struct {
	fuente   Fuente
	opciones Opciones

	mu       sync.Mutex
	sesiones map[uuid.UUID]*sesion

	eventos chan Evento
}

var _ service.PostCommitHook = (*Registry)(nil)

func NewRegistry(fuente Fuente, opts Opciones) *Registry {
	if opts.BufferConexion <= 0 {
		opts.BufferConexion = 64
	}
	if opts.BufferEventos <= 0 {
		opts.BufferEventos = 1024
	}
	if opts.Hoy == nil {
		opts.Hoy = func() string { return "" }
	}
	return &Registry{
		fuente:   fuente,
		opciones: opts,
		sesiones: make(map[uuid.UUID]*sesion),
		eventos:  make(chan Evento, opts.BufferEventos),
	}
}

// Join registers a terminal for cajaID. The initial-sales message is the
// first thing queued on the returned connection.
func (r *Registry) Join(ctx context.Context, cajaID uuid.UUID) (*Conexion, error) {
	c := newConexion(cajaID, r.opciones.BufferConexion)
	for {
		s := r.sesion(cajaID)
		unida, err := r.unir(ctx, s, c)
		if err != nil {
			r.descartarSiVacia(s)
			return nil, err
		}
		if unida {
			return c, nil
		}
		// lost a race with the last Leave; the caja has a fresh session now
	}
}

// unir joins c to s, or reports false when s was discarded first. The
// snapshot is loaded without s.mu held, so fan-out never waits on storage.
func (r *Registry) unir(ctx context.Context, s *sesion, c *Conexion) (bool, error) {
	hoy := r.opciones.Hoy()

	s.mu.Lock()
	if s.descartada {
		s.mu.Unlock()
		return false, nil
	}
	if s.vigente(hoy) {
		defer s.mu.Unlock()
		return true, s.agregar(c)
	}
	s.cargando++
	s.mu.Unlock()

	ventas, err := r.fuente.VentasDelDia(ctx, s.cajaID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cargando--
	pendientes := s.pendientes
	if s.cargando == 0 {
		s.pendientes = nil
	}
	if err != nil {
		return false, err
	}
	if s.descartada {
		return false, nil
	}
	if !s.vigente(hoy) {
		for _, ev := range pendientes {
			ventas = aplicarEvento(ventas, ev)
		}
		s.snapshot = ventas
		s.dia = hoy
		s.cargada = true
	}
	return true, s.agregar(c)
}

// vigente reports whether the snapshot can be replayed as is. An empty or
// stale one is rebuilt.
func (s *sesion) vigente(hoy string) bool {
	return s.cargada && len(s.snapshot) > 0 && s.dia == hoy
}

// agregar queues the initial-sales message and marks c joined. Runs under s.mu.
func (s *sesion) agregar(c *Conexion) error {
	msg, err := json.Marshal(dto.Evento{Type: dto.EventoInitialSales, Data: s.snapshotData()})
	if err != nil {
		return err
	}
	c.send <- msg // empty buffer, cannot block
	c.marcar(EstadoJoined)
	s.conexiones[c] = struct{}{}
	return nil
}

// Leave removes c and closes it. The caja session is discarded with its last
// connection.
func (r *Registry) Leave(c *Conexion) {
	r.mu.Lock()
	if s, ok := r.sesiones[c.cajaID]; ok {
		s.mu.Lock()
		_, miembro := s.conexiones[c]
		delete(s.conexiones, c)
		if miembro && len(s.conexiones) == 0 {
			s.descartada = true
			delete(r.sesiones, c.cajaID)
		}
		s.mu.Unlock()
	}
	r.mu.Unlock()
	c.cerrar()
}

// Conexiones reports how many terminals are joined for cajaID.
func (r *Registry) Conexiones(cajaID uuid.UUID) int {
	r.mu.Lock()
	s, ok := r.sesiones[cajaID]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conexiones)
}

func (r *Registry) DespuesDeCommit(_ context.Context, m service.Mutacion) {
	if m.Evento == "" || m.CajaID == uuid.Nil {
		return
	}
	r.Publicar(Evento{Tipo: m.Evento, CajaID: m.CajaID, VentaID: m.VentaID, Venta: m.Venta})
}

// Publicar queues ev for fan-out. It never blocks; a full queue drops ev.
func (r *Registry) Publicar(ev Evento) {
	select {
	case r.eventos <- ev:
	default:
		log.Warn().Str("caja_id", ev.CajaID.String()).Str("tipo", ev.Tipo).Msg("realtime: event queue full, event dropped")
	}
}

// Run drains the event queue until ctx is done, then closes every connection.
func (r *Registry) Run(ctx context.Context) {
	log.Info().Msg("realtime registry started")
	for {
		select {
		case <-ctx.Done():
			r.cerrarTodas()
			log.Info().Msg("realtime registry stopped")
			return
		case ev := <-r.eventos:
			r.aplicar(ev)
		}
	}
}

func (r *Registry) aplicar(ev Evento) {
	r.mu.Lock()
	s, ok := r.sesiones[ev.CajaID]
	r.mu.Unlock()
	if !ok {
		return // nobody joined: late joiners get the snapshot
	}

	msg, err := mensaje(ev)
	if err != nil {
		log.Error().Err(err).Str("tipo", ev.Tipo).Msg("realtime: failed to encode event")
		return
	}

	s.mu.Lock()
	if s.descartada {
		s.mu.Unlock()
		return
	}
	s.actualizar(ev)
	var caidas []*Conexion
	for c := range s.conexiones {
		select {
		case c.send <- msg:
		default:
			delete(s.conexiones, c)
			caidas = append(caidas, c)
		}
	}
	s.mu.Unlock()

	for _, c := range caidas {
		log.Warn().Str("caja_id", ev.CajaID.String()).Str("conexion", c.ID).Msg("realtime: send buffer full, dropping connection")
		c.cerrar()
	}
	if len(caidas) > 0 {
		r.descartarSiVacia(s)
	}
}

func mensaje(ev Evento) ([]byte, error) {
	var data any = ev.Venta
	if ev.Tipo == dto.EventoSaleRemoved {
		data = dto.VentaEliminada{ID: ev.VentaID.String()}
	}
	return json.Marshal(dto.Evento{Type: ev.Tipo, Data: data})
}

func (r *Registry) sesion(cajaID uuid.UUID) *sesion {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sesiones[cajaID]
	if !ok {
		s = &sesion{cajaID: cajaID, conexiones: make(map[*Conexion]struct{})}
		r.sesiones[cajaID] = s
	}
	return s
}

func (r *Registry) descartarSiVacia(s *sesion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conexiones) == 0 && !s.descartada {
		s.descartada = true
		if r.sesiones[s.cajaID] == s {
			delete(r.sesiones, s.cajaID)
		}
	}
}

func (r *Registry) cerrarTodas() {
	r.mu.Lock()
	sesiones := r.sesiones
	r.sesiones = make(map[uuid.UUID]*sesion)
	r.mu.Unlock()

	for _, s := range sesiones {
		s.mu.Lock()
		s.descartada = true
		for c := range s.conexiones {
			c.cerrar()
		}
		s.conexiones = nil
		s.mu.Unlock()
	}
}

// snapshotData never marshals to null.
func (s *sesion) snapshotData() []dto.VentaResponse {
	if s.snapshot == nil {
		return []dto.VentaResponse{}
	}
	return s.snapshot
}

// actualizar applies ev to the snapshot, and keeps it for loads in flight.
func (s *sesion) actualizar(ev Evento) {
	if s.cargando > 0 {
		s.pendientes = append(s.pendientes, ev)
	}
	if s.cargada {
		s.snapshot = aplicarEvento(s.snapshot, ev)
	}
}

// aplicarEvento is an upsert by sale id, or a removal.
func aplicarEvento(ventas []dto.VentaResponse, ev Evento) []dto.VentaResponse {
	switch ev.Tipo {
	case dto.EventoSaleRemoved:
		out := ventas[:0:0]
		for _, v := range ventas {
			if v.ID != ev.VentaID.String() {
				out = append(out, v)
			}
		}
		return out
	case dto.EventoNewSale, dto.EventoSaleUpdated, dto.EventoSaleDeferred:
		if ev.Venta == nil {
			return ventas
		}
		for i := range ventas {
			if ventas[i].ID == ev.Venta.ID {
				ventas[i] = *ev.Venta
				return ventas
			}
		}
		return append(ventas, *ev.Venta)
	}
	return ventas
}
