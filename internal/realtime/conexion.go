package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// EstadoConexion is the lifecycle of a terminal connection.
type EstadoConexion int32

const (
	EstadoConnecting EstadoConexion = iota
	EstadoJoined
	EstadoClosed
)

func (e EstadoConexion) String() string {
	switch e {
	case EstadoConnecting:
		return "connecting"
	case EstadoJoined:
		return "joined"
	case EstadoClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conexion is one terminal joined to a caja. Messages are queued on a bounded
// buffer; the transport drains it.
type Conexion struct {
	ID     string
	cajaID uuid.UUID
	send   chan []byte
	done   chan struct{}
	estado atomic.Int32
	once   sync.Once
}

func newConexion(cajaID uuid.UUID, buffer int) *Conexion {
	return &Conexion{
		ID:     uuid.NewString(),
		cajaID: cajaID,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *Conexion) CajaID() uuid.UUID { return c.cajaID }

// Mensajes yields encoded events in order.
func (c *Conexion) Mensajes() <-chan []byte { return c.send }

// Done is closed once the connection reaches Closed.
func (c *Conexion) Done() <-chan struct{} { return c.done }

func (c *Conexion) Estado() EstadoConexion { return EstadoConexion(c.estado.Load()) }

func (c *Conexion) marcar(e EstadoConexion) {
	c.estado.Store(int32(e))
}

func (c *Conexion) cerrar() {
	c.once.Do(func() {
		c.marcar(EstadoClosed)
		close(c.done)
	})
}
