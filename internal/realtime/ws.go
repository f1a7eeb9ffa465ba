package realtime

import (
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// Transporte serves the registry over websockets.
type Transporte struct {
	registry *Registry
	ping     time.Duration
	upgrader websocket.Upgrader
}

// NewTransporte accepts any origin when origenes is empty or contains "*".
func NewTransporte(registry *Registry, ping time.Duration, origenes []string) *Transporte {
	if ping <= 0 {
		ping = 30 * time.Second
	}
	t := &Transporte{registry: registry, ping: ping}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origenes) == 0 || slices.Contains(origenes, "*") {
				return true
			}
			return slices.Contains(origenes, origin)
		},
	}
	return t
}

// ServeWS joins the caller to cajaID and upgrades the request. Join happens
// first so a snapshot failure is still a plain HTTP error.
func (t *Transporte) ServeWS(w http.ResponseWriter, r *http.Request, cajaID uuid.UUID) error {
	c, err := t.registry.Join(r.Context(), cajaID)
	if err != nil {
		return err
	}

	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		t.registry.Leave(c)
		log.Warn().Err(err).Str("caja_id", cajaID.String()).Msg("realtime: upgrade failed")
		return nil
	}

	log.Info().Str("caja_id", cajaID.String()).Str("conexion", c.ID).Msg("terminal joined")
	go t.writePump(ws, c)
	go t.readPump(ws, c)
	return nil
}

// readPump only consumes control frames; terminals do not send data.
func (t *Transporte) readPump(ws *websocket.Conn, c *Conexion) {
	defer func() {
		t.registry.Leave(c)
		ws.Close()
		log.Info().Str("caja_id", c.cajaID.String()).Str("conexion", c.ID).Msg("terminal left")
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(2 * t.ping))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(2 * t.ping))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conexion", c.ID).Msg("realtime: read failed")
			}
			return
		}
	}
}

func (t *Transporte) writePump(ws *websocket.Conn, c *Conexion) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn().Err(err).Str("conexion", c.ID).Msg("realtime: write failed")
				t.registry.Leave(c)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.registry.Leave(c)
				return
			}
		case <-c.done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
