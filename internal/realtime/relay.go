package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"cajapos/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Relay forwards events between server instances over Redis pub/sub so every
// instance fans them out to its own terminals.
type Relay struct {
	rdb      *redis.Client
	canal    string
	origen   string
	registry *Registry
}

type mensajeRelay struct {
	Origen string `json:"origen"`
	Evento
}

var _ service.PostCommitHook = (*Relay)(nil)

func NewRelay(rdb *redis.Client, canal string, registry *Registry) *Relay {
	return &Relay{rdb: rdb, canal: canal, origen: uuid.NewString(), registry: registry}
}

func (r *Relay) DespuesDeCommit(ctx context.Context, m service.Mutacion) {
	if m.Evento == "" || m.CajaID == uuid.Nil {
		return
	}
	ev := Evento{Tipo: m.Evento, CajaID: m.CajaID, VentaID: m.VentaID, Venta: m.Venta}
	if err := r.Publicar(ctx, ev); err != nil {
		log.Warn().Err(err).Str("canal", r.canal).Msg("realtime relay: publish failed")
	}
}

func (r *Relay) Publicar(ctx context.Context, ev Evento) error {
	data, err := json.Marshal(mensajeRelay{Origen: r.origen, Evento: ev})
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}
	return r.rdb.Publish(ctx, r.canal, data).Err()
}

// Run subscribes to the relay channel until ctx is done. Messages published by
// this instance are skipped; the local registry already has them.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.canal)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.canal, err)
	}
	log.Info().Str("canal", r.canal).Msg("realtime relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.recibir(msg.Payload)
		}
	}
}

func (r *Relay) recibir(payload string) {
	var m mensajeRelay
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		log.Error().Err(err).Msg("realtime relay: bad message")
		return
	}
	if m.Origen == r.origen {
		return
	}
	r.registry.Publicar(m.Evento)
}
