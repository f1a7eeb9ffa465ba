package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cajapos/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// listaCacheTTL bounds staleness if an invalidation is lost.
const listaCacheTTL = 10 * time.Minute

// Lectura is the read-through cache for list endpoints. Every failure is a
// miss.
type Lectura struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ service.CacheLectura = (*Lectura)(nil)

func NewLectura(rdb *redis.Client) *Lectura {
	return &Lectura{rdb: rdb, ttl: listaCacheTTL}
}

func (l *Lectura) Obtener(ctx context.Context, clave string, dest any) bool {
	b, err := l.rdb.Get(ctx, clave).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Err(err).Str("key", clave).Msg("cache read failed")
		}
		return false
	}
	return json.Unmarshal(b, dest) == nil
}

// Guardar is best effort and detached from request cancellation.
func (l *Lectura) Guardar(ctx context.Context, clave string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := l.rdb.Set(context.WithoutCancel(ctx), clave, b, l.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", clave).Msg("cache write failed")
	}
}
