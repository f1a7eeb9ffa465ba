// Package cache holds the Redis side of the write path: list-cache
// invalidation after commit, the read-through list cache and the payment
// idempotency store.
package cache

import (
	"context"
	"time"

	"cajapos/internal/infra"
	"cajapos/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const scanCount = 200

// Invalidador deletes every cached key under the prefixes a committed write
// touched. Failures are logged and swallowed; entries then expire on TTL.
type Invalidador struct {
	rdb     *redis.Client
	timeout time.Duration
	cb      *infra.CircuitBreaker
}

var _ service.PostCommitHook = (*Invalidador)(nil)

func NewInvalidador(rdb *redis.Client, timeout time.Duration, cb *infra.CircuitBreaker) *Invalidador {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	if cb == nil {
		cb = infra.NewCircuitBreaker(infra.DefaultCBConfig("cache-invalidation"))
	}
	return &Invalidador{rdb: rdb, timeout: timeout, cb: cb}
}

func (i *Invalidador) DespuesDeCommit(ctx context.Context, m service.Mutacion) {
	for _, prefijo := range m.Caches {
		if err := i.Invalidar(ctx, prefijo); err != nil {
			log.Warn().Err(err).Str("prefix", prefijo).Str("evento", m.Evento).Msg("cache invalidation failed")
		}
	}
}

// Invalidar removes all keys starting with prefijo, bounded by the
// configured timeout.
func (i *Invalidador) Invalidar(ctx context.Context, prefijo string) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	return i.cb.Execute(func() error {
		var cursor uint64
		for {
			keys, next, err := i.rdb.Scan(ctx, cursor, prefijo+"*", scanCount).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := i.rdb.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			if next == 0 {
				return nil
			}
			cursor = next
		}
	})
}
