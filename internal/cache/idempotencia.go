package cache

import (
	"context"
	"errors"
	"time"

	"cajapos/internal/service"

	"github.com/redis/go-redis/v9"
)

const (
	idempotenciaPrefix = "idem:entregas:"
	enCurso            = "pending"
)

// Idempotencia stores the first response of a keyed payment request. A key is
// claimed with SETNX holding a pending marker until the response is saved.
type Idempotencia struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ service.IdempotenciaStore = (*Idempotencia)(nil)

func NewIdempotencia(rdb *redis.Client, ttl time.Duration) *Idempotencia {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotencia{rdb: rdb, ttl: ttl}
}

func (s *Idempotencia) Reservar(ctx context.Context, clave string) ([]byte, bool, error) {
	key := idempotenciaPrefix + clave
	ok, err := s.rdb.SetNX(ctx, key, enCurso, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// released between SETNX and GET; claim it again
		return s.Reservar(ctx, clave)
	}
	if err != nil {
		return nil, false, err
	}
	if string(val) == enCurso {
		return nil, false, nil
	}
	return val, false, nil
}

func (s *Idempotencia) Guardar(ctx context.Context, clave string, respuesta []byte) error {
	return s.rdb.Set(ctx, idempotenciaPrefix+clave, respuesta, s.ttl).Err()
}

func (s *Idempotencia) Liberar(ctx context.Context, clave string) error {
	return s.rdb.Del(ctx, idempotenciaPrefix+clave).Err()
}
