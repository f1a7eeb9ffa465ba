package service

import (
	"context"
	"errors"
	"time"

	"cajapos/internal/apperr"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// lecturaBackoff is the retry policy for idempotent reads. Tests shrink it.
var lecturaBackoff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 3 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// leer runs an idempotent read, retrying only InfrastructureError.
// Writes never go through here.
func leer[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var out T
	intento := 0
	err := backoff.Retry(func() error {
		intento++
		v, err := fn()
		if err != nil {
			err = apperr.Infra(op, err)
			if !apperr.IsInfrastructure(err) {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Str("op", op).Int("intento", intento).Msg("lectura fallida, reintentando")
			return err
		}
		out = v
		return nil
	}, backoff.WithContext(lecturaBackoff(), ctx))
	return out, err
}

// traducir maps a storage error onto the taxonomy: missing rows become
// NotFoundError, anything else InfrastructureError.
func traducir(op, recurso, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(recurso, id)
	}
	return apperr.Infra(op, err)
}
