package service

import (
	"context"

	"cajapos/internal/dto"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Cache key prefixes invalidated after writes.
const (
	CacheVentas          = "Ventas:"
	CacheEntregas        = "Entregas:"
	CacheEntregasNegocio = "EntregasNegocio:"
	CacheCierres         = "Cierres:"
)

// Mutacion describes a committed write. Evento is one of the dto.Evento*
// types, or empty when the write has no realtime projection.
type Mutacion struct {
	Evento  string
	CajaID  uuid.UUID
	VentaID uuid.UUID
	Venta   *dto.VentaResponse
	Caches  []string
}

// PostCommitHook runs after a transaction commits. Hooks must not block for
// long and cannot fail the write that triggered them.
type PostCommitHook interface {
	DespuesDeCommit(ctx context.Context, m Mutacion)
}

// HookFunc adapts a function to PostCommitHook.
type HookFunc func(ctx context.Context, m Mutacion)

func (f HookFunc) DespuesDeCommit(ctx context.Context, m Mutacion) { f(ctx, m) }

// Hooks is the ordered post-commit hook list shared by the services.
type Hooks []PostCommitHook

func (h Hooks) disparar(ctx context.Context, m Mutacion) {
	// the request may be cancelled right after the response is written
	ctx = context.WithoutCancel(ctx)
	for _, hook := range h {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("evento", m.Evento).Msg("post-commit hook panicked")
				}
			}()
			hook.DespuesDeCommit(ctx, m)
		}()
	}
}
