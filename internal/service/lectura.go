package service

import (
	"context"
	"fmt"

	"cajapos/internal/apperr"

	"github.com/google/uuid"
)

// CacheLectura is the read-through cache for list queries. Implementations
// treat every failure as a miss.
type CacheLectura interface {
	Obtener(ctx context.Context, clave string, dest any) bool
	Guardar(ctx context.Context, clave string, v any)
}

// IdempotenciaStore remembers the response of a keyed write.
type IdempotenciaStore interface {
	// Reservar claims clave. It returns nuevo=true for the first caller; later
	// callers get the stored response, or nil while the first is in flight.
	Reservar(ctx context.Context, clave string) (previo []byte, nuevo bool, err error)
	Guardar(ctx context.Context, clave string, respuesta []byte) error
	Liberar(ctx context.Context, clave string) error
}

func claveCache(prefijo string, filtro any) string {
	return fmt.Sprintf("%s%+v", prefijo, filtro)
}

func parseUUID(campo, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Validation("%s inválido: %q", campo, s)
	}
	return id, nil
}
