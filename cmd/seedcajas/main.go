// cmd/seedcajas/main.go: creates the registers listed in CAJAS.
// Uso: go run ./cmd/seedcajas
package main

import (
	"context"
	"fmt"
	"os"

	"cajapos/internal/config"
	"cajapos/internal/infra"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	repo := repository.NewCajaRepository(db)
	ctx := context.Background()
	for _, nombre := range cfg.ListaCajas() {
		creada, err := repo.CreateCaja(ctx, &model.Caja{Nombre: nombre})
		if err != nil {
			log.Fatal().Err(err).Str("caja", nombre).Msg("insert error")
		}
		if creada {
			fmt.Printf("caja %q creada\n", nombre)
		} else {
			fmt.Printf("caja %q ya existe\n", nombre)
		}
	}
}
