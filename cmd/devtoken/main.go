// cmd/devtoken/main.go: prints a signed access token for local testing.
// Uso: go run ./cmd/devtoken -user <uuid> -rol encargado
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"cajapos/internal/config"
	"cajapos/internal/middleware"

	"github.com/google/uuid"
)

func main() {
	user := flag.String("user", "", "user id (uuid); random when empty")
	rol := flag.String("rol", middleware.RolEncargado, "admin | encargado | repartidor")
	ttl := flag.Duration("ttl", 0, "lifetime; defaults to JWT_EXPIRATION_HOURS")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *user == "" {
		*user = uuid.NewString()
	}
	if *ttl == 0 {
		*ttl = time.Duration(cfg.JWTExpirationHours) * time.Hour
	}

	token, err := middleware.NewToken(cfg.JWTSecret, *user, *rol, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
