package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/fluxa/config"
	"github.com/oksasatya/fluxa/internal/application"
	pginfra "github.com/oksasatya/fluxa/internal/infrastructure/postgres"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

// seed creates the first superuser; safe to run on every container start.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	created, err := application.BootstrapSuperuser(ctx,
		pginfra.NewIdentityRepository(pool),
		helpers.NewPasswordHasher(cfg.BcryptCost),
		cfg.FirstSuperuser, cfg.FirstSuperuserPassword, logger)
	if err != nil {
		log.Fatalf("failed to bootstrap superuser: %v", err)
	}
	helpers.LogInfo(logger, "seed finished", map[string]any{"email": cfg.FirstSuperuser, "created": created})
}
