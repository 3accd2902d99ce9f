package main

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"review_toolkit/cmd/reviewctl/commands"
	"review_toolkit/internal/adapters/aliexpress"
	"review_toolkit/internal/adapters/observability"
	redisad "review_toolkit/internal/adapters/redis"
	"review_toolkit/internal/domain"
	"review_toolkit/internal/registry"
	"review_toolkit/internal/shared"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	var checkpoints domain.Checkpoints
	if cfg.RedisAddr != "" {
		checkpoints = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	}

	reg := registry.Default(registry.Deps{
		Config:      cfg,
		Source:      aliexpress.New(cfg.SourceBase, cfg.SourceRPS, cfg.Workers),
		Checkpoints: checkpoints,
		OpenDB:      func(dsn string) (*sql.DB, error) { return sql.Open("mysql", dsn) },
	})

	commands.Execute(context.Background(), reg)
}
