package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"review_toolkit/internal/adapters/aliexpress"
	"review_toolkit/internal/adapters/httpserver"
	"review_toolkit/internal/adapters/observability"
	redisad "review_toolkit/internal/adapters/redis"
	"review_toolkit/internal/domain"
	"review_toolkit/internal/registry"
	"review_toolkit/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	promReg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, promReg)

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

	srv := httpserver.New()
	srv.Mount("/metrics", observability.MetricsHandler(promReg))
	srv.MountHandlers(&httpserver.Handlers{Reg: reg})

	log.Info().Str("addr", cfg.HTTPAddr).Int("operators", len(reg.Operators())).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
