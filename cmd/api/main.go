package main

import (
	"context"
	"os"
	"time"

	"khpl-backend/internal/application/hierarchy"
	"khpl-backend/internal/application/invitations"
	"khpl-backend/internal/config"
	"khpl-backend/internal/interfaces/router"
	"khpl-backend/internal/workers"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create failed")
	}

	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("database handle unavailable")
		}
		if err := sqlDB.Ping(); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		log.Info().Msg("database connected")

		sweeper, err := workers.StartInvitationSweeper(
			&invitations.Service{DB: db, Hierarchy: &hierarchy.Service{DB: db}},
			time.Hour,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("invitation sweeper start failed")
		}
		defer func() { _ = sweeper.Shutdown() }()
	}
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		log.Info().Msg("redis connected")
	}

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
