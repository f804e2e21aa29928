package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/meinjens/cstatsentry/internal/config"
	"github.com/meinjens/cstatsentry/internal/constants"
	fxmodules "github.com/meinjens/cstatsentry/internal/fx"
	"github.com/meinjens/cstatsentry/internal/middleware"
	"github.com/meinjens/cstatsentry/internal/scheduler"
	"github.com/meinjens/cstatsentry/internal/server"

	"github.com/jmoiron/sqlx"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	apiServer *server.Server,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	db *sqlx.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(apiServer.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sched.Start()
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			sched.Stop()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
