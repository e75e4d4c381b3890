package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/gutterpress/gutterpress/pkg/press/config"
)

// Standalone derivative worker. It shares configuration with cmd/server but
// runs only the job-processing side; useful when derivative generation should
// be scaled or isolated from the request path.
func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "worker").Logger()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.DatabaseType == "postgres" {
		if err := config.PingPostgres(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("database is not reachable")
		}
	}

	svc, q, err := cfg.BuildService(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build service")
	}
	worker := cfg.BuildWorker(svc, q, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Int("max_attempts", cfg.WorkerMaxAttempts).
		Msg("worker starting")

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("worker error")
	}
	logger.Info().Msg("worker exiting")
}
