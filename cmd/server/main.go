package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gutterpress/gutterpress/pkg/press/config"
	"github.com/gutterpress/gutterpress/pkg/press/httpapi"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

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

	// Embedded worker pool drains the in-process queue.
	worker := cfg.BuildWorker(svc, q, logger)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/v1", httpapi.New(svc, cfg.JWTSecret).Routes())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("environment", cfg.Environment).
			Str("storage_backend", cfg.DefaultStorageBackend).
			Msg("server starting")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	// Close the queue first so workers drain pending jobs, then cancel.
	q.Close()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("worker shutdown timed out")
	}
	stopWorker()

	logger.Info().Msg("server exiting")
}
