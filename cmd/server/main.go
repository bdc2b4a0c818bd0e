package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"insights/internal/cache"
	"insights/internal/config"
	"insights/internal/database"
	"insights/internal/server"
)

// newCache prefers Redis when configured and falls back to process memory
func newCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set, caching metric results in memory")
		return cache.NewMemory()
	}

	rc, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, caching metric results in memory")
		return cache.NewMemory()
	}

	logger.Info().Msg("Caching metric results in Redis")
	return rc
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		if cfg.RequireDB {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		logger.Warn().Err(err).Msg("Database connection failed")
		logger.Info().Msg("Starting server without database connection")
	} else {
		logger.Info().Str("driver", db.DriverName()).Msg("Database connection established successfully")
		defer func() { _ = db.Close() }()
	}

	c := newCache(ctx, cfg, &logger)
	if rc, ok := c.(*cache.Redis); ok {
		defer func() { _ = rc.Close() }()
	}

	// Create and initialize server
	srv := server.New(cfg, db, c, logger)
	srv.Initialize()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
