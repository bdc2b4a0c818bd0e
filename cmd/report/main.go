package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"insights/internal/config"
	"insights/internal/database"
	"insights/internal/daterange"
	"insights/internal/metrics"
)

func main() {
	site := flag.String("site", "", "Site id to report on (empty reports across all sites)")
	rangeKey := flag.String("range", string(daterange.All), "Date range: today, yesterday, 7d, 30d, month, all")
	databaseURL := flag.String("db", "", "Database URL (defaults to DATABASE_URL)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *databaseURL != "" {
		cfg.DatabaseURL = *databaseURL
	}

	// Setup logger
	logger := cfg.SetupLogger()

	key := daterange.Key(*rangeKey)
	if !key.Valid() {
		logger.Fatal().Str("range", *rangeKey).Msg("Unknown range")
	}

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() { _ = db.Close() }()

	engine := metrics.NewEngine(database.NewStore(db), nil, metrics.Config{
		LowConfidenceThreshold: cfg.LowConfidenceThreshold,
		LowConfidenceLimit:     cfg.LowConfidenceLimit,
		LowConfidenceMaxLimit:  cfg.LowConfidenceMaxLimit,
		FanOutConcurrency:      cfg.FanOutConcurrency,
		QueryTimeout:           cfg.QueryTimeout,
		Location:               cfg.Location(),
	}, logger)

	summary := engine.Summary(context.Background(), *site, key)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write report")
	}
}
