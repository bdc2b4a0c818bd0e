package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	DatabaseURL string // chat_history / leads / profiles store, read-only access is enough
	RedisURL    string // Optional, metric results are cached in memory when empty
	RequireDB   bool   // Exit at startup when the database is unreachable
	Version     string
	LogLevel    string
	Timezone    string // IANA name used for calendar-day boundaries (today, yesterday, month)

	MetricsCacheTTL        time.Duration // 0 disables result caching
	QueryTimeout           time.Duration // Per-request budget for store queries
	LowConfidenceThreshold float64       // Assistant replies below this confidence are "low confidence"
	LowConfidenceLimit     int           // Default number of low-confidence questions returned
	LowConfidenceMaxLimit  int           // Largest ?limit= a caller may ask for
	FanOutConcurrency      int           // Parallel follow-up lookups for low-confidence questions

	AdminUsername string
	AdminPassword string
	AdminUserID   string // Profile id bound to tokens issued at login
	TokenTTL      time.Duration
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	config := &Config{
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               os.Getenv("REDIS_URL"),
		RequireDB:              getEnvBool("REQUIRE_DB", true),
		Version:                getEnv("VERSION", "1.0.0"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		Timezone:               getEnv("TIMEZONE", "Local"),
		MetricsCacheTTL:        getEnvDuration("METRICS_CACHE_TTL", time.Minute),
		QueryTimeout:           getEnvDuration("QUERY_TIMEOUT", 30*time.Second),
		LowConfidenceThreshold: getEnvFloat("LOW_CONFIDENCE_THRESHOLD", 0.7),
		LowConfidenceLimit:     getEnvInt("LOW_CONFIDENCE_LIMIT", 10),
		LowConfidenceMaxLimit:  getEnvInt("LOW_CONFIDENCE_MAX_LIMIT", 100),
		FanOutConcurrency:      getEnvInt("FANOUT_CONCURRENCY", 4),
		AdminUsername:          os.Getenv("ADMIN_USERNAME"),
		AdminPassword:          os.Getenv("ADMIN_PASSWORD"),
		AdminUserID:            os.Getenv("ADMIN_USER_ID"),
		TokenTTL:               getEnvDuration("TOKEN_TTL", 24*time.Hour),
	}

	return config
}

// Location resolves the configured timezone, falling back to the process local zone
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", c.Timezone).Msg("Unknown TIMEZONE, using local time")
		return time.Local
	}
	return loc
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float with a default fallback
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a default fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "5m") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "insights").
		Str("version", c.Version).
		Logger()

	// Set log level based on configuration
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
