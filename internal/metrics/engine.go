// Package metrics turns chat_history and leads rows into dashboard statistics
// for one tenant over a resolved date range.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"insights/internal/cache"
	"insights/internal/daterange"
	"insights/internal/database"
	"insights/internal/models"
)

// Store is the read-only query surface the engine needs
type Store interface {
	Messages(ctx context.Context, q database.Query) ([]models.ChatMessage, error)
	CountMessages(ctx context.Context, q database.Query) (int, error)
	Leads(ctx context.Context, q database.Query) ([]models.Lead, error)
}

// Config tunes the engine
type Config struct {
	LowConfidenceThreshold float64
	LowConfidenceLimit     int
	LowConfidenceMaxLimit  int // Upper bound for a caller-supplied limit
	FanOutConcurrency      int
	QueryTimeout           time.Duration // 0 means no engine-imposed deadline
	CacheTTL               time.Duration // 0 disables result caching
	Location               *time.Location
}

// DefaultConfig matches the dashboard defaults
func DefaultConfig() Config {
	return Config{
		LowConfidenceThreshold: 0.7,
		LowConfidenceLimit:     10,
		LowConfidenceMaxLimit:  100,
		FanOutConcurrency:      4,
		Location:               time.Local,
	}
}

// Engine computes metrics. It keeps no per-request state and is safe for concurrent use.
type Engine struct {
	store  Store
	cache  cache.Cache
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates an engine over store. c may be nil to disable caching.
func NewEngine(store Store, c cache.Cache, cfg Config, logger zerolog.Logger) *Engine {
	defaults := DefaultConfig()
	if cfg.LowConfidenceThreshold <= 0 {
		cfg.LowConfidenceThreshold = defaults.LowConfidenceThreshold
	}
	if cfg.LowConfidenceLimit <= 0 {
		cfg.LowConfidenceLimit = defaults.LowConfidenceLimit
	}
	if cfg.LowConfidenceMaxLimit <= 0 {
		cfg.LowConfidenceMaxLimit = defaults.LowConfidenceMaxLimit
	}
	if cfg.LowConfidenceMaxLimit < cfg.LowConfidenceLimit {
		cfg.LowConfidenceMaxLimit = cfg.LowConfidenceLimit
	}
	if cfg.FanOutConcurrency <= 0 {
		cfg.FanOutConcurrency = defaults.FanOutConcurrency
	}
	if cfg.Location == nil {
		cfg.Location = defaults.Location
	}

	return &Engine{
		store:  store,
		cache:  c,
		cfg:    cfg,
		logger: logger.With().Str("component", "metrics").Logger(),
		now:    time.Now,
	}
}

// At returns a copy of the engine whose clock is fixed at now. Every metric
// computed through the copy resolves a range key to the same bounds.
func (e *Engine) At(now time.Time) *Engine {
	frozen := *e
	frozen.now = func() time.Time { return now }
	return &frozen
}

// Now reads the engine clock
func (e *Engine) Now() time.Time {
	return e.now()
}

// MaxLowConfidenceLimit is the largest limit LowConfidenceQuestions honours
func (e *Engine) MaxLowConfidenceLimit() int {
	return e.cfg.LowConfidenceMaxLimit
}

// Bounds resolves key against the engine clock in the configured timezone
func (e *Engine) Bounds(key daterange.Key) daterange.Bounds {
	return daterange.Resolve(key, e.now().In(e.cfg.Location))
}

// scope filters a table by tenant and the half-open range [since, until).
// An empty tenant is a globally scoped call.
func scope(tenant string, b daterange.Bounds) database.Query {
	q := database.Select()
	if tenant != "" {
		q = q.Eq("site_id", tenant)
	}
	if b.Since != nil {
		q = q.Gte("created_at", *b.Since)
	}
	if b.Until != nil {
		q = q.Lt("created_at", *b.Until)
	}
	return q
}

func (e *Engine) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// evaluate runs compute with caching and wraps the outcome in a Result
func evaluate[T any](ctx context.Context, e *Engine, metric, tenant string, key daterange.Key, compute func(context.Context, daterange.Bounds) (T, error)) Result[T] {
	ctx, cancel := e.queryContext(ctx)
	defer cancel()

	v, err := cached(ctx, e, fmt.Sprintf("%s:%s:%s", tenant, key, metric), func(ctx context.Context) (T, error) {
		return compute(ctx, e.Bounds(key))
	})
	if err != nil {
		e.logFailure(err, metric, tenant, key)
		return Failed[T](err)
	}
	return Ready(v)
}

// cached returns a stored value for cacheKey or computes and stores it.
// Cache failures only cost a recomputation; failed computations are never stored.
func cached[T any](ctx context.Context, e *Engine, cacheKey string, compute func(context.Context) (T, error)) (T, error) {
	if e.cache == nil || e.cfg.CacheTTL <= 0 {
		return compute(ctx)
	}

	if data, ok, err := e.cache.Get(ctx, cacheKey); err != nil {
		e.logger.Warn().Err(err).Str("key", cacheKey).Msg("Metric cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
		e.logger.Warn().Str("key", cacheKey).Msg("Discarding undecodable cached metric")
	}

	v, err := compute(ctx)
	if err != nil {
		return v, err
	}

	if data, err := json.Marshal(v); err == nil {
		if err := e.cache.Set(ctx, cacheKey, data, e.cfg.CacheTTL); err != nil {
			e.logger.Warn().Err(err).Str("key", cacheKey).Msg("Metric cache write failed")
		}
	}
	return v, nil
}

func (e *Engine) logFailure(err error, metric, tenant string, key daterange.Key) {
	ev := e.logger.Warn()
	if errors.Is(err, context.Canceled) {
		// Superseded refreshes end this way
		ev = e.logger.Debug()
	}
	ev.Err(err).
		Str("site_id", tenant).
		Str("metric", metric).
		Str("range", string(key)).
		Msg("Metric query failed")
}
