package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"insights/internal/auth"
	"insights/internal/daterange"
	"insights/internal/metrics"
	"insights/internal/models"
)

// MetricResponse is the body of every single-metric endpoint
type MetricResponse[T any] struct {
	Range daterange.Key `json:"range"`
	Since *time.Time    `json:"since"`
	Until *time.Time    `json:"until"`
	metrics.Result[T]
}

// rangeKey reads ?range=; unknown or missing keys mean "all"
func rangeKey(c echo.Context) daterange.Key {
	key := daterange.Key(c.QueryParam("range"))
	if !key.Valid() {
		return daterange.All
	}
	return key
}

// positiveParam parses an optional positive integer query parameter; 0 when absent
func positiveParam(c echo.Context, name string) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func badParam(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name + ": must be a positive integer"})
}

// pinned fixes the engine clock for one request so the reported bounds are the queried ones
func pinned(engine *metrics.Engine) *metrics.Engine {
	return engine.At(engine.Now())
}

// respond reports r with the bounds engine resolves for key; engine must be pinned
func respond[T any](c echo.Context, engine *metrics.Engine, key daterange.Key, r metrics.Result[T]) error {
	status := http.StatusOK
	if r.State() == metrics.StateFailed {
		status = http.StatusInternalServerError
	}

	b := engine.Bounds(key)
	return c.JSON(status, MetricResponse[T]{
		Range:  key,
		Since:  b.Since,
		Until:  b.Until,
		Result: r,
	})
}

type metricFunc[T any] func(e *metrics.Engine, ctx context.Context, tenant string, key daterange.Key) metrics.Result[T]

// metricHandler serves one metric for the caller's site
func metricHandler[T any](engine *metrics.Engine, compute metricFunc[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		e, key := pinned(engine), rangeKey(c)
		return respond(c, e, key, compute(e, c.Request().Context(), auth.SiteID(c), key))
	}
}

// tallyHandler serves a tally, or its top entries when ?top=N is given
func tallyHandler(engine *metrics.Engine, compute metricFunc[models.Tally]) echo.HandlerFunc {
	return func(c echo.Context) error {
		top, ok := positiveParam(c, "top")
		if !ok {
			return badParam(c, "top")
		}

		e, key := pinned(engine), rangeKey(c)
		r := compute(e, c.Request().Context(), auth.SiteID(c), key)
		if top == 0 {
			return respond(c, e, key, r)
		}
		return respond(c, e, key, metrics.Map(r, func(t models.Tally) []models.TallyEntry {
			return metrics.TopN(t, top)
		}))
	}
}

// SessionsHandler returns the number of distinct conversations
// @Summary Session count
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range (today, yesterday, 7d, 30d, month, all)" default(all)
// @Success 200 {object} object "MetricResponse with integer data"
// @Failure 500 {object} object "MetricResponse with error"
// @Router /api/metrics/sessions [get]
func SessionsHandler(engine *metrics.Engine) echo.HandlerFunc {
	return metricHandler(engine, (*metrics.Engine).CountSessions)
}

// DepthHandler returns messages per session and the derived turns estimate
// @Summary Average conversation depth
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range (today, yesterday, 7d, 30d, month, all)" default(all)
// @Success 200 {object} object "MetricResponse with models.DepthStats data"
// @Router /api/metrics/depth [get]
func DepthHandler(engine *metrics.Engine) echo.HandlerFunc {
	return metricHandler(engine, (*metrics.Engine).Depth)
}

// SentimentHandler returns sentiment counts for assistant replies
// @Summary Sentiment tally
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Success 200 {object} object "MetricResponse with models.SentimentTally data"
// @Router /api/metrics/sentiment [get]
func SentimentHandler(engine *metrics.Engine) echo.HandlerFunc {
	return metricHandler(engine, (*metrics.Engine).TallySentiment)
}

// IntentsHandler returns the intent histogram
// @Summary Intent volume
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Param top query int false "Only the N most frequent intents"
// @Success 200 {object} object "MetricResponse with a name to count map, or sorted entries with top"
// @Router /api/metrics/intents [get]
func IntentsHandler(engine *metrics.Engine) echo.HandlerFunc {
	return tallyHandler(engine, (*metrics.Engine).TallyIntents)
}

// LanguagesHandler returns the language distribution
// @Summary Language distribution
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Param top query int false "Only the N most frequent languages"
// @Success 200 {object} object "MetricResponse with a language to count map"
// @Router /api/metrics/languages [get]
func LanguagesHandler(engine *metrics.Engine) echo.HandlerFunc {
	return tallyHandler(engine, (*metrics.Engine).TallyLanguages)
}

// LowConfidenceHandler returns questions that received low-confidence answers
// @Summary Low-confidence questions
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Param limit query int false "Maximum number of questions, capped by LOW_CONFIDENCE_MAX_LIMIT" default(10)
// @Success 200 {object} object "MetricResponse with []models.LowConfidenceQuestion data"
// @Failure 400 {object} models.ErrorResponse "limit is not a positive integer or exceeds the maximum"
// @Router /api/metrics/low-confidence [get]
func LowConfidenceHandler(engine *metrics.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, ok := positiveParam(c, "limit")
		if !ok {
			return badParam(c, "limit")
		}
		if ceiling := engine.MaxLowConfidenceLimit(); limit > ceiling {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: fmt.Sprintf("invalid limit: must not exceed %d", ceiling),
			})
		}

		e, key := pinned(engine), rangeKey(c)
		return respond(c, e, key, e.LowConfidenceQuestions(c.Request().Context(), auth.SiteID(c), key, limit))
	}
}

// LeadsHandler lists captured leads, newest first
// @Summary Leads
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Param valid query bool false "Only leads with an email or phone"
// @Success 200 {object} object "MetricResponse with []models.Lead data"
// @Router /api/metrics/leads [get]
func LeadsHandler(engine *metrics.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		validOnly, _ := strconv.ParseBool(c.QueryParam("valid"))

		e, key := pinned(engine), rangeKey(c)
		r := e.ListLeads(c.Request().Context(), auth.SiteID(c), key)
		if validOnly {
			r = metrics.Map(r, metrics.ValidLeads)
		}
		return respond(c, e, key, r)
	}
}

// ValidLeadsHandler returns the number of leads with an email or phone
// @Summary Valid lead count
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Success 200 {object} object "MetricResponse with integer data"
// @Router /api/metrics/valid-leads [get]
func ValidLeadsHandler(engine *metrics.Engine) echo.HandlerFunc {
	return metricHandler(engine, (*metrics.Engine).ValidLeadCount)
}

// LeadIntentsHandler returns valid leads grouped by intent
// @Summary Lead intents
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Param top query int false "Only the N most frequent intents"
// @Success 200 {object} object "MetricResponse with an intent to count map"
// @Router /api/metrics/lead-intents [get]
func LeadIntentsHandler(engine *metrics.Engine) echo.HandlerFunc {
	return tallyHandler(engine, (*metrics.Engine).LeadIntents)
}

// LeadRateHandler returns valid leads per session; data is null without sessions
// @Summary Lead conversion rate
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Success 200 {object} object "MetricResponse with number or null data"
// @Router /api/metrics/lead-rate [get]
func LeadRateHandler(engine *metrics.Engine) echo.HandlerFunc {
	return metricHandler(engine, (*metrics.Engine).LeadConversionRate)
}

// SummaryHandler computes every metric at once
// @Summary All metrics
// @Description Every metric is computed concurrently and carries its own loading/error state
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Success 200 {object} metrics.Summary
// @Router /api/metrics/summary [get]
func SummaryHandler(engine *metrics.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, pinned(engine).Summary(c.Request().Context(), auth.SiteID(c), rangeKey(c)))
	}
}
