package server

import (
	"context"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"insights/internal/auth"
	"insights/internal/cache"
	"insights/internal/config"
	"insights/internal/database"
	"insights/internal/handlers"
	"insights/internal/metrics"
)

// Server represents the application server
type Server struct {
	echo   *echo.Echo
	db     *sqlx.DB
	config *config.Config
	logger zerolog.Logger

	store  *database.Store
	engine *metrics.Engine
	views  *metrics.Views
	auth   *auth.Manager
}

// New creates a new server instance. Without a database only the health
// endpoints are served.
func New(cfg *config.Config, db *sqlx.DB, c cache.Cache, logger zerolog.Logger) *Server {
	s := &Server{
		config: cfg,
		db:     db,
		logger: logger,
		auth:   auth.NewManager(cfg),
	}

	if db != nil {
		s.store = database.NewStore(db)
		s.engine = metrics.NewEngine(s.store, c, metrics.Config{
			LowConfidenceThreshold: cfg.LowConfidenceThreshold,
			LowConfidenceLimit:     cfg.LowConfidenceLimit,
			LowConfidenceMaxLimit:  cfg.LowConfidenceMaxLimit,
			FanOutConcurrency:      cfg.FanOutConcurrency,
			QueryTimeout:           cfg.QueryTimeout,
			CacheTTL:               cfg.MetricsCacheTTL,
			Location:               cfg.Location(),
		}, logger)
		s.views = metrics.NewViews(s.engine)
	}

	return s
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			event := s.logger.Info()
			if res.Status >= 500 {
				event = s.logger.Warn()
			}

			event.
				Str("method", req.Method).
				Str("uri", redactedURI(req.URL)).
				Str("remote_ip", c.RealIP()).
				Str("site_id", auth.SiteID(c)).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// redactedURI masks credentials a client put in the query string
func redactedURI(u *url.URL) string {
	q := u.Query()
	if !q.Has("token") {
		return u.RequestURI()
	}

	q.Set("token", "REDACTED")
	masked := *u
	masked.RawQuery = q.Encode()
	return masked.RequestURI()
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	// Middleware
	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Hide Echo banner
	s.echo.HideBanner = true

	// Setup routes
	s.setupRoutes()
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints (keep at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.db))

	api := s.echo.Group("/api")
	api.GET("/", handlers.RootHandler(s.config.Version))
	api.POST("/auth/login", handlers.LoginHandler(s.auth))

	if s.engine == nil {
		s.logger.Warn().Msg("No database connection, metrics endpoints are disabled")
		return
	}

	// Everything below is scoped to the caller's site
	tenant := api.Group("", auth.Middleware(s.auth), auth.TenantMiddleware(s.store))
	tenant.GET("/profile", handlers.ProfileHandler())

	m := tenant.Group("/metrics")
	m.GET("/sessions", handlers.SessionsHandler(s.engine))
	m.GET("/depth", handlers.DepthHandler(s.engine))
	m.GET("/sentiment", handlers.SentimentHandler(s.engine))
	m.GET("/intents", handlers.IntentsHandler(s.engine))
	m.GET("/languages", handlers.LanguagesHandler(s.engine))
	m.GET("/low-confidence", handlers.LowConfidenceHandler(s.engine))
	m.GET("/leads", handlers.LeadsHandler(s.engine))
	m.GET("/valid-leads", handlers.ValidLeadsHandler(s.engine))
	m.GET("/lead-intents", handlers.LeadIntentsHandler(s.engine))
	m.GET("/lead-rate", handlers.LeadRateHandler(s.engine))
	m.GET("/summary", handlers.SummaryHandler(s.engine))

	tenant.GET("/dashboard", handlers.DashboardHandler(s.views))
	tenant.POST("/dashboard/refresh", handlers.RefreshDashboardHandler(s.views))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
