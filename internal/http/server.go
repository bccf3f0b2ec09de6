package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/allisson/onetime/internal/metrics"
	secretHTTP "github.com/allisson/onetime/internal/secret/http"
)

// Server represents the HTTP API server.
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger

	// stopBackground cancels middleware background goroutines on shutdown.
	stopBackground context.CancelFunc
}

// NewServer creates a new HTTP server. db may be nil when the in-memory
// store is configured; readiness then only reflects process liveness.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterConfig carries the handler and middleware configuration for SetupRouter.
type RouterConfig struct {
	SecretHandler *secretHTTP.SecretHandler

	// MeterProvider enables HTTP metrics collection when non-nil.
	MeterProvider    metric.MeterProvider
	MetricsNamespace string

	CORSEnabled      bool
	CORSAllowOrigins string

	RateLimitEnabled        bool
	RateLimitRequestsPerSec float64
	RateLimitBurst          int
}

// SetupRouter builds the gin router with middleware and API routes.
func (s *Server) SetupRouter(cfg RouterConfig) {
	backgroundCtx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if cfg.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MeterProvider, cfg.MetricsNamespace))
	}
	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if rateLimitMiddleware := createRateLimitMiddleware(
		backgroundCtx, cfg.RateLimitEnabled, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger,
	); rateLimitMiddleware != nil {
		router.Use(rateLimitMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	{
		v1.POST("/secrets", cfg.SecretHandler.CreateHandler)
		v1.GET("/secrets/:id", cfg.SecretHandler.RetrieveHandler)
	}

	s.router = router
}

// Router returns the configured router for testing purposes.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can take traffic. With a SQL
// store this pings the database; the in-memory store is always ready.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"components": components,
			})
			return
		}
		components["database"] = "ok"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if s.stopBackground != nil {
		s.stopBackground()
	}
	return s.server.Shutdown(ctx)
}
