package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ramones1960/analyze-tle/internal/auth"
	"github.com/ramones1960/analyze-tle/internal/health"
	"github.com/ramones1960/analyze-tle/internal/httputil"
	"github.com/ramones1960/analyze-tle/internal/metrics"
	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/stream"
	"github.com/ramones1960/analyze-tle/internal/tle"
)

// Config holds HTTP server settings.
type Config struct {
	Addr        string
	CORSOrigins []string // empty allows all origins
	MaxSamples  int
	TrustProxy  bool
	Auth        auth.Config

	StreamMaxPerIP  int           // live streams per client IP
	StreamKeepalive time.Duration // SSE comment interval
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	logger     *slog.Logger
	cfg        Config
	store      *tle.Store
	catalog    *propagation.Catalog
	sampler    *propagation.Sampler
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, logger *slog.Logger, store *tle.Store, catalog *propagation.Catalog, sampler *propagation.Sampler) *Server {
	s := &Server{
		logger:  logger,
		cfg:     cfg,
		store:   store,
		catalog: catalog,
		sampler: sampler,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	// Middleware chain: metrics -> logging -> cors -> auth -> handlers.
	engine.Use(metrics.Middleware())
	engine.Use(loggingMiddleware(logger, cfg.TrustProxy))
	engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	engine.Use(auth.Middleware(cfg.Auth))

	engine.GET("/healthz", health.Healthz)
	engine.GET("/readyz", health.Readyz(func() bool { return store.Get() != nil }))
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := engine.Group("/api/v1")
	v1.POST("/track", s.postTrack)
	sats := v1.Group("/satellites/:norad_id")
	sats.GET("/track", s.getSatelliteTrack)
	sats.GET("/elements", s.getElements)

	live := stream.NewHandler(catalog, store, stream.Config{
		MaxConcurrentPerIP: cfg.StreamMaxPerIP,
		KeepaliveInterval:  cfg.StreamKeepalive,
		TrustProxy:         cfg.TrustProxy,
	}, logger)
	sats.GET("/live", live.Live)

	s.engine = engine
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cfg
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		level := slog.LevelInfo
		if probePath(c.Request.URL.Path) {
			level = slog.LevelDebug
		}

		logger.Log(c.Request.Context(), level, "request",
			"component", "api",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", strconv.Itoa(c.Writer.Status()),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_ip", httputil.ClientIP(c.Request, trustProxy),
		)
	}
}
