// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects handlers, middleware and
// routes, and owns the server lifecycle. main.go builds the runner and the
// config; everything below the router is assembled here in New.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/ffmpeg-api/internal/auth"
	"github.com/sakif/ffmpeg-api/internal/handler"
	"github.com/sakif/ffmpeg-api/internal/metrics"
	"github.com/sakif/ffmpeg-api/internal/middleware"
	"github.com/sakif/ffmpeg-api/internal/runner"
)

// Config holds server configuration.
type Config struct {
	Host string
	Port int

	// Tool and Runner are reported by /healthz; Tool is also the binary invoked by the exec runner.
	Tool        string
	RunnerName  string
	ToolVersion string

	TempDir        string
	MaxUploadBytes int64
	// ToolTimeout is used to size the write timeout so a slow transcode is not cut off mid-response.
	ToolTimeout time.Duration

	// JWTSecret enables bearer-token auth on /process when set.
	JWTSecret string

	// ShutdownTimeout bounds how long in-flight requests may run after a signal.
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	runner   runner.Runner
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// New creates a new Server with the given config and runner.
func New(cfg Config, r runner.Runner, logger *slog.Logger) (*Server, error) {
	if r == nil {
		return nil, errors.New("server: runner is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		runner:   r,
		registry: reg,
		metrics:  metrics.New(reg),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /          → banner (JSON)
// GET  /healthz   → liveness (JSON)
// GET  /metrics   → Prometheus exposition
// POST /process   → upload + commands → transformed file
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the real client IP from proxy headers
//  3. Logger: logs each request with timing info and the request ID
//  4. Metrics: counts and times requests by route
//  5. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics, middleware.DefaultMetricsConfig()))
	s.router.Use(chimiddleware.Recoverer)

	status := handler.NewStatusHandler(handler.ServiceInfo{
		Tool:    s.config.Tool,
		Runner:  s.config.RunnerName,
		Version: s.config.ToolVersion,
	})
	s.router.Get("/", status.HandleRoot)
	s.router.Get("/healthz", status.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	process := handler.NewProcessHandler(s.runner, handler.ProcessConfig{
		Binary:         s.config.Tool,
		TempDir:        s.config.TempDir,
		MaxUploadBytes: s.config.MaxUploadBytes,
	}, s.metrics, s.logger)

	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		if tokens, err = auth.NewTokenService(s.config.JWTSecret); err != nil {
			return err
		}
	}

	s.router.Group(func(r chi.Router) {
		if tokens != nil {
			r.Use(auth.RequireBearer(tokens, s.logger, handler.WriteError))
		}
		r.Post("/process", process.HandleProcess)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (ShutdownTimeout)
//  3. Requests still running after that have their contexts canceled, which
//     kills their tool processes; workspaces are removed by the handlers' defers
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := s.httpServer()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("runner", s.config.RunnerName),
			slog.String("tool", s.config.Tool),
			slog.Bool("auth", s.config.JWTSecret != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// httpServer builds the http.Server. Uploads and transcodes are slow, so the
// read and write timeouts are sized from the tool timeout instead of the
// usual 15 seconds.
func (s *Server) httpServer() *http.Server {
	toolTimeout := s.config.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = runner.DefaultConfig().Timeout
	}
	return &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       toolTimeout,
		WriteTimeout:      2*toolTimeout + time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
}
