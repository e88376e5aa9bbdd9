// Package server implements the faultline HTTP control API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dwsmith1983/faultline/internal/engine"
	"github.com/dwsmith1983/faultline/internal/scheduler"
	"github.com/dwsmith1983/faultline/pkg/types"
)

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics, outside API key checks.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server is the faultline HTTP API server.
type Server struct {
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	router    chi.Router
	addr      string
	apiKey    string
	maxBody   int64
	version   string
	metrics   http.Handler
	logger    *slog.Logger
	srv       *http.Server
}

// New creates a new HTTP server.
func New(cfg types.ServerConfig, eng *engine.Engine, sched *scheduler.Scheduler, opts ...Option) *Server {
	s := &Server{
		engine:    eng,
		scheduler: sched,
		addr:      cfg.Addr,
		apiKey:    cfg.APIKey,
		maxBody:   cfg.MaxRequestBody,
		version:   "dev",
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	s.router = r
	s.registerRoutes(r)

	s.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Stop is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("faultline server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server. Calling it before Start makes a
// later Start return immediately.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
