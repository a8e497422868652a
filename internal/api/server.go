package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robotic-testing/rtb/internal/auth"
	"github.com/robotic-testing/rtb/internal/config"
	"github.com/robotic-testing/rtb/internal/metrics"
)

// Server is the HTTP API server.
type Server struct {
	httpServer     *http.Server
	pipeline       Pipeline
	metrics        *metrics.Metrics
	authMiddleware *auth.Middleware
	log            *slog.Logger

	exportDir      string
	wsWriteTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	startTime      time.Time
}

// NewServer creates an API server over the pipeline. metrics may be nil;
// auth is enabled only when cfg.Auth.Secret is non-empty.
func NewServer(pipeline Pipeline, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) *Server {
	s := &Server{
		pipeline:       pipeline,
		metrics:        m,
		log:            log,
		exportDir:      cfg.Export.Dir,
		wsWriteTimeout: cfg.Hub.WriteTimeout,
		readTimeout:    cfg.Server.ReadTimeout,
		writeTimeout:   cfg.Server.WriteTimeout,
		idleTimeout:    cfg.Server.IdleTimeout,
		startTime:      time.Now(),
	}
	if cfg.Auth.Secret != "" {
		s.authMiddleware = auth.NewMiddleware(cfg.Auth.Secret)
	}
	return s
}

// Start runs the HTTP server until Stop or a listen failure.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
