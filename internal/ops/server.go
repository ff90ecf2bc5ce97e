// Package ops serves the operational HTTP endpoints for the integration:
// liveness, readiness and metrics.
package ops

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vocsync/vocsync/internal/metrics"
)

const (
	// ReadTimeout is the HTTP read timeout.
	ReadTimeout = 5 * time.Second
	// WriteTimeout is the HTTP write timeout.
	WriteTimeout = 10 * time.Second
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second
	// readyCheckTimeout bounds each dependency ping.
	readyCheckTimeout = 5 * time.Second
)

// HealthChecker is a pingable dependency surfaced under /readyz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server is the ops HTTP sidecar.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	checks      map[string]HealthChecker
	snapshotter metrics.Snapshotter
}

// NewServer creates an ops server on the given port. checks maps dependency
// names to their health checks; snapshotter may be nil when metrics are off.
func NewServer(port int, checks map[string]HealthChecker, snapshotter metrics.Snapshotter, logger *slog.Logger) *Server {
	s := &Server{
		logger:      logger.With("component", "ops"),
		checks:      checks,
		snapshotter: snapshotter,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/metrics", s.handleMetrics)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("ops server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("ops server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.httpServer.SetKeepAlivesEnabled(false)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	s.logger.Info("ops server stopped")
	return nil
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
