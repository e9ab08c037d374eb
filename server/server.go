// Package server is the operational HTTP surface: liveness, prometheus
// metrics and a read-only view of the checkpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
)

type Config struct {
	Enabled         bool          `koanf:"enabled"`
	Addr            string        `koanf:"addr" validate:"required_if=Enabled true"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server runs the ops router until its context ends. It satisfies
// suture.Service.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

func New(cfg Config, src CheckpointSource) *Server {
	l := logger.GetLogger("server")
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(src, l),
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          l,
	}
}

func NewRouter(src CheckpointSource, l zerolog.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(requestLogger(l))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.CleanPath)

	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/checkpoints", CheckpointRouter(src))

	return router
}

func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("running the web server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *Server) String() string { return "ops-http-server" }

func requestLogger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			l.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
