// Package engine drives the streams. One goroutine owns the source
// connection and runs every stream in turn; a failed tick drops the
// connection and starts over from Disconnected.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/checkpoint"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/metrics"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/retry"
	"github.com/mikhail349/new-admin-panel-sprint-3/pipeline"
	"github.com/mikhail349/new-admin-panel-sprint-3/sources"
	"github.com/mikhail349/new-admin-panel-sprint-3/state"
)

// Dialer opens a source connection.
type Dialer func(ctx context.Context) (sources.Conn, error)

// StreamBuilder binds the streams to a live connection and the loaded state.
type StreamBuilder func(db sources.Querier, st *state.Manager) []pipeline.Stream

type Config struct {
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
	// Connect paces reconnects and the pause after a failed tick.
	Connect retry.Config `koanf:"connect"`
}

func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		Connect:      retry.DefaultConfig(),
	}
}

// maxPaceSteps bounds the backoff step used after repeated failed ticks.
// MaxDelay is reached well before it.
const maxPaceSteps = 32

type Scheduler struct {
	dial         Dialer
	storage      checkpoint.Storage
	build        StreamBuilder
	pollInterval time.Duration
	connect      retry.Policy
	logger       zerolog.Logger

	// failures counts consecutive failed cycles
	failures int

	mu    sync.RWMutex
	state *state.Manager
}

func New(cfg Config, dial Dialer, storage checkpoint.Storage, build StreamBuilder) *Scheduler {
	return &Scheduler{
		dial:         dial,
		storage:      storage,
		build:        build,
		pollInterval: cfg.PollInterval,
		connect:      retry.Forever("source.connect", cfg.Connect, nil),
		logger:       logger.GetLogger("scheduler"),
	}
}

// Serve runs until ctx is done. It satisfies suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.logger.Info().Dur("poll_interval", s.pollInterval).Msg("scheduler started")
	for {
		err := s.cycle(ctx)
		if ctx.Err() != nil {
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		}

		s.failures++
		delay := s.pause()
		metrics.Reconnects.Inc()
		s.logger.Error().Err(err).Int("consecutive_failures", s.failures).Dur("delay", delay).
			Msg("tick failed, reconnecting")
		if !sleep(ctx, delay) {
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		}
	}
}

func (s *Scheduler) String() string { return "etl-scheduler" }

// Checkpoints returns the current checkpoint set, or nil before the first
// successful load.
func (s *Scheduler) Checkpoints() checkpoint.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	return s.state.Snapshot()
}

// cycle connects, loads the state and runs ticks until one fails. It only
// returns with an error.
func (s *Scheduler) cycle(ctx context.Context) error {
	conn, err := s.connectSource(ctx)
	if err != nil {
		return err
	}
	metrics.SourceConnected.Set(1)
	defer func() {
		metrics.SourceConnected.Set(0)
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close source connection")
		}
	}()

	st, err := state.Load(ctx, s.storage)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	streams := s.build(conn, st)
	for {
		for _, stream := range streams {
			if err := stream.Run(ctx); err != nil {
				return fmt.Errorf("stream %s: %w", stream.Name(), err)
			}
		}
		s.failures = 0
		if !sleep(ctx, s.pollInterval) {
			return ctx.Err()
		}
	}
}

func (s *Scheduler) connectSource(ctx context.Context) (sources.Conn, error) {
	var conn sources.Conn
	err := s.connect.Do(ctx, func(ctx context.Context) error {
		c, err := s.dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, errors.New("dialer returned no connection")
	}
	s.logger.Info().Msg("connected to source")
	return conn, nil
}

// pause is the wait after the n-th consecutive failed cycle.
func (s *Scheduler) pause() time.Duration {
	n := min(s.failures, maxPaceSteps)
	return s.connect.Delays(n)[n-1]
}

// sleep waits for d. It returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
