package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/metrics"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/retry"
)

// Loader pushes batches into a Sink, retrying while the sink is unreachable.
type Loader struct {
	sink    Sink
	policy  retry.Policy
	breaker *retry.Breaker
	logger  zerolog.Logger
}

func NewLoader(sink Sink, rc retry.Config, bc retry.BreakerConfig) *Loader {
	l := &Loader{
		sink:   sink,
		policy: retry.Bounded("sink."+sink.Name(), rc, IsTransient),
		logger: logger.GetLogger("loader"),
	}
	if bc.Enabled {
		l.breaker = retry.NewBreaker("sink."+sink.Name(), bc, IsTransient)
	}
	return l
}

// Load upserts docs into index in one bulk call. An empty batch never
// reaches the sink.
func (l *Loader) Load(ctx context.Context, index string, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	start := time.Now()
	err := l.policy.Do(ctx, func(ctx context.Context) error {
		return l.breaker.Execute(func() error {
			return l.sink.BulkUpsert(ctx, index, docs)
		})
	})
	metrics.LoadDuration.WithLabelValues(l.sink.Name(), index).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("load %d documents into %s: %w", len(docs), index, err)
	}

	metrics.DocumentsLoaded.WithLabelValues(l.sink.Name(), index).Add(float64(len(docs)))
	l.logger.Info().Str("sink", l.sink.Name()).Str("index", index).Int("documents", len(docs)).Msg("documents loaded")
	return nil
}
