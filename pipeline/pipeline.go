// Package pipeline sequences one stream's extract, transform and load and
// advances its watermarks once the load has succeeded.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/metrics"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
	"github.com/mikhail349/new-admin-panel-sprint-3/sources"
)

// Stream is one runnable Etl.
type Stream interface {
	Name() string
	Run(ctx context.Context) error
}

// Loader upserts a batch of documents into an index.
type Loader interface {
	Load(ctx context.Context, index string, docs []models.Document) error
}

// WatermarkStore reads and advances checkpoints. *state.Manager satisfies it.
type WatermarkStore interface {
	sources.WatermarkReader
	Set(ctx context.Context, key string, value models.Watermark) error
}

// TransformFunc maps raw rows of one stream to documents.
type TransformFunc[R any] func(rows []R) ([]models.Document, error)

// Etl runs one stream: extract, transform, load, then checkpoint.
type Etl[R any] struct {
	name      string
	index     string
	extractor sources.Extractor[R]
	transform TransformFunc[R]
	loader    Loader
	state     WatermarkStore
	logger    zerolog.Logger
}

func NewEtl[R any](name, index string, extractor sources.Extractor[R], transform TransformFunc[R], loader Loader, state WatermarkStore) *Etl[R] {
	return &Etl[R]{
		name:      name,
		index:     index,
		extractor: extractor,
		transform: transform,
		loader:    loader,
		state:     state,
		logger:    logger.GetLogger("etl." + name),
	}
}

func (e *Etl[R]) Name() string { return e.name }

// Run performs one pass. Watermarks are written only after the load
// succeeded, and only for origins that returned rows. On any error nothing is
// checkpointed so the next pass re-extracts the same window.
func (e *Etl[R]) Run(ctx context.Context) error {
	start := time.Now()
	err := e.run(ctx)
	metrics.TickDuration.WithLabelValues(e.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TickErrors.WithLabelValues(e.name).Inc()
		return fmt.Errorf("%s: %w", e.name, err)
	}
	return nil
}

func (e *Etl[R]) run(ctx context.Context) error {
	batch, err := e.extractor.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	docs, err := e.transform(batch.Rows)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	docs = dedupe(docs)

	if err := e.loader.Load(ctx, e.index, docs); err != nil {
		return err
	}

	keys := make([]string, 0, len(batch.Watermarks))
	for key := range batch.Watermarks {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		wm := batch.Watermarks[key]
		if wm.IsZero() {
			continue
		}
		if err := e.state.Set(ctx, key, wm); err != nil {
			return err
		}
	}

	e.logger.Debug().Int("rows", len(batch.Rows)).Int("documents", len(docs)).Msg("pass complete")
	return nil
}

// dedupe drops documents whose id reappears later in the batch. The later
// one wins and keeps its position.
func dedupe(docs []models.Document) []models.Document {
	if len(docs) < 2 {
		return docs
	}
	last := make(map[string]int, len(docs))
	for i, doc := range docs {
		last[doc.DocumentID()] = i
	}
	if len(last) == len(docs) {
		return docs
	}
	out := make([]models.Document, 0, len(last))
	for i, doc := range docs {
		if last[doc.DocumentID()] == i {
			out = append(out, doc)
		}
	}
	return out
}
