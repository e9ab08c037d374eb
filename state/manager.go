// Package state keeps the checkpoint set resident in memory. Reads never
// touch the backing store, every write is flushed before Set returns.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/checkpoint"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/metrics"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

// Manager is a write-through cache over a checkpoint.Storage.
type Manager struct {
	storage checkpoint.Storage
	logger  zerolog.Logger

	// guards set; the HTTP server snapshots it from another goroutine
	mu  sync.RWMutex
	set checkpoint.Set
}

// Load retrieves the persisted set once and keeps it resident.
func Load(ctx context.Context, storage checkpoint.Storage) (*Manager, error) {
	set, err := storage.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	if set == nil {
		set = checkpoint.Set{}
	}

	m := &Manager{
		storage: storage,
		logger:  logger.GetLogger("state"),
		set:     set,
	}
	for k, v := range set {
		m.observe(k, models.Watermark(v))
	}
	m.logger.Info().Int("keys", len(set)).Msg("checkpoints loaded")
	return m, nil
}

// Get returns the watermark for key, or the zero Watermark when none exists.
func (m *Manager) Get(key string) models.Watermark {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.Watermark(m.set[key])
}

// Set records the watermark and persists the whole set. On a persist error
// the in memory value stays updated; the next successful Set flushes it.
func (m *Manager) Set(ctx context.Context, key string, value models.Watermark) error {
	m.mu.Lock()
	m.set[key] = value.String()
	snapshot := m.set.Clone()
	m.mu.Unlock()

	if err := m.storage.Persist(ctx, snapshot); err != nil {
		return fmt.Errorf("persist checkpoint %q: %w", key, err)
	}
	m.observe(key, value)
	m.logger.Debug().Str("key", key).Str("watermark", value.String()).Msg("watermark advanced")
	return nil
}

// Snapshot returns a copy of every checkpoint.
func (m *Manager) Snapshot() checkpoint.Set {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.Clone()
}

func (m *Manager) observe(key string, w models.Watermark) {
	t, err := w.Time()
	if err != nil {
		return
	}
	metrics.Watermark.WithLabelValues(key).Set(float64(t.UnixNano()) / 1e9)
}
