package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

type FileConfig struct {
	Dir string `koanf:"dir"`
}

// FileSink appends bulk-API NDJSON to <dir>/<index>.ndjson. Replaying the
// files against Elasticsearch reproduces the index.
type FileSink struct {
	dir    string
	logger zerolog.Logger

	mu    sync.Mutex
	files map[string]*os.File
}

func NewFileSink(cfg FileConfig) (*FileSink, error) {
	l := logger.GetLogger("sink.file")
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		l.Err(err).Str("directory", cfg.Dir).Msg("failed to create output directory")
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileSink{dir: cfg.Dir, logger: l, files: map[string]*os.File{}}, nil
}

func (f *FileSink) Name() string { return TypeFile }

func (f *FileSink) BulkUpsert(ctx context.Context, index string, docs []models.Document) error {
	body, err := bulkBody(index, docs)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.open(index)
	if err != nil {
		return err
	}
	if _, err := file.Write(body); err != nil {
		return fmt.Errorf("write %s: %w", file.Name(), err)
	}
	return file.Sync()
}

func (f *FileSink) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for index, file := range f.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.files, index)
	}
	return firstErr
}

func (f *FileSink) open(index string) (*os.File, error) {
	if file, ok := f.files[index]; ok {
		return file, nil
	}
	path := filepath.Join(f.dir, index+".ndjson")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f.logger.Trace().Str("file_path", path).Msg("opened output file")
	f.files[index] = file
	return file, nil
}
