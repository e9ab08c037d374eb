package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
)

// FileStorage keeps the set as one JSON object. Every Persist rewrites the
// file through a rename so a crash leaves either the old or the new set.
type FileStorage struct {
	path   string
	logger zerolog.Logger
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path:   path,
		logger: logger.GetLogger("checkpoint.file"),
	}
}

func (f *FileStorage) Retrieve(ctx context.Context) (Set, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.logger.Info().Str("file_path", f.path).Msg("no checkpoint file, starting from scratch")
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Set{}, nil
	}

	set := Set{}
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode checkpoint file %s: %w", f.path, err)
	}
	return set, nil
}

func (f *FileStorage) Persist(ctx context.Context, set Set) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint set: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace checkpoint file: %w", err)
	}

	f.logger.Trace().Str("file_path", f.path).Int("keys", len(set)).Msg("checkpoint persisted")
	return nil
}

func (f *FileStorage) Close() error { return nil }
