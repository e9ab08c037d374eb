package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/config"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
)

type blockingService struct {
	started chan struct{}
}

func (s *blockingService) Serve(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestNewSupervisor_ServesUntilCancelled(t *testing.T) {
	sup := newSupervisor()
	svc := &blockingService{started: make(chan struct{})}
	sup.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Serve(ctx) }()

	select {
	case <-svc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("service was not started")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestLogConfig_OmitsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	require.NoError(t, logger.Init(logger.Config{Level: "info", Format: "json"}))

	cfg := &config.Config{}
	cfg.Postgres.Host = "db"
	cfg.Postgres.User = "app"
	cfg.Postgres.Password = "s3cret"

	logConfig(cfg)

	assert.Contains(t, buf.String(), `"postgres":"db"`)
	assert.NotContains(t, buf.String(), "s3cret")
}
