package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikhail349/new-admin-panel-sprint-3/checkpoint"
	"github.com/mikhail349/new-admin-panel-sprint-3/engine"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/config"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/pipeline"
	"github.com/mikhail349/new-admin-panel-sprint-3/server"
	"github.com/mikhail349/new-admin-panel-sprint-3/sinks"
	"github.com/mikhail349/new-admin-panel-sprint-3/sources"
	"github.com/mikhail349/new-admin-panel-sprint-3/state"
)

var buildString = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.AdHocLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := logger.Init(cfg.Logging); err != nil {
		logger.AdHocLogger.Fatal().Err(err).Msg("failed to initialize logger")
	}
	log.Info().Str("build", buildString).Msg("starting postgres to search index sync")
	logConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("exiting")
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	storage, err := checkpoint.New(ctx, cfg.Checkpoint, cfg.Retry)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Err(err).Msg("failed to close checkpoint store")
		}
	}()

	sink, err := sinks.New(ctx, cfg.Sink)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			log.Err(err).Str("sink", sink.Name()).Msg("failed to close sink")
		}
	}()
	loader := sinks.NewLoader(sink, cfg.Retry, cfg.Sink.Breaker)

	dial := func(ctx context.Context) (sources.Conn, error) {
		conn, err := sources.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	build := func(db sources.Querier, st *state.Manager) []pipeline.Stream {
		return pipeline.Build(cfg.ETL, db, st, loader)
	}
	scheduler := engine.New(cfg.Scheduler, dial, storage, build)

	supervisor := newSupervisor()
	supervisor.Add(scheduler)
	if cfg.Server.Enabled {
		supervisor.Add(server.New(cfg.Server, scheduler))
	}

	if err := supervisor.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
