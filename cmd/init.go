package main

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/config"
)

func newSupervisor() *suture.Supervisor {
	return suture.New("postgres-to-es", suture.Spec{
		EventHook:        logSupervisorEvent,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          15 * time.Second,
	})
}

func logSupervisorEvent(e suture.Event) {
	ev := log.Warn().Str("component", "supervisor").Int("event_type", int(e.Type()))
	for k, v := range e.Map() {
		ev = ev.Interface(k, v)
	}
	ev.Msg(e.String())
}

// logConfig prints the effective settings without credentials.
func logConfig(cfg *config.Config) {
	log.Info().
		Str("postgres", cfg.Postgres.Host).
		Int("postgres_port", cfg.Postgres.Port).
		Str("dbname", cfg.Postgres.DBName).
		Str("streams", strings.Join(cfg.ETL.Streams, ",")).
		Int("rows_limit", cfg.ETL.RowsLimit).
		Dur("poll_interval", cfg.Scheduler.PollInterval).
		Str("sink", cfg.Sink.Type).
		Str("checkpoint_backend", cfg.Checkpoint.Backend).
		Dur("backoff_max_time", cfg.Retry.MaxElapsed).
		Bool("server", cfg.Server.Enabled).
		Msg("configuration loaded")
}
