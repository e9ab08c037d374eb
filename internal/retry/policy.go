// Package retry holds the backoff policy shared by every call site that talks
// to the network: the source connection, the sinks and the remote checkpoint
// stores.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/metrics"
)

const (
	DefaultBaseDelay  = 100 * time.Millisecond
	DefaultMultiplier = 2.0
	DefaultMaxDelay   = 10 * time.Second
)

// Config is the user facing part of a Policy.
type Config struct {
	BaseDelay  time.Duration `koanf:"base_delay" validate:"gt=0"`
	Multiplier float64       `koanf:"multiplier" validate:"gte=1"`
	MaxDelay   time.Duration `koanf:"max_delay" validate:"gt=0"`
	// MaxElapsed bounds sink and store retries. Connection retries ignore it.
	MaxElapsed time.Duration `koanf:"max_elapsed" validate:"gte=0"`
	Jitter     float64       `koanf:"jitter" validate:"gte=0,lt=1"`
}

func DefaultConfig() Config {
	return Config{
		BaseDelay:  DefaultBaseDelay,
		Multiplier: DefaultMultiplier,
		MaxDelay:   DefaultMaxDelay,
		MaxElapsed: time.Minute,
	}
}

// Policy retries an operation with exponential backoff. The delay before
// attempt k+1 is min(BaseDelay*Multiplier^k, MaxDelay). A zero MaxElapsed
// retries forever. Every Do call starts from attempt zero.
type Policy struct {
	Name       string
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	MaxElapsed time.Duration
	Jitter     float64

	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(error) bool

	// Notify is called before each sleep.
	Notify func(err error, attempt int, delay time.Duration)

	clock backoff.Clock
	timer backoff.Timer
}

// Bounded builds a policy that gives up once MaxElapsed has passed.
func Bounded(name string, cfg Config, retryable func(error) bool) Policy {
	return Policy{
		Name:       name,
		BaseDelay:  cfg.BaseDelay,
		Multiplier: cfg.Multiplier,
		MaxDelay:   cfg.MaxDelay,
		MaxElapsed: cfg.MaxElapsed,
		Jitter:     cfg.Jitter,
		Retryable:  retryable,
	}
}

// Forever builds a policy that never gives up on retryable errors.
func Forever(name string, cfg Config, retryable func(error) bool) Policy {
	p := Bounded(name, cfg, retryable)
	p.MaxElapsed = 0
	return p
}

// Do runs op until it succeeds, returns a non retryable error, the elapsed
// bound is hit or ctx is done. The last error of op is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(err)
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		attempt++
		metrics.RetryAttempts.WithLabelValues(p.label()).Inc()
		log.Warn().Err(err).
			Str("operation", p.label()).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying after error")
		if p.Notify != nil {
			p.Notify(err, attempt, delay)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(p.newBackOff(), ctx), notify, p.timer)
	if err != nil && attempt > 0 && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("operation", p.label()).Int("attempts", attempt+1).Msg("giving up")
	}
	return err
}

// Delays returns the first n sleeps the policy would take, ignoring the
// elapsed bound and jitter.
func (p Policy) Delays(n int) []time.Duration {
	q := p
	q.Jitter = 0
	q.MaxElapsed = 0
	b := q.newBackOff()
	b.Reset()
	delays := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		delays = append(delays, b.NextBackOff())
	}
	return delays
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = p.MaxElapsed
	b.RandomizationFactor = p.Jitter
	if p.clock != nil {
		b.Clock = p.clock
	}
	return b
}

func (p Policy) label() string {
	if p.Name == "" {
		return "unnamed"
	}
	return p.Name
}
