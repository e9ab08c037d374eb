package retry

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/metrics"
)

// BreakerConfig configures the circuit breaker placed in front of a sink.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`
	// ConsecutiveFailures opens the circuit.
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" validate:"gte=1"`
	OpenTimeout         time.Duration `koanf:"open_timeout" validate:"gt=0"`
	HalfOpenRequests    uint32        `koanf:"half_open_requests" validate:"gte=1"`
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:             true,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// Breaker fails calls fast while the protected dependency keeps failing.
// Only errors accepted by counts are recorded as failures.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreaker(name string, cfg BreakerConfig, counts func(error) bool) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (counts != nil && !counts(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return &Breaker{name: name, cb: cb}
}

// Execute runs fn through the breaker. A nil Breaker runs fn directly.
func (b *Breaker) Execute(fn func() error) error {
	if b == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}

// IsOpen reports whether err was produced by a breaker that refused the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
