package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := BreakerConfig{Enabled: true, ConsecutiveFailures: 2, OpenTimeout: time.Hour, HalfOpenRequests: 1}
	b := NewBreaker("test-open", cfg, isTransient)

	assert.ErrorIs(t, b.Execute(func() error { return errTransient }), errTransient)
	assert.ErrorIs(t, b.Execute(func() error { return errTransient }), errTransient)

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	assert.True(t, IsOpen(err))
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_IgnoresUncountedErrors(t *testing.T) {
	cfg := BreakerConfig{Enabled: true, ConsecutiveFailures: 1, OpenTimeout: time.Hour, HalfOpenRequests: 1}
	b := NewBreaker("test-uncounted", cfg, isTransient)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(func() error { return errPermanent }), errPermanent)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_Nil(t *testing.T) {
	var b *Breaker
	err := b.Execute(func() error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "closed", b.State())
	assert.False(t, IsOpen(err))
}
