package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection refused")

// fakeClock and fakeTimer let the policy "sleep" without waiting.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeTimer struct {
	clock  *fakeClock
	c      chan time.Time
	sleeps []time.Duration
}

func newFakeTimer(clock *fakeClock) *fakeTimer {
	return &fakeTimer{clock: clock, c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.sleeps = append(t.sleeps, d)
	t.clock.now = t.clock.now.Add(d)
	t.c <- t.clock.now
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func setupTestPolicy(t *testing.T, p Policy) (Policy, *fakeTimer) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	timer := newFakeTimer(clock)
	p.clock = clock
	p.timer = timer
	return p, timer
}

func TestPolicy_Delays(t *testing.T) {
	p := Bounded("test", DefaultConfig(), nil)

	got := p.Delays(10)
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
		6400 * time.Millisecond,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	assert.Equal(t, want, got)
}

func TestPolicy_Do(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		failWith   error
		maxElapsed time.Duration
		wantErr    error
		wantCalls  int
		wantSleeps []time.Duration
	}{
		{
			name:      "first attempt succeeds",
			failures:  0,
			wantCalls: 1,
		},
		{
			name:       "two transient failures then success",
			failures:   2,
			failWith:   errTransient,
			maxElapsed: time.Minute,
			wantCalls:  3,
			wantSleeps: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:       "permanent error is not retried",
			failures:   5,
			failWith:   errPermanent,
			maxElapsed: time.Minute,
			wantErr:    errPermanent,
			wantCalls:  1,
		},
		{
			// 0.1+0.2+0.4 = 0.7s slept, the next 0.8s would pass the 1s bound
			name:       "gives up once elapsed bound is reached",
			failures:   100,
			failWith:   errTransient,
			maxElapsed: time.Second,
			wantErr:    errTransient,
			wantCalls:  4,
			wantSleeps: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxElapsed = tt.maxElapsed
			p, timer := setupTestPolicy(t, Bounded("test", cfg, isTransient))

			calls := 0
			err := p.Do(context.Background(), func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantSleeps == nil {
				assert.Empty(t, timer.sleeps)
			} else {
				assert.Equal(t, tt.wantSleeps, timer.sleeps)
			}
		})
	}
}

func TestPolicy_DoResetsBetweenCalls(t *testing.T) {
	p, timer := setupTestPolicy(t, Bounded("test", DefaultConfig(), nil))

	for round := 0; round < 2; round++ {
		calls := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, timer.sleeps)
}

func TestPolicy_ForeverIgnoresElapsed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxElapsed = time.Millisecond
	p, timer := setupTestPolicy(t, Forever("connect", cfg, nil))

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 20 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, timer.sleeps, 19)
	assert.Equal(t, 10*time.Second, timer.sleeps[18])
}

func TestPolicy_DoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, _ := setupTestPolicy(t, Forever("connect", DefaultConfig(), nil))

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Notify(t *testing.T) {
	var attempts []int
	p := Bounded("test", DefaultConfig(), nil)
	p.Notify = func(err error, attempt int, delay time.Duration) {
		attempts = append(attempts, attempt)
	}
	p, _ = setupTestPolicy(t, p)

	calls := 0
	require.NoError(t, p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}))
	assert.Equal(t, []int{1, 2}, attempts)
}

var errPermanent = errors.New("mapper_parsing_exception")

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}
