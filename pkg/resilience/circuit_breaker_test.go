package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(clock *fakeClock, transitions *[]string) *CircuitBreaker {
	return NewCircuitBreaker("remote.upsert", BreakerConfig{
		Threshold: 5,
		Timeout:   time.Minute,
		Clock:     clock.Now,
		OnStateChange: func(name string, from, to State) {
			if transitions != nil {
				*transitions = append(*transitions, from.String()+"->"+to.String())
			}
		},
	})
}

func failing(calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		return errors.New("network down")
	}
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, nil)
	calls := 0

	for i := 0; i < 4; i++ {
		require.Error(t, b.Execute(context.Background(), failing(&calls)))
		assert.Equal(t, StateClosed, b.State())
	}
	require.Error(t, b.Execute(context.Background(), failing(&calls)))
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 5, calls)
}

func TestCircuitBreakerFailsFastWhileOpen(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, nil)
	calls := 0
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), failing(&calls))
	}

	clock.Advance(30 * time.Second)
	invoked := false
	err := b.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})

	assert.False(t, invoked)
	assert.True(t, IsCircuitOpen(err))
	assert.False(t, IsRetryExhausted(err))
	var open *CircuitOpenError
	require.True(t, errors.As(err, &open))
	assert.Equal(t, 30*time.Second, open.RetryAfter)
}

func TestCircuitBreakerHalfOpenTrialSuccessCloses(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	var transitions []string
	b := newTestBreaker(clock, &transitions)
	calls := 0
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), failing(&calls))
	}

	clock.Advance(time.Minute)
	assert.Equal(t, StateHalfOpen, b.State())

	invoked := false
	err := b.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, invoked)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Snapshot().Failures)
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreakerHalfOpenTrialFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, nil)
	calls := 0
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), failing(&calls))
	}

	clock.Advance(61 * time.Second)
	require.Error(t, b.Execute(context.Background(), failing(&calls)))
	assert.Equal(t, 6, calls)
	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(context.Background(), failing(&calls))
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, 6, calls)
}

func TestCircuitBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, nil)
	calls := 0
	for i := 0; i < 4; i++ {
		_ = b.Execute(context.Background(), failing(&calls))
	}
	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
	for i := 0; i < 4; i++ {
		_ = b.Execute(context.Background(), failing(&calls))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestCircuitBreakerReset(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, nil)
	calls := 0
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), failing(&calls))
	}
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
}

func TestRegistrySharesBreakerPerName(t *testing.T) {
	reg := NewRegistry(BreakerConfig{Threshold: 1, Timeout: time.Minute})
	a := reg.Breaker("remote.upsert")
	assert.Same(t, a, reg.Breaker("remote.upsert"))
	assert.NotSame(t, a, reg.Breaker("remote.load"))

	_ = a.Execute(context.Background(), func(context.Context) error { return errors.New("timeout") })
	assert.Equal(t, StateOpen, a.State())

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "remote.load", snap[0].Name)
	assert.Equal(t, "open", snap[1].State)

	reg.Reset()
	assert.Equal(t, StateClosed, a.State())
}
