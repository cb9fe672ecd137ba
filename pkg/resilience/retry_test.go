package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedError struct {
	code string
}

func (e codedError) Error() string { return "remote call failed" }
func (e codedError) Code() string  { return e.code }

func newTestRetrier(jitter float64, sleeps *[]time.Duration) *Retrier {
	return NewRetrier(RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          30 * time.Second,
		Jitter:            0.3,
		RetryableErrors:   []string{"network", "timeout", "unavailable", "resource-exhausted"},
		Rand:              func() float64 { return jitter },
		Sleep: func(ctx context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		},
	})
}

func TestRetrierDelayBounds(t *testing.T) {
	low := newTestRetrier(0, nil)
	high := newTestRetrier(1, nil)

	ms := float64(time.Millisecond)
	assert.InDelta(t, float64(1000*time.Millisecond), float64(low.Delay(1)), ms)
	assert.InDelta(t, float64(1300*time.Millisecond), float64(high.Delay(1)), ms)
	assert.InDelta(t, float64(2000*time.Millisecond), float64(low.Delay(2)), ms)
	assert.InDelta(t, float64(2600*time.Millisecond), float64(high.Delay(2)), ms)
}

func TestRetrierDelayCapsAtMaxDelay(t *testing.T) {
	r := newTestRetrier(1, nil)
	assert.Equal(t, 30*time.Second, r.Delay(6))
	assert.Equal(t, 30*time.Second, r.Delay(100))
}

func TestRetrierDelayWithRealJitterStaysInRange(t *testing.T) {
	r := NewRetrier(DefaultRetryConfig())
	for i := 0; i < 200; i++ {
		d := r.Delay(2)
		assert.GreaterOrEqual(t, d, 2000*time.Millisecond)
		assert.LessOrEqual(t, d, 2600*time.Millisecond)
	}
}

func TestRetrierRetriesTransientThenSucceeds(t *testing.T) {
	var sleeps []time.Duration
	r := newTestRetrier(0, &sleeps)
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: network is unreachable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, sleeps)
}

func TestRetrierExhaustionWrapsLastError(t *testing.T) {
	r := newTestRetrier(0, nil)
	calls := 0
	last := errors.New("service unavailable #3")

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 3 {
			return last
		}
		return errors.New("request timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsRetryExhausted(err))
	assert.ErrorIs(t, err, last)
	assert.False(t, IsCircuitOpen(err))
}

func TestRetrierPermanentErrorAbortsImmediately(t *testing.T) {
	var sleeps []time.Duration
	r := newTestRetrier(0, &sleeps)
	permanent := errors.New("duplicate key value violates unique constraint")
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps)
	assert.False(t, IsRetryExhausted(err))
}

func TestRetrierMatchesErrorCode(t *testing.T) {
	r := newTestRetrier(0, nil)
	assert.True(t, r.IsRetryable(codedError{code: "RESOURCE-EXHAUSTED"}))
	assert.False(t, r.IsRetryable(codedError{code: "permission-denied"}))
	assert.False(t, r.IsRetryable(context.Canceled))
	assert.False(t, r.IsRetryable(&CircuitOpenError{Name: "remote.upsert"}))
}

func TestRetrierCustomClassifier(t *testing.T) {
	sentinel := errors.New("sqlstate 08006")
	r := NewRetrier(RetryConfig{
		Retryable: func(err error) bool { return errors.Is(err, sentinel) },
		Sleep:     func(ctx context.Context, d time.Duration) error { return nil },
	})
	assert.True(t, r.IsRetryable(sentinel))
}

func TestRetrierStopsWhenContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(RetryConfig{
		MaxRetries:      3,
		InitialDelay:    time.Hour,
		RetryableErrors: []string{"timeout"},
	})
	calls := 0
	go cancel()

	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryReturnsValue(t *testing.T) {
	r := newTestRetrier(0, nil)
	calls := 0
	got, err := Retry(context.Background(), r, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("i/o timeout")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
