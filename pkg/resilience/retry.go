package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryConfig configures exponential backoff with jitter.
type RetryConfig struct {
	// MaxRetries is the total number of attempts, including the first one.
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	// Jitter is the upper bound of the random fraction added to each delay.
	Jitter float64
	// RetryableErrors are case-insensitive fragments matched against the
	// error message and, when present, an error's Code().
	RetryableErrors []string
	// Retryable is consulted in addition to RetryableErrors.
	Retryable func(error) bool

	Logger  *zap.Logger
	OnRetry func(attempt int, delay time.Duration, err error)
	Rand    func() float64
	Sleep   func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns the stock remote-store policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          30 * time.Second,
		Jitter:            0.3,
		RetryableErrors:   []string{"network", "timeout", "unavailable", "resource-exhausted"},
	}
}

// Retrier runs operations under a RetryConfig.
type Retrier struct {
	cfg      RetryConfig
	patterns []string
	logger   *zap.Logger
	rand     func() float64
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetrier builds a Retrier, filling unset fields from DefaultRetryConfig.
func NewRetrier(cfg RetryConfig) *Retrier {
	def := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	patterns := make([]string, 0, len(cfg.RetryableErrors))
	for _, p := range cfg.RetryableErrors {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Retrier{cfg: cfg, patterns: patterns, logger: cfg.Logger, rand: cfg.Rand, sleep: cfg.Sleep}
}

// Config returns the effective configuration.
func (r *Retrier) Config() RetryConfig {
	return r.cfg
}

// Delay returns the wait before attempt n+1 after attempt n failed:
// min(maxDelay, initialDelay * multiplier^(n-1) * (1 + jitter)).
func (r *Retrier) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	jitter := r.rand() * r.cfg.Jitter
	base := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.BackoffMultiplier, float64(attempt-1))
	delay := base * (1 + jitter)
	if delay > float64(r.cfg.MaxDelay) || math.IsInf(delay, 0) || math.IsNaN(delay) {
		return r.cfg.MaxDelay
	}
	return time.Duration(delay)
}

type coder interface {
	Code() string
}

// IsRetryable reports whether err belongs to the transient allow-list.
func (r *Retrier) IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || IsCircuitOpen(err) {
		return false
	}
	if r.cfg.Retryable != nil && r.cfg.Retryable(err) {
		return true
	}
	candidates := []string{strings.ToLower(err.Error())}
	var c coder
	if errors.As(err, &c) {
		candidates = append(candidates, strings.ToLower(c.Code()))
	}
	for _, pattern := range r.patterns {
		for _, candidate := range candidates {
			if strings.Contains(candidate, pattern) {
				return true
			}
		}
	}
	return false
}

// Do invokes op until it succeeds, fails permanently, or attempts run out.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err
		if !r.IsRetryable(err) {
			return err
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		delay := r.Delay(attempt)
		r.logger.Warn("transient failure, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err))
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, delay, err)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry aborted after attempt %d: %w", attempt, err)
		}
	}
	return &RetryExhaustedError{Attempts: r.cfg.MaxRetries, Err: lastErr}
}

// Retry is Do for operations producing a value.
func Retry[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
