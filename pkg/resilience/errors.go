package resilience

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is matched by every fast-fail rejection from a breaker.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitOpenError is returned without invoking the guarded operation while a breaker is open.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q open, retry after %s", e.Name, e.RetryAfter.Round(time.Millisecond))
}

// Is lets errors.Is(err, ErrCircuitOpen) match any breaker rejection.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// RetryExhaustedError reports a transient failure that persisted through every attempt.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap exposes the last attempt's error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsCircuitOpen reports whether err is a breaker fast-fail.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsRetryExhausted reports whether err is a transient failure that used up its retries.
func IsRetryExhausted(err error) bool {
	var exhausted *RetryExhaustedError
	return errors.As(err, &exhausted)
}
