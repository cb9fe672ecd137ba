package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is a circuit breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	Threshold     int
	Timeout       time.Duration
	Logger        *zap.Logger
	Clock         func() time.Time
	OnStateChange func(name string, from, to State)
}

// BreakerSnapshot is a point-in-time view of a breaker.
type BreakerSnapshot struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// CircuitBreaker fails fast after Threshold consecutive failures and lets a
// single trial call through once Timeout has elapsed since the last failure.
type CircuitBreaker struct {
	name          string
	threshold     int
	timeout       time.Duration
	logger        *zap.Logger
	now           func() time.Time
	onStateChange func(name string, from, to State)

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	trialInFlight bool
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &CircuitBreaker{
		name:          name,
		threshold:     cfg.Threshold,
		timeout:       cfg.Timeout,
		logger:        cfg.Logger.With(zap.String("breaker", name)),
		now:           cfg.Clock,
		onStateChange: cfg.OnStateChange,
	}
}

// Name returns the guarded operation class.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// State returns the current state, promoting open to half-open once the timeout has elapsed.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.lastFailure) >= b.timeout {
		return StateHalfOpen
	}
	return b.state
}

// Snapshot returns the breaker's counters.
func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	state := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Name:        b.name,
		State:       state.String(),
		Failures:    b.failures,
		LastFailure: b.lastFailure,
	}
}

// Execute runs op unless the breaker is open.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

// Reset closes the breaker and clears its counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.lastFailure = time.Time{}
	b.trialInFlight = false
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *CircuitBreaker) acquire() error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		elapsed := b.now().Sub(b.lastFailure)
		if elapsed < b.timeout {
			b.mu.Unlock()
			return &CircuitOpenError{Name: b.name, RetryAfter: b.timeout - elapsed}
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		b.mu.Unlock()
		b.notify(StateOpen, StateHalfOpen)
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			b.mu.Unlock()
			return &CircuitOpenError{Name: b.name}
		}
		b.trialInFlight = true
	}
	b.mu.Unlock()
	return nil
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	from := b.state
	if err == nil {
		b.state = StateClosed
		b.failures = 0
		b.trialInFlight = false
		b.mu.Unlock()
		b.notify(from, StateClosed)
		return
	}
	if errors.Is(err, context.Canceled) {
		b.trialInFlight = false
		b.mu.Unlock()
		return
	}

	b.failures++
	b.lastFailure = b.now()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.trialInFlight = false
	case StateClosed:
		if b.failures >= b.threshold {
			b.state = StateOpen
		}
	}
	to := b.state
	failures := b.failures
	b.mu.Unlock()

	b.logger.Debug("guarded call failed", zap.Int("failures", failures), zap.Error(err))
	b.notify(from, to)
}

func (b *CircuitBreaker) notify(from, to State) {
	if from == to {
		return
	}
	b.logger.Info("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
