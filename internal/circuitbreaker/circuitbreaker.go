// Package circuitbreaker guards upstream provider calls (exchange rates,
// shipping, payments) so a failing dependency is skipped for a cool-off period.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kjstillabower/storefront-service/internal/clock"
)

// ErrOpen is returned by Call while the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after FailureThreshold consecutive failures and lets
// probe calls through once Timeout has elapsed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	component        string
	clock            clock.Clock
	onStateChange    func(component string, from, to State)
}

// Config holds circuit breaker parameters. Zero values get defaults.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	Clock            clock.Clock
	// OnStateChange is called after each state change, outside the breaker's
	// lock, so it may call State.
	OnStateChange func(component string, from, to State)
}

func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		component:        cfg.Component,
		clock:            cfg.Clock,
		onStateChange:    cfg.OnStateChange,
	}
}

// Call runs fn when the circuit allows it and records the outcome.
// A context error from fn does not count as an upstream failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.clock.Now().Sub(cb.lastFailureTime) < cb.timeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.successCount = 0
		changed := cb.transition(StateHalfOpen)
		cb.mu.Unlock()
		cb.notify(changed)
	} else {
		cb.mu.Unlock()
	}

	err := fn()

	cb.mu.Lock()
	changed, err := cb.record(ctx, err)
	cb.mu.Unlock()
	cb.notify(changed)
	return err
}

// record updates counters for the outcome of fn. Caller holds mu.
func (cb *CircuitBreaker) record(ctx context.Context, err error) (*stateChange, error) {
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		cb.failureCount++
		cb.lastFailureTime = cb.clock.Now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.failureCount = 0
			return cb.transition(StateOpen), err
		}
		return nil, err
	}

	cb.successCount++
	cb.failureCount = 0
	if cb.state == StateHalfOpen && cb.successCount >= cb.successThreshold {
		cb.successCount = 0
		return cb.transition(StateClosed), nil
	}
	return nil, nil
}

type stateChange struct {
	from, to State
}

// transition sets the state and reports the change, or nil if unchanged. Caller holds mu.
func (cb *CircuitBreaker) transition(to State) *stateChange {
	from := cb.state
	if from == to {
		return nil
	}
	cb.state = to
	return &stateChange{from: from, to: to}
}

// notify runs OnStateChange. Caller must not hold mu.
func (cb *CircuitBreaker) notify(c *stateChange) {
	if c != nil && cb.onStateChange != nil {
		cb.onStateChange(cb.component, c.from, c.to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Component returns the name given in Config.
func (cb *CircuitBreaker) Component() string {
	return cb.component
}
