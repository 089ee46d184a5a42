// Package resilience provides fault-tolerance primitives: a circuit breaker
// guarding event publication, the bounded retry used for identity conflicts,
// and a context-based timeout wrapper for batch items.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the phase of a circuit breaker. Its numeric value is exported as
// the circuit_breaker_state gauge.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig controls failure thresholds and recovery timing.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange is called with the lock held; it must not call back
	// into the breaker.
	OnStateChange func(name string, to State)
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Counts is a snapshot of a breaker's bookkeeping.
type Counts struct {
	State               State
	ConsecutiveFailures int
	Rejected            uint64
	OpenedAt            time.Time
}

// CircuitBreaker opens after FailureThreshold consecutive failures, rejects
// calls for ResetTimeout, then lets HalfOpenMaxRequests probes through. One
// successful probe closes it again; one failed probe re-opens it.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	rejected uint64
	openedAt time.Time
}

// NewCircuitBreaker creates a CircuitBreaker, filling zero config fields
// with 5 failures, 30s and a single probe.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn if the breaker admits it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// GetState returns the current State.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Counts{
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		Rejected:            cb.rejected,
		OpenedAt:            cb.openedAt,
	}
}

// Reset closes the breaker and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.probes = 0
	cb.logger.Info("circuit manually reset")
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		remaining := cb.cfg.ResetTimeout - cb.cfg.Clock().Sub(cb.openedAt)
		if remaining > 0 {
			cb.rejected++
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, cb.name, remaining.Round(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		cb.probes = 0
		cb.logger.Info("circuit half-open, probing")
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMaxRequests {
			cb.rejected++
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == StateHalfOpen {
			cb.logger.Info("circuit closed after successful probe")
		}
		cb.transition(StateClosed)
		cb.failures = 0
		cb.probes = 0
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.trip("probe failed")
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.trip("failure threshold reached")
	}
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.openedAt = cb.cfg.Clock()
	cb.transition(StateOpen)
	cb.logger.Warn("circuit opened",
		"reason", reason,
		"consecutive_failures", cb.failures,
		"reset_timeout", cb.cfg.ResetTimeout,
	)
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, to)
	}
}
