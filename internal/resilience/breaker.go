// Package resilience protects the storage layer with a three-state circuit
// breaker (closed → open → half-open). When the backend fails repeatedly the
// breaker trips and rejects calls immediately instead of piling up timeouts;
// after a cooldown a limited number of probe calls decide whether it closes
// again.
//
// Domain sentinels like a not-found lookup are outcomes, not outages, so the
// breaker only counts errors its ignore list does not match.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [CircuitBreaker.Do] when the breaker is open and
// the cooldown has not yet elapsed.
var ErrOpen = errors.New("resilience: circuit breaker open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state, all calls are forwarded.
	StateClosed State = iota

	// StateOpen means the breaker has tripped; calls fail fast with
	// [ErrOpen] until the cooldown elapses.
	StateOpen

	// StateHalfOpen is the probe state after the cooldown: a handful of
	// calls go through and decide whether to close or re-open.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// Config holds tuning knobs for a [CircuitBreaker].
type Config struct {
	// Name labels the breaker in log messages, e.g. "postgres".
	Name string

	// Threshold is the number of consecutive counted failures that opens
	// the breaker. Default: 5.
	Threshold int

	// Cooldown is how long the breaker stays open before probing the
	// backend again. Default: 30s.
	Cooldown time.Duration

	// ProbeBudget is how many probe calls the half-open state allows.
	// Default: 3.
	ProbeBudget int

	// Ignore lists error sentinels that never count as failures. Context
	// cancellation is always ignored; a caller hanging up says nothing
	// about backend health.
	Ignore []error

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// CircuitBreaker guards a storage backend. Use one breaker per backend and
// route every call through [CircuitBreaker.Do].
type CircuitBreaker struct {
	name        string
	threshold   int
	cooldown    time.Duration
	probeBudget int
	ignore      []error
	logger      *slog.Logger
	now         func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probeCalls  int
	probeFailed bool
}

// NewCircuitBreaker creates a [CircuitBreaker], replacing zero-value config
// fields with defaults.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CircuitBreaker{
		name:        cfg.Name,
		threshold:   cfg.Threshold,
		cooldown:    cfg.Cooldown,
		probeBudget: cfg.ProbeBudget,
		ignore:      cfg.Ignore,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Do runs fn if the breaker allows it. In the open state it returns
// [ErrOpen] without calling fn. The error from fn is returned unchanged
// whether or not it was counted against the breaker.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	callErr := fn(ctx)
	cb.settle(ctx, probe, callErr)
	return callErr
}

// admit decides whether a call may proceed and whether it runs as a
// half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false, ErrOpen
		}
		cb.state = StateHalfOpen
		cb.probeCalls = 0
		cb.probeFailed = false
		cb.logger.Info("circuit breaker half-open", "name", cb.name)
		fallthrough
	case StateHalfOpen:
		if cb.probeCalls >= cb.probeBudget {
			return false, ErrOpen
		}
		cb.probeCalls++
		return true, nil
	}
	return false, nil
}

// settle applies the call outcome. Ignored errors count as successes for
// breaker accounting while still reaching the caller.
func (cb *CircuitBreaker) settle(ctx context.Context, probe bool, callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if callErr == nil || cb.ignored(ctx, callErr) {
		if probe {
			if !cb.probeFailed && cb.probeCalls >= cb.probeBudget {
				cb.state = StateClosed
				cb.failures = 0
				cb.logger.Info("circuit breaker closed", "name", cb.name)
			}
			return
		}
		cb.failures = 0
		return
	}

	cb.openedAt = cb.now()
	if probe {
		cb.probeFailed = true
		cb.state = StateOpen
		cb.failures = cb.threshold
		cb.logger.Warn("circuit breaker re-opened", "name", cb.name, "error", callErr)
		return
	}
	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.threshold {
		cb.state = StateOpen
		cb.logger.Warn("circuit breaker opened",
			"name", cb.name,
			"consecutive_failures", cb.failures,
		)
	}
}

func (cb *CircuitBreaker) ignored(ctx context.Context, err error) bool {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return true
	}
	for _, sentinel := range cb.ignore {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// State returns the current [State]. An open breaker whose cooldown has
// elapsed reports [StateHalfOpen]; the actual transition happens on the next
// [CircuitBreaker.Do].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Healthy returns nil unless the breaker is open, for readiness reporting.
func (cb *CircuitBreaker) Healthy() error {
	if s := cb.State(); s == StateOpen {
		return fmt.Errorf("resilience: %s breaker is %s", cb.name, s)
	}
	return nil
}

// Reset forces the breaker back to [StateClosed], clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probeCalls = 0
	cb.probeFailed = false
	cb.logger.Info("circuit breaker reset", "name", cb.name)
}
