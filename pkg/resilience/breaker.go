package resilience

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned without running the call while the circuit is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyCalls is returned when MaxConcurrentCalls calls are in flight.
	ErrTooManyCalls = errors.New("too many concurrent calls")
)

// ExecuteFunc is a call guarded by a CircuitBreaker.
type ExecuteFunc func(ctx context.Context) error

// CircuitBreaker stops calling a backend that keeps failing.
type CircuitBreaker struct {
	config  Config
	circuit *circuit
}

// New creates a circuit breaker. A disabled breaker runs every call.
func New(config Config) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	return &CircuitBreaker{
		config:  config,
		circuit: newCircuit(config),
	}, nil
}

// Execute runs fn unless the circuit is open and records its outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn ExecuteFunc) error {
	if !cb.config.Enabled {
		return fn(ctx)
	}

	generation, err := cb.circuit.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.circuit.settle(generation, false)
			panic(r)
		}
	}()

	err = fn(ctx)
	cb.circuit.settle(generation, !cb.failed(err))
	return err
}

func (cb *CircuitBreaker) failed(err error) bool {
	if err == nil {
		return false
	}
	if cb.config.IsFailure == nil {
		return true
	}
	return cb.config.IsFailure(err)
}

// Enabled reports whether calls are guarded.
func (cb *CircuitBreaker) Enabled() bool { return cb.config.Enabled }

func (cb *CircuitBreaker) State() State { return cb.circuit.position() }

func (cb *CircuitBreaker) Counts() Counts { return cb.circuit.snapshot() }

func (cb *CircuitBreaker) Stats() Stats { return cb.circuit.stats() }

// Reset closes the circuit and clears the counters.
func (cb *CircuitBreaker) Reset() { cb.circuit.reset() }

func (cb *CircuitBreaker) Name() string { return cb.config.Name }

func (cb *CircuitBreaker) String() string {
	stats := cb.Stats()
	return fmt.Sprintf("CircuitBreaker(%s state=%s failures=%d/%d)",
		cb.config.Name, stats.State, stats.Counts.ConsecutiveFailures, cb.config.MaxFailures)
}
