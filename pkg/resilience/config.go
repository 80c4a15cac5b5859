package resilience

import (
	"fmt"
	"time"
)

// Config configures a CircuitBreaker.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`

	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32 `yaml:"max_failures"`

	// Timeout is how long the circuit stays open before a probe call is let through.
	Timeout time.Duration `yaml:"timeout"`

	// MaxConcurrentCalls limits calls in flight. 0 means no limit.
	MaxConcurrentCalls uint32 `yaml:"max_concurrent_calls"`

	// SuccessThreshold is the number of consecutive half-open successes
	// that closes the circuit.
	SuccessThreshold uint32 `yaml:"success_threshold"`

	OnStateChange func(name string, from State, to State) `yaml:"-"`

	// ShouldTrip replaces the MaxFailures rule when set.
	ShouldTrip func(counts Counts) bool `yaml:"-"`

	// IsFailure decides whether an error counts against the circuit.
	// When nil every error does.
	IsFailure func(err error) bool `yaml:"-"`
}

// Counts are the request counters of the current state.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Validate checks an enabled configuration and fills Name and SuccessThreshold.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxFailures == 0 {
		return fmt.Errorf("max_failures must be greater than 0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}
	if c.Name == "" {
		c.Name = "circuit-breaker"
	}
	return nil
}

// DefaultConfig opens after 5 consecutive failures and probes again after 30s.
func DefaultConfig(name string) Config {
	return Config{
		Enabled:          true,
		Name:             name,
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
	}
}
