package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryableFunc is an operation that may be attempted more than once.
type RetryableFunc func(ctx context.Context) error

// ErrMaxAttempts is wrapped by Do when every attempt failed.
var ErrMaxAttempts = errors.New("max retry attempts exceeded")

// Retryer runs operations with backoff and records final failures in the ledger.
type Retryer struct {
	config Config
	ledger *Ledger
}

// NewRetryer validates config and opens the ledger when enabled.
func NewRetryer(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	var ledger *Ledger
	if config.Ledger.Enabled {
		var err error
		ledger, err = NewLedger(config.Ledger)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
	}

	return &Retryer{
		config: config,
		ledger: ledger,
	}, nil
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out
// of attempts or ctx is done.
func (r *Retryer) Do(ctx context.Context, fn RetryableFunc) error {
	_, err := r.run(ctx, fn)
	return err
}

// DoWithEntry behaves like Do and records entry in the ledger when fn never
// succeeded. Attempts and LastError are filled in.
func (r *Retryer) DoWithEntry(ctx context.Context, fn RetryableFunc, entry LedgerEntry) error {
	attempts, err := r.run(ctx, fn)
	if err != nil && r.ledger != nil {
		entry.Attempts = attempts
		entry.LastError = err.Error()
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now()
		}
		r.ledger.Add(entry)
	}
	return err
}

func (r *Retryer) run(ctx context.Context, fn RetryableFunc) (int, error) {
	if !r.config.Enabled {
		return 1, fn(ctx)
	}

	attempts := 0
	for {
		attempts++

		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}

		if !r.isRetryableError(err) {
			return attempts, fmt.Errorf("non-retryable error: %w", err)
		}

		if r.config.MaxAttempts > 0 && attempts >= r.config.MaxAttempts {
			return attempts, fmt.Errorf("%w (%d): %w", ErrMaxAttempts, r.config.MaxAttempts, err)
		}

		if ctx.Err() != nil {
			return attempts, fmt.Errorf("context cancelled: %w", errors.Join(ctx.Err(), err))
		}

		delay := r.calculateDelay(attempts)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("context cancelled during retry: %w", errors.Join(ctx.Err(), err))
		}
	}
}

// calculateDelay returns the wait before attempt+1.
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.Backoff {
	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		multiplier := math.Pow(r.config.Multiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)
	default:
		delay = r.config.InitialDelay
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter > 0 {
		jitter := time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		delay += jitter
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

func (r *Retryer) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if len(r.config.RetryableErrors) == 0 {
		return true
	}

	msg := err.Error()
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Ledger returns the ledger, or nil when disabled.
func (r *Retryer) Ledger() *Ledger {
	return r.ledger
}

// Close flushes the ledger.
func (r *Retryer) Close() error {
	if r.ledger != nil {
		return r.ledger.Save()
	}
	return nil
}
