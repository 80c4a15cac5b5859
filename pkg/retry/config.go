package retry

import (
	"fmt"
	"time"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy string

const (
	// BackoffConstant keeps InitialDelay between every attempt.
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear waits InitialDelay * attempt.
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential waits InitialDelay * Multiplier^(attempt-1).
	BackoffExponential BackoffStrategy = "exponential"
)

// Config controls retries of cleanup statements.
type Config struct {
	// Enabled turns retries on. When off, an operation runs exactly once.
	Enabled bool `yaml:"enabled"`

	// MaxAttempts counts the first attempt too. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`

	InitialDelay time.Duration   `yaml:"initial_delay"`
	MaxDelay     time.Duration   `yaml:"max_delay"`
	Backoff      BackoffStrategy `yaml:"backoff"`
	Multiplier   float64         `yaml:"multiplier"`

	// Jitter randomizes each delay by up to ±Jitter of its value (0.0 - 1.0).
	Jitter float64 `yaml:"jitter"`

	// RetryableErrors lists substrings of retryable error messages.
	// Empty means every error is retried.
	RetryableErrors []string `yaml:"retryable_errors"`

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`

	// Ledger records operations that never succeeded.
	Ledger LedgerConfig `yaml:"ledger"`
}

// LedgerConfig configures the file-backed ledger of stranded temp tables.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// MaxSize caps the number of entries; the oldest are dropped first.
	MaxSize int `yaml:"max_size"`

	// Retention is how long CleanupOld keeps entries. 0 keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// Validate checks the configuration and fills the multiplier default.
func (c *Config) Validate() error {
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return fmt.Errorf("ledger path is required when the ledger is enabled")
	}

	if !c.Enabled {
		return nil
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}

	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}

	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}

	switch c.Backoff {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("invalid backoff strategy: %q", c.Backoff)
	}

	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}

	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}

	return nil
}

// DefaultConfig returns a disabled configuration with sensible values.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Backoff:      BackoffExponential,
		Multiplier:   2.0,
		Jitter:       0.1,
		Ledger: LedgerConfig{
			Path:      "./stranded_temp_tables.json",
			MaxSize:   10000,
			Retention: 7 * 24 * time.Hour,
		},
	}
}

// EnableRetry returns DefaultConfig with retries on.
func EnableRetry(maxAttempts int, initialDelay time.Duration) Config {
	config := DefaultConfig()
	config.Enabled = true
	config.MaxAttempts = maxAttempts
	config.InitialDelay = initialDelay
	if config.MaxDelay < initialDelay {
		config.MaxDelay = initialDelay
	}
	return config
}

// EnableRetryWithLedger returns EnableRetry with the ledger written to path.
func EnableRetryWithLedger(maxAttempts int, initialDelay time.Duration, path string) Config {
	config := EnableRetry(maxAttempts, initialDelay)
	config.Ledger.Enabled = true
	config.Ledger.Path = path
	return config
}
