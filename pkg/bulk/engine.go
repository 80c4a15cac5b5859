package bulk

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	"github.com/ruslano69/bulkmerge/pkg/audit"
	"github.com/ruslano69/bulkmerge/pkg/core/schema"
	"github.com/ruslano69/bulkmerge/pkg/resilience"
	"github.com/ruslano69/bulkmerge/pkg/retry"
)

// DefaultCleanupTimeout bounds the temp table drop when the call context is
// already done and the call set no timeout.
const DefaultCleanupTimeout = 30 * time.Second

// Engine runs bulk operations against one backend family. It holds no
// per-call state and is safe for concurrent use; calls share only the
// schema cache.
type Engine struct {
	backend    adapters.Backend
	cache      *schema.Cache
	converters *schema.Converters
	logger     zerolog.Logger
	audit      audit.Logger
	retryer    *retry.Retryer
	breaker    *resilience.CircuitBreaker

	cleanupConfig retry.Config
	breakerConfig resilience.Config
	batchSize     int
	timeout       time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for state transitions and cleanup retries.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithCache shares a schema cache between engines.
func WithCache(cache *schema.Cache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// WithConverters sets the value converters applied before staging.
func WithConverters(c *schema.Converters) EngineOption {
	return func(e *Engine) { e.converters = c }
}

// WithAudit records one entry per call.
func WithAudit(logger audit.Logger) EngineOption {
	return func(e *Engine) { e.audit = logger }
}

// WithCleanupRetry retries the temp table drop and records tables that stay
// stranded in the ledger when it is enabled.
func WithCleanupRetry(config retry.Config) EngineOption {
	return func(e *Engine) { e.cleanupConfig = config }
}

// WithBreaker stops running calls after repeated backend failures until the
// breaker timeout has passed. Caller errors such as ErrNullKey do not count.
func WithBreaker(config resilience.Config) EngineOption {
	return func(e *Engine) { e.breakerConfig = config }
}

// WithDefaults sets the batch size and timeout used when a call sets none.
func WithDefaults(batchSize int, timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.batchSize = batchSize
		e.timeout = timeout
	}
}

// NewEngine creates an engine for backend.
//
//	engine, err := bulk.NewEngine(postgres.NewBackend(), bulk.WithLogger(log.Logger))
func NewEngine(backend adapters.Backend, opts ...EngineOption) (*Engine, error) {
	if err := backend.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend: %w", err)
	}

	e := &Engine{
		backend:       backend,
		logger:        zerolog.Nop(),
		cleanupConfig: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.cache == nil {
		e.cache = schema.NewCache(schema.DefaultCacheLimit)
	}

	onRetry := e.cleanupConfig.OnRetry
	e.cleanupConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying temp table cleanup")
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	retryer, err := retry.NewRetryer(e.cleanupConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create cleanup retryer: %w", err)
	}
	e.retryer = retryer

	if e.breakerConfig.Name == "" {
		e.breakerConfig.Name = backend.Name
	}
	if e.breakerConfig.IsFailure == nil {
		e.breakerConfig.IsFailure = backendFailure
	}
	onStateChange := e.breakerConfig.OnStateChange
	e.breakerConfig.OnStateChange = func(name string, from, to resilience.State) {
		e.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		if onStateChange != nil {
			onStateChange(name, from, to)
		}
	}

	breaker, err := resilience.New(e.breakerConfig)
	if err != nil {
		return nil, err
	}
	e.breaker = breaker

	return e, nil
}

// Backend returns the dialect/writer pair the engine runs on.
func (e *Engine) Backend() adapters.Backend { return e.backend }

// Cache returns the schema cache.
func (e *Engine) Cache() *schema.Cache { return e.cache }

// Breaker returns the backend circuit breaker. It is disabled unless
// WithBreaker enabled it.
func (e *Engine) Breaker() *resilience.CircuitBreaker { return e.breaker }

// Ledger returns the stranded temp table ledger, or nil when disabled.
func (e *Engine) Ledger() *retry.Ledger { return e.retryer.Ledger() }

// Close flushes the ledger and closes the audit logger.
func (e *Engine) Close() error {
	var errs []error
	if err := e.retryer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to save ledger: %w", err))
	}
	if e.audit != nil {
		if err := e.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit logger: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) callOptions(opts []Option) callOptions {
	o := callOptions{
		batchSize: e.batchSize,
		timeout:   e.timeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
