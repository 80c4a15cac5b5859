package bulk

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	"github.com/ruslano69/bulkmerge/pkg/audit"
	"github.com/ruslano69/bulkmerge/pkg/core/schema"
	"github.com/ruslano69/bulkmerge/pkg/resilience"
	"github.com/ruslano69/bulkmerge/pkg/resultlog"
	"github.com/ruslano69/bulkmerge/pkg/retry"
)

// Config is the YAML configuration of an Engine.
//
//	backend: postgres
//	defaults:
//	  batch_size: 5000
//	  timeout: 30s
//	cleanup:
//	  enabled: true
//	  max_attempts: 3
//	  initial_delay: 200ms
//	  max_delay: 2s
//	  backoff: exponential
//	  ledger:
//	    enabled: true
//	    path: ./stranded_temp_tables.json
//	breaker:
//	  enabled: true
//	  max_failures: 5
//	  timeout: 30s
//	logging:
//	  level: debug
//	audit:
//	  enabled: true
//	  file: ./logs/bulk_audit.log
//	  metrics: true
type Config struct {
	Backend  string            `yaml:"backend"`
	Defaults DefaultsConfig    `yaml:"defaults"`
	Cache    CacheConfig       `yaml:"cache"`
	Cleanup  retry.Config      `yaml:"cleanup"`
	Breaker  resilience.Config `yaml:"breaker"`
	Logging  LoggingConfig     `yaml:"logging"`
	Audit    AuditConfig       `yaml:"audit"`
}

// DefaultsConfig applies to calls that do not set their own values.
type DefaultsConfig struct {
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig sizes the schema cache.
type CacheConfig struct {
	Limit int `yaml:"limit"`
}

// LoggingConfig configures the engine logger.
type LoggingConfig struct {
	// Level is a zerolog level name. Default "info".
	Level string `yaml:"level"`

	// Console switches from JSON lines to the human readable writer.
	Console bool `yaml:"console"`
}

// AuditConfig selects where call outcomes are recorded.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Async      bool   `yaml:"async"`
	BufferSize int    `yaml:"buffer_size"`
	Level      string `yaml:"level"`

	// File writes JSON lines to this path when set.
	File string `yaml:"file"`

	// Metrics registers Prometheus collectors with the default registerer.
	Metrics bool `yaml:"metrics"`

	// Redis publishes every result when Address is set.
	Redis resultlog.Config `yaml:"redis"`
}

// DefaultConfig returns the values LoadConfig starts from.
func DefaultConfig() Config {
	return Config{
		Cache:   CacheConfig{Limit: schema.DefaultCacheLimit},
		Cleanup: retry.DefaultConfig(),
		Logging: LoggingConfig{Level: "info"},
		Audit:   AuditConfig{BufferSize: 1000, Level: "standard"},
	}
}

// LoadConfig reads and validates a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend is required")
	}
	if c.Defaults.BatchSize < 0 {
		return fmt.Errorf("defaults.batch_size must be >= 0, got %d", c.Defaults.BatchSize)
	}
	if c.Defaults.Timeout < 0 {
		return fmt.Errorf("defaults.timeout must be >= 0")
	}
	if c.Cache.Limit < 0 {
		return fmt.Errorf("cache.limit must be >= 0, got %d", c.Cache.Limit)
	}
	if err := c.Cleanup.Validate(); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if err := c.Breaker.Validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := audit.ParseLevel(c.Audit.Level); err != nil {
		return fmt.Errorf("audit.level: %w", err)
	}
	return nil
}

// NewLogger builds the zerolog logger described by the logging section.
func (c LoggingConfig) NewLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if c.Console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Str("component", "bulkmerge").Logger()
}

// NewAuditLogger builds the audit logger of the audit section, or nil when
// auditing is disabled. db, when non-nil, also receives entries in a
// bulk_audit table.
func (c AuditConfig) NewAuditLogger(db *sql.DB, placeholder audit.Placeholder) (audit.Logger, error) {
	if !c.Enabled {
		return nil, nil
	}

	level, err := audit.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	var appenders []audit.Appender
	closeAll := func() {
		for _, a := range appenders {
			a.Close()
		}
	}

	if c.File != "" {
		fa, err := audit.NewFileAppender(audit.FileAppenderConfig{FilePath: c.File, Level: level, FormatJSON: true})
		if err != nil {
			return nil, err
		}
		appenders = append(appenders, fa)
	}
	if c.Metrics {
		ma, err := audit.NewMetricsAppender(prometheus.DefaultRegisterer)
		if err != nil {
			closeAll()
			return nil, err
		}
		appenders = append(appenders, ma)
	}
	if c.Redis.Address != "" {
		ra, err := resultlog.NewRedisAppender(c.Redis)
		if err != nil {
			closeAll()
			return nil, err
		}
		appenders = append(appenders, ra)
	}
	if db != nil {
		da, err := audit.NewDatabaseAppender(audit.DatabaseAppenderConfig{
			DB:              db,
			Level:           level,
			Placeholder:     placeholder,
			AutoCreateTable: true,
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		appenders = append(appenders, da)
	}

	config := audit.SyncConfig()
	if c.Async {
		config = audit.DefaultConfig()
		config.BufferSize = c.BufferSize
	}
	return audit.NewLogger(config, appenders...), nil
}

// NewEngineFromConfig resolves the backend by name from the adapters
// registry and wires logging, cleanup retries and auditing. The backend
// package must be imported, e.g.
//
//	import _ "github.com/ruslano69/bulkmerge/pkg/adapters/mysql"
func NewEngineFromConfig(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	backend, err := adapters.New(config.Backend)
	if err != nil {
		return nil, err
	}

	opts := []EngineOption{
		WithLogger(config.Logging.NewLogger()),
		WithCache(schema.NewCache(config.Cache.Limit)),
		WithCleanupRetry(config.Cleanup),
		WithBreaker(config.Breaker),
		WithDefaults(config.Defaults.BatchSize, config.Defaults.Timeout),
	}

	auditLogger, err := config.Audit.NewAuditLogger(nil, audit.PlaceholderQuestion)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}
	if auditLogger != nil {
		opts = append(opts, WithAudit(auditLogger))
	}

	engine, err := NewEngine(backend, opts...)
	if err != nil {
		if auditLogger != nil {
			auditLogger.Close()
		}
		return nil, err
	}
	return engine, nil
}
