package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/bulkmerge/pkg/audit"
)

// Config points the appender at a Redis server.
type Config struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix namespaces keys and channels. Default "bulkmerge".
	KeyPrefix string `yaml:"key_prefix"`

	// TTL of the stored state. Zero keeps it forever.
	TTL time.Duration `yaml:"ttl"`
}

// Validate checks that an address is set.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("redis address is required")
	}
	return nil
}

// Result is the payload published for each bulk call.
//
// Redis keys:
//
//	SET  <prefix>:table:<table>:<operation>  <JSON>  EX <ttl>   last result per table and verb
//	PUB  <prefix>:results                                       every result
type Result struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Backend    string    `json:"backend"`
	Table      string    `json:"table"`
	Status     string    `json:"status"`
	Records    int64     `json:"records"`
	DurationMs int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
	Error      *string   `json:"error,omitempty"`
}

// RedisAppender publishes audit entries to Redis so orchestrators can poll
// the last result of a table or subscribe to all of them.
type RedisAppender struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisAppender connects a client for config.
func NewRedisAppender(config Config) (*RedisAppender, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisAppenderWithClient(client, config), nil
}

// NewRedisAppenderWithClient uses an existing client. Close closes it.
func NewRedisAppenderWithClient(client *redis.Client, config Config) *RedisAppender {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "bulkmerge"
	}
	return &RedisAppender{client: client, prefix: prefix, ttl: config.TTL}
}

// StateKey is the key holding the last result of operation on table.
func (a *RedisAppender) StateKey(table string, operation audit.Operation) string {
	return fmt.Sprintf("%s:table:%s:%s", a.prefix, table, operation)
}

// Channel is the pub/sub channel every result is published on.
func (a *RedisAppender) Channel() string {
	return a.prefix + ":results"
}

func (a *RedisAppender) Append(ctx context.Context, entry *audit.Entry) error {
	result := Result{
		ID:         entry.ID,
		Operation:  string(entry.Operation),
		Backend:    entry.Backend,
		Table:      entry.Table,
		Status:     string(entry.Status),
		Records:    entry.Records,
		DurationMs: entry.Duration.Milliseconds(),
		FinishedAt: entry.Timestamp.UTC(),
	}
	if entry.ErrorMessage != "" {
		msg := entry.ErrorMessage
		result.Error = &msg
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	pipe := a.client.TxPipeline()
	pipe.Set(ctx, a.StateKey(entry.Table, entry.Operation), payload, a.ttl)
	pipe.Publish(ctx, a.Channel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish result to redis: %w", err)
	}
	return nil
}

func (a *RedisAppender) Close() error {
	return a.client.Close()
}

var _ audit.Appender = (*RedisAppender)(nil)
