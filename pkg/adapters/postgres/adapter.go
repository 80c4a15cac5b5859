package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

const (
	// AdapterType is the backend identifier used by the factory.
	AdapterType = "postgres"

	// DriverName is the database/sql driver this backend expects.
	DriverName = "pgx"
)

// Register PostgreSQL backend in factory
func init() {
	adapters.Register(AdapterType, NewBackend)
}

// NewBackend returns the PostgreSQL dialect and COPY writer.
func NewBackend() adapters.Backend {
	return adapters.Backend{
		Name:    AdapterType,
		Dialect: NewDialect(),
		Writer:  NewWriter(),
	}
}

// PoolConfig sizes the pgx pool behind Open.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// Open creates a pgxpool and exposes it as *sql.DB, so bulk calls and the
// COPY writer share pooled pgx connections.
func Open(ctx context.Context, dsn string, cfg PoolConfig) (*sql.DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	} else {
		config.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		config.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return stdlib.OpenDBFromPool(pool), nil
}
