package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Placeholder selects the bind parameter syntax of the audit database.
type Placeholder int

const (
	// PlaceholderQuestion is "?" (SQLite, MySQL).
	PlaceholderQuestion Placeholder = iota
	// PlaceholderDollar is "$1" (PostgreSQL).
	PlaceholderDollar
	// PlaceholderAt is "@p1" (SQL Server).
	PlaceholderAt
)

func (p Placeholder) bind(n int) string {
	switch p {
	case PlaceholderDollar:
		return fmt.Sprintf("$%d", n)
	case PlaceholderAt:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// DatabaseAppenderConfig configures a DatabaseAppender.
type DatabaseAppenderConfig struct {
	DB *sql.DB

	// TableName defaults to bulk_audit.
	TableName string

	Level       Level
	Placeholder Placeholder

	// BatchSize > 0 buffers entries and writes them in one transaction.
	BatchSize int

	// AutoCreateTable creates the table when it does not exist.
	AutoCreateTable bool
}

// DatabaseAppender stores entries in a SQL table.
type DatabaseAppender struct {
	db          *sql.DB
	table       string
	level       Level
	placeholder Placeholder
	batchSize   int
	insert      string

	mu    sync.Mutex
	batch []*Entry
}

func NewDatabaseAppender(config DatabaseAppenderConfig) (*DatabaseAppender, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if config.TableName == "" {
		config.TableName = "bulk_audit"
	}
	if config.Level == 0 {
		config.Level = LevelStandard
	}

	da := &DatabaseAppender{
		db:          config.DB,
		table:       config.TableName,
		level:       config.Level,
		placeholder: config.Placeholder,
		batchSize:   config.BatchSize,
	}

	binds := make([]string, 10)
	for i := range binds {
		binds[i] = da.placeholder.bind(i + 1)
	}
	da.insert = fmt.Sprintf(`INSERT INTO %s (id, ts, operation, status, backend, table_name, records, duration_ms, error_message, metadata)
VALUES (%s)`, da.table, strings.Join(binds, ", "))

	if config.AutoCreateTable {
		if err := da.createTable(); err != nil {
			return nil, fmt.Errorf("failed to create audit table: %w", err)
		}
	}
	return da, nil
}

func (da *DatabaseAppender) createTable() error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(36) PRIMARY KEY,
    ts VARCHAR(30) NOT NULL,
    operation VARCHAR(16) NOT NULL,
    status VARCHAR(16) NOT NULL,
    backend VARCHAR(32),
    table_name VARCHAR(255),
    records BIGINT,
    duration_ms BIGINT,
    error_message TEXT,
    metadata TEXT
)`, da.table)
	_, err := da.db.Exec(query)
	return err
}

func (da *DatabaseAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(da.level)

	if da.batchSize <= 0 {
		return da.write(ctx, da.db, filtered)
	}

	da.mu.Lock()
	defer da.mu.Unlock()

	da.batch = append(da.batch, filtered)
	if len(da.batch) >= da.batchSize {
		return da.flushBatch(ctx)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (da *DatabaseAppender) write(ctx context.Context, db execer, e *Entry) error {
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.ExecContext(ctx, da.insert,
		e.ID,
		e.Timestamp.UTC().Format(timestampLayout),
		string(e.Operation),
		string(e.Status),
		e.Backend,
		e.Table,
		e.Records,
		e.Duration.Milliseconds(),
		e.ErrorMessage,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// flushBatch writes the buffered entries in one transaction. Callers hold mu.
func (da *DatabaseAppender) flushBatch(ctx context.Context) error {
	if len(da.batch) == 0 {
		return nil
	}

	tx, err := da.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, e := range da.batch {
		if err := da.write(ctx, tx, e); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	da.batch = da.batch[:0]
	return nil
}

func (da *DatabaseAppender) Flush() error {
	da.mu.Lock()
	defer da.mu.Unlock()
	return da.flushBatch(context.Background())
}

func (da *DatabaseAppender) Close() error {
	return da.Flush()
}

// QueryFilter narrows Query and Count. Zero fields do not filter.
type QueryFilter struct {
	Operation Operation
	Status    Status
	Table     string
	Since     time.Time
	Until     time.Time
	Limit     int
}

func (da *DatabaseAppender) where(f QueryFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+" "+da.placeholder.bind(len(args)))
	}

	if f.Operation != "" {
		add("operation =", string(f.Operation))
	}
	if f.Status != "" {
		add("status =", string(f.Status))
	}
	if f.Table != "" {
		add("table_name =", f.Table)
	}
	if !f.Since.IsZero() {
		add("ts >=", f.Since.UTC().Format(timestampLayout))
	}
	if !f.Until.IsZero() {
		add("ts <=", f.Until.UTC().Format(timestampLayout))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query returns matching entries, newest first.
func (da *DatabaseAppender) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	where, args := da.where(filter)
	query := fmt.Sprintf(`SELECT id, ts, operation, status, backend, table_name, records, duration_ms, error_message, metadata
FROM %s%s
ORDER BY ts DESC`, da.table, where)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := da.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e                       Entry
			ts, operation, status   string
			backend, table, message sql.NullString
			records, durationMs     sql.NullInt64
			metadata                sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &operation, &status, &backend, &table, &records, &durationMs, &message, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if e.Timestamp, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp %q: %w", ts, err)
		}
		e.Operation = Operation(operation)
		e.Status = Status(status)
		e.Backend = backend.String
		e.Table = table.String
		e.Records = records.Int64
		e.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		e.ErrorMessage = message.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata of %s: %w", e.ID, err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}

func (da *DatabaseAppender) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := da.where(filter)

	var count int64
	if err := da.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s%s", da.table, where), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes entries stamped before t and returns how many.
func (da *DatabaseAppender) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	result, err := da.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE ts < %s", da.table, da.placeholder.bind(1)),
		t.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entries: %w", err)
	}
	return result.RowsAffected()
}
