package bulk

import (
	"database/sql"
	"time"
)

// Option adjusts a single bulk call.
type Option func(*callOptions)

type callOptions struct {
	table       string
	tx          *sql.Tx
	batchSize   int
	exclude     []string
	primaryKeys []string
	timeout     time.Duration
}

// WithTable overrides the declared table name.
func WithTable(name string) Option {
	return func(o *callOptions) { o.table = name }
}

// WithTx runs every statement of the call inside tx. The connector passed
// to the call must be the *sql.Conn tx was started on.
func WithTx(tx *sql.Tx) Option {
	return func(o *callOptions) { o.tx = tx }
}

// WithBatchSize bounds the rows sent per bulk load round. Zero sends all rows at once.
func WithBatchSize(n int) Option {
	return func(o *callOptions) { o.batchSize = n }
}

// WithExclude leaves the named columns out of the call. Delete ignores it.
func WithExclude(columns ...string) Option {
	return func(o *callOptions) { o.exclude = append(o.exclude, columns...) }
}

// WithPrimaryKeys overrides the declared and catalog primary keys.
func WithPrimaryKeys(columns ...string) Option {
	return func(o *callOptions) { o.primaryKeys = append([]string(nil), columns...) }
}

// WithTimeout bounds each statement and the bulk load of the call.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) { o.timeout = d }
}
