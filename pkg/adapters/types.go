package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TableRef names a table, optionally qualified by schema.
type TableRef struct {
	Schema string
	Name   string
}

func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Identity is the auto-generated column of a table and its declared type.
type Identity struct {
	Column string
	Type   string
}

// MergeTarget is the resolved metadata a reconciliation statement needs.
type MergeTarget struct {
	Table       TableRef
	TempTable   string
	PrimaryKeys []string
	Identity    *Identity
}

// IdentityIn returns the identity column name if it appears in columns.
func (m MergeTarget) IdentityIn(columns []string) (string, bool) {
	if m.Identity == nil {
		return "", false
	}
	for _, c := range columns {
		if strings.EqualFold(c, m.Identity.Column) {
			return c, true
		}
	}
	return "", false
}

// Script is an ordered list of statements run on one session.
// Only the last statement may return rows.
type Script []string

func (s Script) String() string {
	return strings.Join(s, ";\n")
}

// Rows is the staged record set as seen by a BulkWriter.
type Rows interface {
	// Len returns the number of rows.
	Len() int

	// Row fills dst with the values of row i, in WriteRequest.Columns order.
	Row(i int, dst []any) error
}

// WriteRequest describes one bulk load.
type WriteRequest struct {
	// Conn is the session every statement of the call runs on.
	Conn *sql.Conn

	// Tx is the caller's transaction on Conn, if any.
	Tx *sql.Tx

	// Table receives the rows. It is a temp table for merge operations.
	Table TableRef

	// Source is the real table Table was shaped after.
	Source TableRef

	// Columns is the wire order of values in Rows.
	Columns []string

	Rows      Rows
	BatchSize int

	// Timeout bounds the whole load. Zero means no bound.
	Timeout time.Duration
}

// Session is the part of *sql.Conn and *sql.Tx writers and the engine use.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session returns Tx when set, otherwise Conn.
func (r WriteRequest) Session() Session {
	if r.Tx != nil {
		return r.Tx
	}
	return r.Conn
}

// Batches splits n rows into half-open ranges of at most size rows.
func Batches(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 || size > n {
		size = n
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// WriteError is returned by bulk writers when the native load fails.
type WriteError struct {
	Backend string
	Table   string
	Err     error

	// Hint explains a likely cause, e.g. column name case mismatch.
	Hint string
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("%s bulk write into %s failed: %v", e.Backend, e.Table, e.Err)
	if e.Hint != "" {
		msg += " (hint: " + e.Hint + ")"
	}
	return msg
}

func (e *WriteError) Unwrap() error { return e.Err }

// ColumnCaseHint is the hint writers attach when a column is reported missing.
const ColumnCaseHint = "the backend reported an unknown column; column names are matched case-sensitively, check the declared names against the table definition"
