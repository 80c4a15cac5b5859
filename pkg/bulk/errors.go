package bulk

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoPrimaryKeys is returned when update, upsert or delete cannot find
	// a key to match rows on.
	ErrNoPrimaryKeys = errors.New("no primary keys declared or found")

	// ErrKeyNotStaged is returned when a key column is excluded or not declared.
	ErrKeyNotStaged = errors.New("primary key column is not among the staged columns")

	// ErrNullKey is returned before any DDL when a record has a NULL key component.
	ErrNullKey = errors.New("record has a NULL primary key value")

	// ErrNoColumns is returned when exclusions leave nothing to write.
	ErrNoColumns = errors.New("no columns left to write")

	// ErrNoUpdatableColumns is returned by update when every staged column is a key.
	ErrNoUpdatableColumns = errors.New("no non-key columns to update")

	// ErrUnsupportedConnector is returned for handles other than *sql.DB and *sql.Conn.
	ErrUnsupportedConnector = errors.New("unsupported connector, use *sql.DB or *sql.Conn")

	// ErrTxRequiresConn is returned when WithTx is combined with a *sql.DB.
	// Temp tables live in one session, so the transaction's *sql.Conn must be passed.
	ErrTxRequiresConn = errors.New("a transaction requires the *sql.Conn it was started on")

	// ErrAmbiguousIdentity is returned when the catalog reports more than one identity column.
	ErrAmbiguousIdentity = errors.New("catalog reported more than one identity column")
)

// Error is returned by every bulk operation. It unwraps to the failing
// driver or validation error.
type Error struct {
	Op        Op
	State     State
	Table     string
	TempTable string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("bulk %s into %s failed at %s", e.Op, e.Table, e.State)
	if e.TempTable != "" {
		msg += " (temp table " + e.TempTable + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IdentityMismatchError reports that the server returned a different number
// of generated keys than there were records waiting for one. The statement
// has already run; records were assigned up to the smaller count.
type IdentityMismatchError struct {
	Column   string
	Expected int
	Actual   int
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("identity column %s: expected %d generated keys, got %d", e.Column, e.Expected, e.Actual)
}

// CleanupError reports a temp table that could not be dropped.
type CleanupError struct {
	TempTable string

	// Evicted is set when the session was discarded so the table dies with it.
	Evicted bool

	Err error
}

func (e *CleanupError) Error() string {
	msg := fmt.Sprintf("failed to drop temp table %s: %v", e.TempTable, e.Err)
	if e.Evicted {
		msg += " (session evicted)"
	}
	return msg
}

func (e *CleanupError) Unwrap() error { return e.Err }

// backendFailure reports whether err points at the database rather than at
// the caller's input or a cancelled call.
func backendFailure(err error) bool {
	for _, callerErr := range []error{
		ErrNoPrimaryKeys, ErrKeyNotStaged, ErrNullKey, ErrNoColumns, ErrNoUpdatableColumns,
		ErrUnsupportedConnector, ErrTxRequiresConn, context.Canceled,
	} {
		if errors.Is(err, callerErr) {
			return false
		}
	}
	var mismatch *IdentityMismatchError
	return !errors.As(err, &mismatch)
}
