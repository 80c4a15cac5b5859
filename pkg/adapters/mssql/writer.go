package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssqldb "github.com/denisenkom/go-mssqldb"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	"github.com/ruslano69/bulkmerge/pkg/adapters/base"
)

// errInvalidColumnName is the server error number for "Invalid column name".
const errInvalidColumnName = 207

// Writer streams rows with the TDS bulk load protocol (INSERT BULK).
type Writer struct {
	q *base.SQLAdapter
}

// NewWriter creates the SQL Server bulk writer.
func NewWriter() *Writer {
	return &Writer{q: base.NewMSSQLAdapter()}
}

// Write loads req.Rows into req.Table through mssqldb.CopyIn.
// The statement is prepared on req.Tx when set, otherwise on req.Conn,
// so the load sees the session's temp tables.
func (w *Writer) Write(ctx context.Context, req adapters.WriteRequest) error {
	n := req.Rows.Len()
	if n == 0 {
		return nil
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	batch := req.BatchSize
	if batch <= 0 || batch > n {
		batch = n
	}

	query := mssqldb.CopyIn(w.q.QuoteTable(req.Table), mssqldb.BulkOptions{RowsPerBatch: batch}, req.Columns...)

	var (
		stmt *sql.Stmt
		err  error
	)
	if req.Tx != nil {
		stmt, err = req.Tx.PrepareContext(ctx, query)
	} else {
		stmt, err = req.Conn.PrepareContext(ctx, query)
	}
	if err != nil {
		return w.fail(req, fmt.Errorf("failed to prepare bulk copy: %w", err))
	}
	defer stmt.Close()

	row := make([]any, len(req.Columns))
	for i := 0; i < n; i++ {
		if err := req.Rows.Row(i, row); err != nil {
			return w.fail(req, fmt.Errorf("failed to read row %d: %w", i, err))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return w.fail(req, fmt.Errorf("failed to send row %d: %w", i, err))
		}
	}

	// An exec without arguments flushes the pending rows.
	result, err := stmt.ExecContext(ctx)
	if err != nil {
		return w.fail(req, fmt.Errorf("failed to flush bulk copy: %w", err))
	}
	copied, err := result.RowsAffected()
	if err != nil {
		return w.fail(req, fmt.Errorf("failed to read copied row count: %w", err))
	}
	if copied != int64(n) {
		return w.fail(req, fmt.Errorf("bulk copy wrote %d of %d rows", copied, n))
	}
	return nil
}

func (w *Writer) fail(req adapters.WriteRequest, err error) error {
	werr := &adapters.WriteError{Backend: AdapterType, Table: req.Table.String(), Err: err}
	if isColumnError(err) {
		werr.Hint = adapters.ColumnCaseHint
	}
	return werr
}

// isColumnError reports a missing column, either from the server or from
// the driver's own column matching, which is case-sensitive.
func isColumnError(err error) bool {
	var serr mssqldb.Error
	if errors.As(err, &serr) && serr.Number == errInvalidColumnName {
		return true
	}
	return strings.Contains(err.Error(), "does not exist in destination table")
}

var _ adapters.BulkWriter = (*Writer)(nil)
