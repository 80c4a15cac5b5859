package mysql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	"github.com/ruslano69/bulkmerge/pkg/adapters/base"
)

// errUnknownColumn is ER_BAD_FIELD_ERROR.
const errUnknownColumn = 1054

// Writer loads rows with LOAD DATA LOCAL INFILE fed from an in-memory
// reader registered with the driver.
type Writer struct {
	q *base.SQLAdapter
}

// NewWriter creates the MySQL bulk writer.
func NewWriter() *Writer {
	return &Writer{q: base.NewStandardSQLAdapter("`")}
}

// Write enables local_infile when the server has it switched off, then
// sends one LOAD DATA statement per batch.
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

	session := req.Session()
	if err := enableLocalInfile(ctx, session); err != nil {
		return w.fail(req, err)
	}

	row := make([]any, len(req.Columns))
	var buf bytes.Buffer

	for _, b := range adapters.Batches(n, req.BatchSize) {
		buf.Reset()
		for i := b[0]; i < b[1]; i++ {
			if err := req.Rows.Row(i, row); err != nil {
				return w.fail(req, fmt.Errorf("failed to read row %d: %w", i, err))
			}
			appendRow(&buf, row)
		}

		if err := w.load(ctx, session, req, buf.Bytes(), b[1]-b[0]); err != nil {
			return w.fail(req, err)
		}
	}
	return nil
}

func (w *Writer) load(ctx context.Context, session adapters.Session, req adapters.WriteRequest, data []byte, rows int) error {
	name := "bulk_" + base.NewToken()
	mysqldrv.RegisterReaderHandler(name, func() io.Reader {
		return bytes.NewReader(data)
	})
	defer mysqldrv.DeregisterReaderHandler(name)

	result, err := session.ExecContext(ctx, w.loadStatement(name, req))
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	loaded, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read loaded row count: %w", err)
	}
	if loaded != int64(rows) {
		return fmt.Errorf("load data wrote %d of %d rows", loaded, rows)
	}
	return nil
}

func (w *Writer) loadStatement(reader string, req adapters.WriteRequest) string {
	return fmt.Sprintf(`LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s
CHARACTER SET utf8mb4
FIELDS TERMINATED BY '\t' ESCAPED BY '\\'
LINES TERMINATED BY '\n'
(%s)`, reader, w.q.QuoteTable(req.Table), w.q.QuoteList("", req.Columns))
}

func enableLocalInfile(ctx context.Context, session adapters.Session) error {
	var enabled int
	if err := session.QueryRowContext(ctx, "SELECT @@GLOBAL.local_infile").Scan(&enabled); err != nil {
		return fmt.Errorf("failed to read local_infile: %w", err)
	}
	if enabled == 1 {
		return nil
	}
	if _, err := session.ExecContext(ctx, "SET GLOBAL local_infile = 1"); err != nil {
		return fmt.Errorf("failed to enable local_infile: %w", err)
	}
	return nil
}

func (w *Writer) fail(req adapters.WriteRequest, err error) error {
	werr := &adapters.WriteError{Backend: AdapterType, Table: req.Table.String(), Err: err}
	var merr *mysqldrv.MySQLError
	if errors.As(err, &merr) && merr.Number == errUnknownColumn {
		werr.Hint = adapters.ColumnCaseHint
	}
	return werr
}

var _ adapters.BulkWriter = (*Writer)(nil)
