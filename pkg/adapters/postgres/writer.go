package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

// errUndefinedColumn is SQLSTATE undefined_column.
const errUndefinedColumn = "42703"

const timestampWithoutTimeZone = "timestamp without time zone"

// Writer loads rows with COPY FROM STDIN through the pgx connection behind
// database/sql. It requires the pgx stdlib driver ("pgx").
type Writer struct{}

// NewWriter creates the PostgreSQL bulk writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write copies req.Rows into req.Table, one CopyFrom per batch.
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

	types := columnTypes(ctx, req.Session(), req.Source)
	local := localTimestampColumns(req.Columns, types)

	table := pgx.Identifier{req.Table.Name}
	if req.Table.Schema != "" {
		table = pgx.Identifier{req.Table.Schema, req.Table.Name}
	}

	err := req.Conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unsupported driver connection %T, open the database with the pgx stdlib driver", driverConn)
		}
		pg := sc.Conn()

		for _, b := range adapters.Batches(n, req.BatchSize) {
			start := b[0]
			src := pgx.CopyFromSlice(b[1]-b[0], func(i int) ([]any, error) {
				row := make([]any, len(req.Columns))
				if err := req.Rows.Row(start+i, row); err != nil {
					return nil, fmt.Errorf("failed to read row %d: %w", start+i, err)
				}
				stripLocation(row, local)
				return row, nil
			})

			copied, err := pg.CopyFrom(ctx, table, req.Columns, src)
			if err != nil {
				return fmt.Errorf("failed to copy rows: %w", err)
			}
			if copied != int64(b[1]-b[0]) {
				return fmt.Errorf("copy wrote %d of %d rows", copied, b[1]-b[0])
			}
		}
		return nil
	})
	if err != nil {
		return w.fail(req, err)
	}
	return nil
}

// columnTypes returns data_type by column name for source. Failures yield an
// empty map; values are then sent unchanged.
func columnTypes(ctx context.Context, session adapters.Session, source adapters.TableRef) map[string]string {
	schema := source.Schema
	if schema == "" {
		schema = DefaultSchema
	}

	types := make(map[string]string)
	rows, err := session.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2`,
		schema, source.Name)
	if err != nil {
		return types
	}
	defer rows.Close()

	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return map[string]string{}
		}
		types[name] = dataType
	}
	return types
}

// localTimestampColumns returns the positions of columns stored without a
// time zone.
func localTimestampColumns(columns []string, types map[string]string) []int {
	var out []int
	for i, c := range columns {
		if types[c] == timestampWithoutTimeZone {
			out = append(out, i)
		}
	}
	return out
}

// stripLocation keeps the wall clock of time values and drops their zone,
// so a local time is stored as written.
func stripLocation(row []any, positions []int) {
	for _, i := range positions {
		if t, ok := row[i].(time.Time); ok {
			row[i] = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		}
	}
}

func (w *Writer) fail(req adapters.WriteRequest, err error) error {
	werr := &adapters.WriteError{Backend: AdapterType, Table: req.Table.String(), Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == errUndefinedColumn {
		werr.Hint = adapters.ColumnCaseHint
	}
	return werr
}

var _ adapters.BulkWriter = (*Writer)(nil)
