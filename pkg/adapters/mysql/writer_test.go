package mysql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

type sliceRows [][]any

func (r sliceRows) Len() int { return len(r) }

func (r sliceRows) Row(i int, dst []any) error {
	copy(dst, r[i])
	return nil
}

func newRequest(t *testing.T, rows sliceRows) (adapters.WriteRequest, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return adapters.WriteRequest{
		Conn:    conn,
		Table:   adapters.TableRef{Name: "person_tmp"},
		Source:  adapters.TableRef{Name: "person"},
		Columns: []string{"id", "name"},
		Rows:    rows,
	}, mock
}

var loadStatement = regexp.QuoteMeta("LOAD DATA LOCAL INFILE 'Reader::bulk_") + ".*" + regexp.QuoteMeta("INTO TABLE `person_tmp`")

func TestWriter_LoadsInBatches(t *testing.T) {
	req, mock := newRequest(t, sliceRows{{int64(1), "a"}, {int64(2), "b"}, {int64(3), "c"}})
	req.BatchSize = 2

	mock.ExpectQuery(regexp.QuoteMeta("SELECT @@GLOBAL.local_infile")).
		WillReturnRows(sqlmock.NewRows([]string{"local_infile"}).AddRow(1))
	mock.ExpectExec(loadStatement).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(loadStatement).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewWriter().Write(context.Background(), req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_EnablesLocalInfile(t *testing.T) {
	req, mock := newRequest(t, sliceRows{{int64(1), "a"}})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT @@GLOBAL.local_infile")).
		WillReturnRows(sqlmock.NewRows([]string{"local_infile"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("SET GLOBAL local_infile = 1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(loadStatement).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewWriter().Write(context.Background(), req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_EmptyRequestIsNoop(t *testing.T) {
	req, mock := newRequest(t, sliceRows{})

	require.NoError(t, NewWriter().Write(context.Background(), req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_UnknownColumnHint(t *testing.T) {
	req, mock := newRequest(t, sliceRows{{int64(1), "a"}})

	mock.ExpectQuery("local_infile").
		WillReturnRows(sqlmock.NewRows([]string{"local_infile"}).AddRow(1))
	mock.ExpectExec(loadStatement).
		WillReturnError(&mysqldrv.MySQLError{Number: 1054, Message: "Unknown column 'Name' in 'field list'"})

	err := NewWriter().Write(context.Background(), req)

	var werr *adapters.WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, adapters.ColumnCaseHint, werr.Hint)

	var merr *mysqldrv.MySQLError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, uint16(1054), merr.Number)
}

func TestWriter_RowCountMismatch(t *testing.T) {
	req, mock := newRequest(t, sliceRows{{int64(1), "a"}, {int64(2), "b"}})

	mock.ExpectQuery("local_infile").
		WillReturnRows(sqlmock.NewRows([]string{"local_infile"}).AddRow(1))
	mock.ExpectExec(loadStatement).WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewWriter().Write(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrote 1 of 2 rows")
}
