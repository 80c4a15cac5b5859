package adapters

import (
	"context"
)

// Dialect renders every statement the merge engine sends to one backend family.
// All methods except CreateParameter are pure string rendering over resolved metadata.
type Dialect interface {
	// Name returns the backend identifier, e.g. "mssql".
	Name() string

	// DefaultSchema is used when the record schema declares none.
	// It may be empty, meaning the connection's current database.
	DefaultSchema() string

	// MaxIdentifierLength bounds the length of generated temp table names.
	MaxIdentifierLength() int

	// FindPrimaryKeysQuery returns a query yielding one primary key column name per row.
	FindPrimaryKeysQuery(table TableRef) string

	// FindIdentityQuery returns a query yielding (column name, declared type)
	// for the auto-generated column, or no rows.
	FindIdentityQuery(table TableRef) string

	// CreateTempTableQuery creates an empty staging table shaped like source,
	// limited to columns.
	CreateTempTableQuery(temp string, source TableRef, columns []string) Script

	// AlterIdentityColumnQuery turns the staging table's identity column into
	// a plain column of the same declared type.
	AlterIdentityColumnQuery(temp string, id Identity) Script

	// InsertQuery copies staged rows into the target. With an identity it ends
	// with a statement returning the new keys in insertion order.
	InsertQuery(columns []string, target MergeTarget) Script

	// UpdateQuery sets every non-key column of matched target rows.
	UpdateQuery(columns []string, target MergeTarget) Script

	// UpsertQuery updates matched rows and inserts the rest. With an identity
	// it ends with a statement returning only the keys of inserted rows.
	UpsertQuery(columns []string, target MergeTarget) Script

	// DeleteQuery deletes target rows matching staged keys.
	DeleteQuery(target MergeTarget) Script

	// DropTempTableQuery removes the staging table. It must not fail when
	// the table is already gone.
	DropTempTableQuery(temp string) Script

	// TempTableName returns a fresh staging table name for target.
	TempTableName(target string) string

	// CreateParameter converts a field value into the form the backend writes.
	CreateParameter(value any) any
}

// BulkWriter streams rows into a table with the backend's native bulk protocol.
type BulkWriter interface {
	Write(ctx context.Context, req WriteRequest) error
}

// Backend pairs the dialect and writer of one database family.
type Backend struct {
	Name    string
	Dialect Dialect
	Writer  BulkWriter
}

// Validate checks that both halves of the pair are present.
func (b Backend) Validate() error {
	switch {
	case b.Name == "":
		return errBackend("backend name is empty")
	case b.Dialect == nil:
		return errBackend("backend " + b.Name + " has no dialect")
	case b.Writer == nil:
		return errBackend("backend " + b.Name + " has no bulk writer")
	}
	return nil
}

type errBackend string

func (e errBackend) Error() string { return string(e) }
