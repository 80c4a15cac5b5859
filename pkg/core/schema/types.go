package schema

import (
	"fmt"
	"strings"
)

// Describer is implemented by record types that can be moved in bulk.
// BulkSchema declares the table, the persisted columns and their keys on b.
//
//	func (Person) BulkSchema(b *schema.Builder[Person]) {
//	    b.Table("Person").
//	        KeyIdentity("Id", schema.ZeroIdentity(func(p *Person) *int64 { return &p.ID })).
//	        Column("FullName", func(p *Person) any { return p.FullName })
//	}
type Describer[T any] interface {
	BulkSchema(b *Builder[T])
}

// Column describes one persisted column of T.
type Column[T any] struct {
	// Name is the database column name, emitted verbatim.
	Name string

	// Key marks a declared primary key column.
	Key bool

	get      func(*T) any
	identity IdentityField[T]
}

// Value returns the column value of rec.
func (c Column[T]) Value(rec *T) any {
	if c.identity != nil {
		return c.identity.Value(rec)
	}
	return c.get(rec)
}

// Identity returns the identity accessor of the column, or nil for plain columns.
func (c Column[T]) Identity() IdentityField[T] {
	return c.identity
}

// Schema is the resolved, immutable descriptor of T.
// Instances are shared by concurrent calls through the Cache.
type Schema[T any] struct {
	table   string
	schema  string
	columns []Column[T]
	keys    []string
	ignored []string
	index   map[string]int
}

// Table returns the declared table name.
func (s *Schema[T]) Table() string { return s.table }

// SchemaName returns the declared database schema, empty when not declared.
func (s *Schema[T]) SchemaName() string { return s.schema }

// Columns returns the persisted columns in declaration order.
func (s *Schema[T]) Columns() []Column[T] {
	out := make([]Column[T], len(s.columns))
	copy(out, s.columns)
	return out
}

// ColumnNames returns the persisted column names in declaration order.
func (s *Schema[T]) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKeys returns the declared primary key column names.
func (s *Schema[T]) PrimaryKeys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Ignored returns the names marked as not persisted.
func (s *Schema[T]) Ignored() []string {
	out := make([]string, len(s.ignored))
	copy(out, s.ignored)
	return out
}

// Lookup finds a column by name, ignoring case.
func (s *Schema[T]) Lookup(name string) (Column[T], bool) {
	i, ok := s.index[Normalize(name)]
	if !ok {
		return Column[T]{}, false
	}
	return s.columns[i], true
}

// Normalize folds a column name for comparison.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidationError reports an invalid schema declaration.
type ValidationError struct {
	Type    string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("schema %s: column %q: %s", e.Type, e.Column, e.Message)
}
