package base

import (
	"strings"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

// SQLAdapter quotes identifiers and literals for one SQL dialect.
type SQLAdapter struct {
	open  string
	close string
}

// NewStandardSQLAdapter creates a quoter using the same character on both sides:
// '"' for PostgreSQL, '`' for MySQL.
func NewStandardSQLAdapter(quoteChar string) *SQLAdapter {
	return &SQLAdapter{open: quoteChar, close: quoteChar}
}

// NewMSSQLAdapter creates a quoter for [bracketed] T-SQL identifiers.
func NewMSSQLAdapter() *SQLAdapter {
	return &SQLAdapter{open: "[", close: "]"}
}

// QuoteIdentifier quotes one identifier, doubling embedded closing quotes.
func (a *SQLAdapter) QuoteIdentifier(identifier string) string {
	return a.open + strings.ReplaceAll(identifier, a.close, a.close+a.close) + a.close
}

// QuoteTable quotes a schema-qualified table reference.
func (a *SQLAdapter) QuoteTable(t adapters.TableRef) string {
	if t.Schema == "" {
		return a.QuoteIdentifier(t.Name)
	}
	return a.QuoteIdentifier(t.Schema) + "." + a.QuoteIdentifier(t.Name)
}

// QuoteList quotes and comma-joins columns, each optionally prefixed by alias.
func (a *SQLAdapter) QuoteList(alias string, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = a.qualify(alias, c)
	}
	return strings.Join(parts, ",")
}

// KeyMatch renders "l.k1 = r.k1 AND l.k2 = r.k2".
// Keys are compared with plain equality; NULL components never match.
func (a *SQLAdapter) KeyMatch(left, right string, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = a.qualify(left, k) + " = " + a.qualify(right, k)
	}
	return strings.Join(parts, " AND ")
}

// SetList renders "l.c1 = r.c1,l.c2 = r.c2" for every column that is not a key.
// An empty target alias leaves the assigned column unqualified.
func (a *SQLAdapter) SetList(target, source string, columns, keys []string) string {
	cols := Without(columns, keys)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = a.qualify(target, c) + " = " + a.qualify(source, c)
	}
	return strings.Join(parts, ",")
}

func (a *SQLAdapter) qualify(alias, column string) string {
	if alias == "" {
		return a.QuoteIdentifier(column)
	}
	return alias + "." + a.QuoteIdentifier(column)
}

// QuoteLiteral renders s as a single-quoted string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Without returns columns minus the names in drop, ignoring case.
func Without(columns, drop []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !Contains(drop, c) {
			out = append(out, c)
		}
	}
	return out
}

// Contains reports whether names holds name, ignoring case.
func Contains(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
