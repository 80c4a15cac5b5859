package bulk

import (
	"database/sql"
	"fmt"

	"github.com/ruslano69/bulkmerge/pkg/core/schema"
)

// identityTargets returns the indexes of records that consume a generated
// key, in input order. Insert generates a key for every staged row since the
// identity is never copied into the target; upsert only for unset records.
func identityTargets[T any](records []T, field schema.IdentityField[T], onlyUnset bool) []int {
	out := make([]int, 0, len(records))
	for i := range records {
		if !onlyUnset || field.Unset(&records[i]) {
			out = append(out, i)
		}
	}
	return out
}

// readIdentities collects the single column of the first result set that
// has columns.
func readIdentities(rows *sql.Rows) ([]any, error) {
	for {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read identity columns: %w", err)
		}
		if len(cols) > 0 {
			break
		}
		if !rows.NextResultSet() {
			return nil, rows.Err()
		}
	}

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identities: %w", err)
	}
	return values, nil
}

// mapIdentity assigns values to records[targets[i]] in order. Records that
// already carry an identity consume their value but keep their own. A count
// mismatch is reported after assigning up to the smaller count.
func mapIdentity[T any](records []T, field schema.IdentityField[T], column string, targets []int, values []any) error {
	n := min(len(targets), len(values))
	for i := 0; i < n; i++ {
		if !field.Unset(&records[targets[i]]) {
			continue
		}
		if err := field.Assign(&records[targets[i]], values[i]); err != nil {
			return fmt.Errorf("failed to assign identity to record %d: %w", targets[i], err)
		}
	}
	if len(values) != len(targets) {
		return &IdentityMismatchError{Column: column, Expected: len(targets), Actual: len(values)}
	}
	return nil
}
