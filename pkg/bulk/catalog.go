package bulk

import (
	"context"
	"fmt"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

// probePrimaryKeys lists the table's primary key columns in key order.
// A table without a primary key yields an empty list.
func probePrimaryKeys(ctx context.Context, s adapters.Session, d adapters.Dialect, table adapters.TableRef) ([]string, error) {
	rows, err := s.QueryContext(ctx, d.FindPrimaryKeysQuery(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query primary keys of %s: %w", table, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan primary key: %w", err)
		}
		keys = append(keys, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read primary keys of %s: %w", table, err)
	}
	return keys, nil
}

// probeIdentity returns the table's identity column, or nil when it has none.
func probeIdentity(ctx context.Context, s adapters.Session, d adapters.Dialect, table adapters.TableRef) (*adapters.Identity, error) {
	rows, err := s.QueryContext(ctx, d.FindIdentityQuery(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query identity of %s: %w", table, err)
	}
	defer rows.Close()

	var found *adapters.Identity
	for rows.Next() {
		if found != nil {
			return nil, fmt.Errorf("%w: table %s", ErrAmbiguousIdentity, table)
		}
		var id adapters.Identity
		if err := rows.Scan(&id.Column, &id.Type); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		found = &id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identity of %s: %w", table, err)
	}
	return found, nil
}
