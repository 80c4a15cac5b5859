package bulk

import (
	"context"

	"github.com/ruslano69/bulkmerge/pkg/core/schema"
)

// Insert copies records into their table through a temp table. When the
// table has an identity column the server generates a key per record and
// records whose identity is unset receive theirs, in input order.
func Insert[T schema.Describer[T]](e *Engine, db Connector, records []T, opts ...Option) error {
	return InsertContext(context.Background(), e, db, records, opts...)
}

// InsertContext is Insert bound to ctx.
func InsertContext[T schema.Describer[T]](ctx context.Context, e *Engine, db Connector, records []T, opts ...Option) error {
	return execute(ctx, e, db, OpInsert, records, opts)
}

// Update sets every non-key column of the rows matching the records' primary keys.
func Update[T schema.Describer[T]](e *Engine, db Connector, records []T, opts ...Option) error {
	return UpdateContext(context.Background(), e, db, records, opts...)
}

// UpdateContext is Update bound to ctx.
func UpdateContext[T schema.Describer[T]](ctx context.Context, e *Engine, db Connector, records []T, opts ...Option) error {
	return execute(ctx, e, db, OpUpdate, records, opts)
}

// Upsert updates matched rows and inserts the rest. Records whose identity
// is unset receive the generated keys, in input order.
func Upsert[T schema.Describer[T]](e *Engine, db Connector, records []T, opts ...Option) error {
	return UpsertContext(context.Background(), e, db, records, opts...)
}

// UpsertContext is Upsert bound to ctx.
func UpsertContext[T schema.Describer[T]](ctx context.Context, e *Engine, db Connector, records []T, opts ...Option) error {
	return execute(ctx, e, db, OpUpsert, records, opts)
}

// Delete removes the rows matching the records' primary keys. Only key
// columns are staged.
func Delete[T schema.Describer[T]](e *Engine, db Connector, records []T, opts ...Option) error {
	return DeleteContext(context.Background(), e, db, records, opts...)
}

// DeleteContext is Delete bound to ctx.
func DeleteContext[T schema.Describer[T]](ctx context.Context, e *Engine, db Connector, records []T, opts ...Option) error {
	return execute(ctx, e, db, OpDelete, records, opts)
}

// Copy loads records straight into their table with the native bulk
// protocol. No temp table is used and no keys are read back. An identity
// column that no record sets is left to the server.
func Copy[T schema.Describer[T]](e *Engine, db Connector, records []T, opts ...Option) error {
	return CopyContext(context.Background(), e, db, records, opts...)
}

// CopyContext is Copy bound to ctx.
func CopyContext[T schema.Describer[T]](ctx context.Context, e *Engine, db Connector, records []T, opts ...Option) error {
	return execute(ctx, e, db, OpCopy, records, opts)
}
