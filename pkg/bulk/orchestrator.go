package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	"github.com/ruslano69/bulkmerge/pkg/adapters/base"
	"github.com/ruslano69/bulkmerge/pkg/audit"
	"github.com/ruslano69/bulkmerge/pkg/core/schema"
	"github.com/ruslano69/bulkmerge/pkg/resilience"
	"github.com/ruslano69/bulkmerge/pkg/retry"
)

// call is the state of one bulk operation. Its steps never overlap.
type call[T any] struct {
	e       *Engine
	op      Op
	opts    callOptions
	records []T

	schema  *schema.Schema[T]
	sess    *session
	table   adapters.TableRef
	columns []schema.Column[T]
	names   []string
	target  adapters.MergeTarget

	// idField receives generated keys; nil when the identity column is not
	// staged or has no identity accessor.
	idField schema.IdentityField[T]
}

func execute[T schema.Describer[T]](ctx context.Context, e *Engine, db Connector, op Op, records []T, opts []Option) error {
	if len(records) == 0 {
		return nil
	}

	started := time.Now()
	c := &call[T]{
		e:       e,
		op:      op,
		opts:    e.callOptions(opts),
		records: records,
	}

	sch, err := schema.For[T](e.cache)
	if err != nil {
		err = c.fail(StateStart, err)
	} else {
		c.schema = sch
		err = c.run(ctx, db)
	}
	c.record(ctx, started, err)
	return err
}

func (c *call[T]) run(ctx context.Context, db Connector) error {
	c.table = c.resolveTable()
	c.log(StateStart)

	err := c.e.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.session(ctx, db)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyCalls) {
		return c.fail(StateConnectionOpened, err)
	}
	return err
}

// session runs the call on one connection and gives it back.
func (c *call[T]) session(ctx context.Context, db Connector) (err error) {
	sess, err := openSession(ctx, db, c.opts.tx)
	if err != nil {
		return c.fail(StateConnectionOpened, err)
	}
	c.sess = sess
	c.log(StateConnectionOpened)

	defer func() {
		if cerr := sess.close(); cerr != nil && err == nil {
			err = c.fail(StateConnectionClosed, cerr)
		}
		c.log(StateConnectionClosed)
	}()

	if err := c.resolveMetadata(ctx); err != nil {
		return c.fail(StateMetadataResolved, err)
	}
	c.log(StateMetadataResolved)

	if !c.op.merges() {
		if err := c.stage(ctx, c.table); err != nil {
			return c.fail(StateRowsStaged, err)
		}
		c.log(StateRowsStaged)
		return nil
	}
	return c.merge(ctx)
}

// merge stages the records in a temp table, reconciles it with the target
// and drops it, also when a step fails.
func (c *call[T]) merge(ctx context.Context) (err error) {
	d := c.e.backend.Dialect
	c.target.TempTable = d.TempTableName(c.table.Name)

	if err := c.script(ctx, d.CreateTempTableQuery(c.target.TempTable, c.table, c.names)); err != nil {
		return c.fail(StateTempTableCreated, err)
	}

	defer func() {
		cerr := c.cleanup(ctx)
		if cerr == nil {
			c.log(StateTempTableDropped)
			return
		}
		var be *Error
		if errors.As(err, &be) {
			be.Err = errors.Join(be.Err, cerr)
			return
		}
		err = c.fail(StateTempTableDropped, cerr)
	}()

	if col, ok := c.target.IdentityIn(c.names); ok {
		id := adapters.Identity{Column: col, Type: c.target.Identity.Type}
		if err := c.script(ctx, d.AlterIdentityColumnQuery(c.target.TempTable, id)); err != nil {
			return c.fail(StateTempTableCreated, err)
		}
	}
	c.log(StateTempTableCreated)

	if err := c.stage(ctx, adapters.TableRef{Name: c.target.TempTable}); err != nil {
		return c.fail(StateRowsStaged, err)
	}
	c.log(StateRowsStaged)

	return c.reconcile(ctx)
}

func (c *call[T]) reconcile(ctx context.Context) error {
	d := c.e.backend.Dialect

	var script adapters.Script
	switch c.op {
	case OpInsert:
		script = d.InsertQuery(c.names, c.target)
	case OpUpdate:
		script = d.UpdateQuery(c.names, c.target)
	case OpUpsert:
		script = d.UpsertQuery(c.names, c.target)
	case OpDelete:
		script = d.DeleteQuery(c.target)
	default:
		return c.fail(StateStatementExecuted, fmt.Errorf("unknown operation %q", c.op))
	}

	returnsKeys := c.target.Identity != nil && (c.op == OpInsert || c.op == OpUpsert)
	if !returnsKeys || len(script) == 0 {
		if err := c.script(ctx, script); err != nil {
			return c.fail(StateStatementExecuted, err)
		}
		c.log(StateStatementExecuted)
		return nil
	}

	var targets []int
	if c.idField != nil {
		targets = identityTargets(c.records, c.idField, c.op == OpUpsert)
	}

	last := len(script) - 1
	if err := c.script(ctx, script[:last]); err != nil {
		return c.fail(StateStatementExecuted, err)
	}
	values, err := c.query(ctx, script[last])
	if err != nil {
		return c.fail(StateStatementExecuted, err)
	}
	c.log(StateStatementExecuted)

	if c.idField == nil {
		return nil
	}
	if err := mapIdentity(c.records, c.idField, c.target.Identity.Column, targets, values); err != nil {
		return c.fail(StateIdentityMapped, err)
	}
	c.log(StateIdentityMapped)
	return nil
}

// cleanup drops the temp table through the retryer. A done call context is
// replaced so the drop still runs. When the drop keeps failing an owned
// session is evicted from the pool, which takes the table with it.
func (c *call[T]) cleanup(ctx context.Context) error {
	if ctx.Err() != nil {
		timeout := c.opts.timeout
		if timeout <= 0 {
			timeout = DefaultCleanupTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
	}

	drop := c.e.backend.Dialect.DropTempTableQuery(c.target.TempTable)
	entry := retry.LedgerEntry{
		Backend:   c.e.backend.Name,
		Operation: string(c.op),
		Table:     c.table.String(),
		TempTable: c.target.TempTable,
		Evicted:   c.sess.owned,
	}

	err := c.e.retryer.DoWithEntry(ctx, func(ctx context.Context) error {
		return c.script(ctx, drop)
	}, entry)
	if err == nil {
		return nil
	}

	c.e.logger.Warn().Err(err).
		Str("table", c.table.String()).
		Str("temp_table", c.target.TempTable).
		Msg("temp table left behind")

	return &CleanupError{TempTable: c.target.TempTable, Evicted: c.sess.evict(), Err: err}
}

// resolveTable picks the override, the declared table or the type name.
// An override may be schema qualified.
func (c *call[T]) resolveTable() adapters.TableRef {
	t := adapters.TableRef{Schema: c.schema.SchemaName(), Name: c.schema.Table()}
	if name := c.opts.table; name != "" {
		if i := strings.IndexByte(name, '.'); i > 0 && i < len(name)-1 {
			t = adapters.TableRef{Schema: name[:i], Name: name[i+1:]}
		} else {
			t.Name = name
		}
	}
	if t.Schema == "" {
		t.Schema = c.e.backend.Dialect.DefaultSchema()
	}
	return t
}

func (c *call[T]) resolveMetadata(ctx context.Context) error {
	columns := c.schema.Columns()
	if c.op != OpDelete && len(c.opts.exclude) > 0 {
		kept := columns[:0]
		for _, col := range columns {
			if !base.Contains(c.opts.exclude, col.Name) {
				kept = append(kept, col)
			}
		}
		columns = kept
	}
	if c.op == OpCopy {
		columns = c.withoutUnsetIdentity(columns)
	}

	var keys []string
	if c.op.needsKeys() {
		var err error
		if keys, err = c.resolveKeys(ctx, columns); err != nil {
			return err
		}
	}

	if c.op == OpDelete {
		staged := make([]schema.Column[T], 0, len(keys))
		for _, col := range columns {
			if base.Contains(keys, col.Name) {
				staged = append(staged, col)
			}
		}
		columns = staged
	}
	if len(columns) == 0 {
		return ErrNoColumns
	}

	c.columns = columns
	c.names = make([]string, len(columns))
	for i, col := range columns {
		c.names[i] = col.Name
	}
	c.target.Table = c.table
	c.target.PrimaryKeys = keys

	if !c.op.merges() {
		return nil
	}

	if err := c.resolveIdentity(ctx); err != nil {
		return err
	}

	if c.op == OpUpdate {
		updatable := base.Without(c.names, keys)
		if c.target.Identity != nil {
			updatable = base.Without(updatable, []string{c.target.Identity.Column})
		}
		if len(updatable) == 0 {
			return ErrNoUpdatableColumns
		}
	}

	if c.op.needsKeys() {
		return c.checkKeys()
	}
	return nil
}

// withoutUnsetIdentity drops the declared identity column when no record
// carries a value, so the server generates every key.
func (c *call[T]) withoutUnsetIdentity(columns []schema.Column[T]) []schema.Column[T] {
	for i, col := range columns {
		f := col.Identity()
		if f == nil {
			continue
		}
		for j := range c.records {
			if !f.Unset(&c.records[j]) {
				return columns
			}
		}
		return append(columns[:i:i], columns[i+1:]...)
	}
	return columns
}

// resolveKeys takes the override, the declared keys or the catalog keys,
// in that order, and maps them onto staged column names.
func (c *call[T]) resolveKeys(ctx context.Context, columns []schema.Column[T]) ([]string, error) {
	keys := c.opts.primaryKeys
	if len(keys) == 0 {
		keys = c.schema.PrimaryKeys()
	}
	if len(keys) == 0 {
		ctx, cancel := c.stepContext(ctx)
		defer cancel()

		probed, err := probePrimaryKeys(ctx, c.sess.exec(), c.e.backend.Dialect, c.table)
		if err != nil {
			return nil, err
		}
		keys = probed
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: table %s", ErrNoPrimaryKeys, c.table)
	}

	resolved := make([]string, len(keys))
	for i, k := range keys {
		found := false
		for _, col := range columns {
			if strings.EqualFold(col.Name, k) {
				resolved[i] = col.Name
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotStaged, k)
		}
	}
	return resolved, nil
}

// resolveIdentity probes the identity column and binds its accessor when
// the column is staged.
func (c *call[T]) resolveIdentity(ctx context.Context) error {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()

	id, err := probeIdentity(ctx, c.sess.exec(), c.e.backend.Dialect, c.table)
	if err != nil || id == nil {
		return err
	}

	c.target.Identity = id
	for _, col := range c.columns {
		if strings.EqualFold(col.Name, id.Column) {
			id.Column = col.Name
			c.idField = col.Identity()
			break
		}
	}
	return nil
}

// checkKeys rejects NULL key components before any DDL runs. Upsert lets an
// unset identity through since those rows are inserted.
func (c *call[T]) checkKeys() error {
	keyCols := make([]schema.Column[T], 0, len(c.target.PrimaryKeys))
	for _, k := range c.target.PrimaryKeys {
		col, _ := c.schema.Lookup(k)
		keyCols = append(keyCols, col)
	}

	for i := range c.records {
		rec := &c.records[i]
		for _, col := range keyCols {
			if f := col.Identity(); f != nil && c.op == OpUpsert && f.Unset(rec) {
				continue
			}
			v, err := c.value(rec, col)
			if err != nil {
				return err
			}
			if base.IsNull(v) {
				return fmt.Errorf("%w: record %d, column %s", ErrNullKey, i, col.Name)
			}
		}
	}
	return nil
}

func (c *call[T]) stage(ctx context.Context, table adapters.TableRef) error {
	return c.e.backend.Writer.Write(ctx, adapters.WriteRequest{
		Conn:      c.sess.conn,
		Tx:        c.sess.tx,
		Table:     table,
		Source:    c.table,
		Columns:   c.names,
		Rows:      recordRows[T]{c: c},
		BatchSize: c.opts.batchSize,
		Timeout:   c.opts.timeout,
	})
}

// script runs each statement in order on the call's session.
func (c *call[T]) script(ctx context.Context, s adapters.Script) error {
	for _, stmt := range s {
		if err := c.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *call[T]) exec(ctx context.Context, stmt string) error {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()

	_, err := c.sess.exec().ExecContext(ctx, stmt)
	return err
}

func (c *call[T]) query(ctx context.Context, stmt string) ([]any, error) {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()

	rows, err := c.sess.exec().QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return readIdentities(rows)
}

func (c *call[T]) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.timeout > 0 {
		return context.WithTimeout(ctx, c.opts.timeout)
	}
	return ctx, func() {}
}

// value runs a column value through the converters and the dialect.
func (c *call[T]) value(rec *T, col schema.Column[T]) (any, error) {
	v, err := c.e.converters.Convert(col.Value(rec))
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", col.Name, err)
	}
	return c.e.backend.Dialect.CreateParameter(v), nil
}

func (c *call[T]) fail(state State, err error) error {
	return &Error{
		Op:        c.op,
		State:     state,
		Table:     c.table.String(),
		TempTable: c.target.TempTable,
		Err:       err,
	}
}

func (c *call[T]) log(state State) {
	c.e.logger.Debug().
		Str("op", string(c.op)).
		Str("table", c.table.String()).
		Str("temp_table", c.target.TempTable).
		Str("state", state.String()).
		Int("rows", len(c.records)).
		Msg("bulk state")
}

// record writes the audit entry of the call.
func (c *call[T]) record(ctx context.Context, started time.Time, err error) {
	if c.e.audit == nil {
		return
	}

	entry := audit.NewEntry(audit.Operation(c.op), audit.StatusSuccess).
		WithBackend(c.e.backend.Name).
		WithTable(c.table.String()).
		WithRecords(int64(len(c.records))).
		WithDuration(time.Since(started)).
		WithError(err)

	if c.target.TempTable != "" {
		entry.WithMetadata("temp_table", c.target.TempTable)
	}
	var be *Error
	if errors.As(err, &be) {
		entry.WithMetadata("state", be.State.String())
	}
	var mismatch *IdentityMismatchError
	if errors.As(err, &mismatch) {
		entry.Status = audit.StatusPartial
	}

	if lerr := c.e.audit.Log(context.WithoutCancel(ctx), entry); lerr != nil {
		c.e.logger.Warn().Err(lerr).Msg("failed to write audit entry")
	}
}

// recordRows exposes the staged columns of the records to a bulk writer.
type recordRows[T any] struct {
	c *call[T]
}

func (r recordRows[T]) Len() int { return len(r.c.records) }

func (r recordRows[T]) Row(i int, dst []any) error {
	rec := &r.c.records[i]
	for j, col := range r.c.columns {
		v, err := r.c.value(rec, col)
		if err != nil {
			return err
		}
		dst[j] = v
	}
	return nil
}
