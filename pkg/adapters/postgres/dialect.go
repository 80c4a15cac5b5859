package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	"github.com/ruslano69/bulkmerge/pkg/adapters/base"
)

const (
	// DefaultSchema is used when a record type declares no schema.
	DefaultSchema = "public"

	// MaxIdentifierLength is NAMEDATALEN - 1.
	MaxIdentifierLength = 63
)

// Dialect renders PostgreSQL statements (10 and later).
type Dialect struct {
	q *base.SQLAdapter
}

// NewDialect creates the PostgreSQL dialect.
func NewDialect() *Dialect {
	return &Dialect{q: base.NewStandardSQLAdapter(`"`)}
}

func (d *Dialect) Name() string { return AdapterType }

func (d *Dialect) DefaultSchema() string { return DefaultSchema }

func (d *Dialect) MaxIdentifierLength() int { return MaxIdentifierLength }

func (d *Dialect) FindPrimaryKeysQuery(table adapters.TableRef) string {
	return fmt.Sprintf(`SELECT a.attname
FROM pg_catalog.pg_index i
INNER JOIN pg_catalog.pg_attribute a
    ON a.attrelid = i.indrelid
   AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = %s::regclass
  AND i.indisprimary
ORDER BY array_position(i.indkey::int2[], a.attnum)`, d.regclass(table))
}

// FindIdentityQuery matches both IDENTITY columns and serial columns
// backed by a nextval() default.
func (d *Dialect) FindIdentityQuery(table adapters.TableRef) string {
	return fmt.Sprintf(`SELECT a.attname, format_type(a.atttypid, a.atttypmod)
FROM pg_catalog.pg_attribute a
LEFT JOIN pg_catalog.pg_attrdef ad
    ON ad.adrelid = a.attrelid
   AND ad.adnum = a.attnum
WHERE a.attrelid = %s::regclass
  AND a.attnum > 0
  AND NOT a.attisdropped
  AND (a.attidentity IN ('a', 'd') OR pg_get_expr(ad.adbin, ad.adrelid) LIKE 'nextval(%%')
ORDER BY a.attnum`, d.regclass(table))
}

func (d *Dialect) CreateTempTableQuery(temp string, source adapters.TableRef, columns []string) adapters.Script {
	return adapters.Script{fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT %s FROM %s WHERE 1 = 0",
		d.q.QuoteIdentifier(temp), d.q.QuoteList("", columns), d.q.QuoteTable(d.qualified(source)))}
}

func (d *Dialect) AlterIdentityColumnQuery(temp string, id adapters.Identity) adapters.Script {
	col := d.q.QuoteIdentifier(id.Column)
	return adapters.Script{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s, ADD COLUMN %s %s",
		d.q.QuoteIdentifier(temp), col, col, id.Type)}
}

func (d *Dialect) InsertQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	return adapters.Script{d.insert(columns, mc)}
}

func (d *Dialect) UpdateQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	return adapters.Script{fmt.Sprintf("UPDATE %s AS T\nSET %s\nFROM %s AS S\nWHERE %s",
		d.q.QuoteTable(d.qualified(mc.Table)),
		d.q.SetList("", "S", d.updatable(columns, mc), mc.PrimaryKeys),
		d.q.QuoteIdentifier(mc.TempTable),
		d.q.KeyMatch("T", "S", mc.PrimaryKeys))}
}

// UpsertQuery updates matched rows, removes them from the staging table and
// inserts whatever is left. Without updatable columns the matched rows are
// only removed.
func (d *Dialect) UpsertQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	table := d.q.QuoteTable(d.qualified(mc.Table))
	temp := d.q.QuoteIdentifier(mc.TempTable)
	set := d.q.SetList("", "S", d.updatable(columns, mc), mc.PrimaryKeys)

	var reconcile string
	if set == "" {
		reconcile = fmt.Sprintf("DELETE FROM %s AS S\nUSING %s AS T\nWHERE %s",
			temp, table, d.q.KeyMatch("S", "T", mc.PrimaryKeys))
	} else {
		reconcile = fmt.Sprintf(`WITH "updated" AS (
    UPDATE %s AS T
    SET %s
    FROM %s AS S
    WHERE %s
    RETURNING %s
)
DELETE FROM %s AS S
USING "updated" AS U
WHERE %s`,
			table, set, temp,
			d.q.KeyMatch("T", "S", mc.PrimaryKeys),
			d.q.QuoteList("T", mc.PrimaryKeys),
			temp,
			d.q.KeyMatch("S", "U", mc.PrimaryKeys))
	}

	return adapters.Script{reconcile, d.insert(columns, mc)}
}

func (d *Dialect) DeleteQuery(mc adapters.MergeTarget) adapters.Script {
	return adapters.Script{fmt.Sprintf("DELETE FROM %s AS T\nUSING %s AS S\nWHERE %s",
		d.q.QuoteTable(d.qualified(mc.Table)),
		d.q.QuoteIdentifier(mc.TempTable),
		d.q.KeyMatch("T", "S", mc.PrimaryKeys))}
}

func (d *Dialect) DropTempTableQuery(temp string) adapters.Script {
	return adapters.Script{"DROP TABLE IF EXISTS " + d.q.QuoteIdentifier(temp)}
}

func (d *Dialect) TempTableName(target string) string {
	return base.GenerateTempTableName("", target, MaxIdentifierLength)
}

// CreateParameter maps UUIDs to pgtype.UUID so COPY sends them in binary.
func (d *Dialect) CreateParameter(value any) any {
	switch v := value.(type) {
	case uuid.UUID:
		return pgtype.UUID{Bytes: v, Valid: true}
	case *uuid.UUID:
		if v == nil {
			return nil
		}
		return pgtype.UUID{Bytes: *v, Valid: true}
	case uuid.NullUUID:
		return pgtype.UUID{Bytes: v.UUID, Valid: v.Valid}
	}
	return base.DriverValue(value)
}

// insert copies staged rows, leaving generated keys to the server.
func (d *Dialect) insert(columns []string, mc adapters.MergeTarget) string {
	cols := d.updatable(columns, mc)
	stmt := fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s FROM %s",
		d.q.QuoteTable(d.qualified(mc.Table)),
		d.q.QuoteList("", cols), d.q.QuoteList("", cols),
		d.q.QuoteIdentifier(mc.TempTable))
	if mc.Identity != nil {
		stmt += "\nRETURNING " + d.q.QuoteIdentifier(mc.Identity.Column)
	}
	return stmt
}

func (d *Dialect) updatable(columns []string, mc adapters.MergeTarget) []string {
	if mc.Identity == nil {
		return columns
	}
	return base.Without(columns, []string{mc.Identity.Column})
}

func (d *Dialect) regclass(t adapters.TableRef) string {
	return base.QuoteLiteral(d.q.QuoteTable(d.qualified(t)))
}

func (d *Dialect) qualified(t adapters.TableRef) adapters.TableRef {
	if t.Schema == "" {
		return adapters.TableRef{Schema: DefaultSchema, Name: t.Name}
	}
	return t
}

var _ adapters.Dialect = (*Dialect)(nil)
