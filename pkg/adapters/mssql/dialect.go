package mssql

import (
	"fmt"
	"strings"

	mssqldb "github.com/denisenkom/go-mssqldb"
	"github.com/google/uuid"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	"github.com/ruslano69/bulkmerge/pkg/adapters/base"
)

const (
	// DefaultSchema is used when a record type declares no schema.
	DefaultSchema = "dbo"

	// MaxTempNameLength is the longest local temp table name SQL Server accepts.
	MaxTempNameLength = 116

	tempPrefix = "#"
	swapPrefix = "_bulk_swap_"
)

// Dialect renders T-SQL for SQL Server 2012 and later.
type Dialect struct {
	q *base.SQLAdapter
}

// NewDialect creates the SQL Server dialect.
func NewDialect() *Dialect {
	return &Dialect{q: base.NewMSSQLAdapter()}
}

func (d *Dialect) Name() string { return AdapterType }

func (d *Dialect) DefaultSchema() string { return DefaultSchema }

func (d *Dialect) MaxIdentifierLength() int { return MaxTempNameLength }

func (d *Dialect) FindPrimaryKeysQuery(table adapters.TableRef) string {
	return fmt.Sprintf(`SELECT kcu.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
INNER JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
    ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
   AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
   AND tc.TABLE_NAME = kcu.TABLE_NAME
WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
  AND tc.TABLE_SCHEMA = %s
  AND tc.TABLE_NAME = %s
ORDER BY kcu.ORDINAL_POSITION`,
		base.QuoteLiteral(d.schemaOf(table)), base.QuoteLiteral(table.Name))
}

// FindIdentityQuery reports the declared type with precision and scale
// for decimal identities, so the staging column can be re-added verbatim.
func (d *Dialect) FindIdentityQuery(table adapters.TableRef) string {
	return fmt.Sprintf(`SELECT c.COLUMN_NAME,
    CASE WHEN c.DATA_TYPE IN ('decimal', 'numeric')
         THEN c.DATA_TYPE + '(' + CAST(c.NUMERIC_PRECISION AS VARCHAR(10)) + ',' + CAST(c.NUMERIC_SCALE AS VARCHAR(10)) + ')'
         ELSE c.DATA_TYPE END
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_SCHEMA = %s
  AND c.TABLE_NAME = %s
  AND COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity') = 1`,
		base.QuoteLiteral(d.schemaOf(table)), base.QuoteLiteral(table.Name))
}

func (d *Dialect) CreateTempTableQuery(temp string, source adapters.TableRef, columns []string) adapters.Script {
	return adapters.Script{fmt.Sprintf("SELECT %s INTO %s FROM %s WITH(READUNCOMMITTED) WHERE 1 = 0",
		d.q.QuoteList("", columns), d.q.QuoteIdentifier(temp), d.q.QuoteTable(d.qualified(source)))}
}

// AlterIdentityColumnQuery replaces the IDENTITY column copied by SELECT INTO
// with a plain one. The swap column keeps the table non-empty when the
// identity is its only column.
func (d *Dialect) AlterIdentityColumnQuery(temp string, id adapters.Identity) adapters.Script {
	t := d.q.QuoteIdentifier(temp)
	col := d.q.QuoteIdentifier(id.Column)
	swap := d.q.QuoteIdentifier(swapPrefix + id.Column)

	return adapters.Script{fmt.Sprintf(`ALTER TABLE %[1]s ADD %[2]s BIT;
ALTER TABLE %[1]s DROP COLUMN %[3]s;
ALTER TABLE %[1]s ADD %[3]s %[4]s;
ALTER TABLE %[1]s DROP COLUMN %[2]s;`, t, swap, col, id.Type)}
}

func (d *Dialect) InsertQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	cols := d.insertColumns(columns, mc)
	table := d.q.QuoteTable(d.qualified(mc.Table))
	temp := d.q.QuoteIdentifier(mc.TempTable)

	if mc.Identity == nil {
		return adapters.Script{fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s FROM %s;",
			table, d.q.QuoteList("", cols), d.q.QuoteList("", cols), temp)}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "DECLARE @Id TABLE ([Id] %s);\n", mc.Identity.Type)
	fmt.Fprintf(&sb, "INSERT INTO %s (%s)\n", table, d.q.QuoteList("", cols))
	fmt.Fprintf(&sb, "OUTPUT inserted.%s INTO @Id ([Id])\n", d.q.QuoteIdentifier(mc.Identity.Column))
	fmt.Fprintf(&sb, "SELECT %s FROM %s;\n", d.q.QuoteList("", cols), temp)
	sb.WriteString("SELECT [Id] FROM @Id ORDER BY [Id] ASC;")
	return adapters.Script{sb.String()}
}

func (d *Dialect) UpdateQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	return adapters.Script{fmt.Sprintf(`MERGE %s AS T
USING %s AS S
ON (%s)
WHEN MATCHED THEN UPDATE SET %s;`,
		d.q.QuoteTable(d.qualified(mc.Table)),
		d.q.QuoteIdentifier(mc.TempTable),
		d.q.KeyMatch("T", "S", mc.PrimaryKeys),
		d.q.SetList("T", "S", d.insertColumns(columns, mc), mc.PrimaryKeys))}
}

// UpsertQuery renders one MERGE. When every staged column is a key the
// WHEN MATCHED branch is omitted, since T-SQL rejects an empty SET list.
func (d *Dialect) UpsertQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	cols := d.insertColumns(columns, mc)
	set := d.q.SetList("T", "S", cols, mc.PrimaryKeys)

	var sb strings.Builder
	if mc.Identity != nil {
		fmt.Fprintf(&sb, "DECLARE @Id TABLE ([Action] VARCHAR(20), [Id] %s);\n", mc.Identity.Type)
	}
	fmt.Fprintf(&sb, "MERGE %s AS T\n", d.q.QuoteTable(d.qualified(mc.Table)))
	fmt.Fprintf(&sb, "USING %s AS S\n", d.q.QuoteIdentifier(mc.TempTable))
	fmt.Fprintf(&sb, "ON (%s)\n", d.q.KeyMatch("T", "S", mc.PrimaryKeys))
	fmt.Fprintf(&sb, "WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		d.q.QuoteList("", cols), d.q.QuoteList("S", cols))
	if set != "" {
		fmt.Fprintf(&sb, "\nWHEN MATCHED THEN UPDATE SET %s", set)
	}
	if mc.Identity == nil {
		sb.WriteString(";")
		return adapters.Script{sb.String()}
	}
	fmt.Fprintf(&sb, "\nOUTPUT $action, inserted.%s INTO @Id ([Action], [Id]);\n",
		d.q.QuoteIdentifier(mc.Identity.Column))
	sb.WriteString("SELECT [Id] FROM @Id WHERE [Action] = 'INSERT' ORDER BY [Id] ASC;")
	return adapters.Script{sb.String()}
}

func (d *Dialect) DeleteQuery(mc adapters.MergeTarget) adapters.Script {
	return adapters.Script{fmt.Sprintf(`MERGE %s AS T
USING %s AS S
ON (%s)
WHEN MATCHED THEN DELETE;`,
		d.q.QuoteTable(d.qualified(mc.Table)),
		d.q.QuoteIdentifier(mc.TempTable),
		d.q.KeyMatch("T", "S", mc.PrimaryKeys))}
}

func (d *Dialect) DropTempTableQuery(temp string) adapters.Script {
	return adapters.Script{fmt.Sprintf("IF OBJECT_ID(%s) IS NOT NULL DROP TABLE %s",
		base.QuoteLiteral("tempdb.."+temp), d.q.QuoteIdentifier(temp))}
}

func (d *Dialect) TempTableName(target string) string {
	return base.GenerateTempTableName(tempPrefix, target, MaxTempNameLength)
}

// CreateParameter converts UUIDs to the mixed-endian byte layout the bulk
// protocol expects for uniqueidentifier columns.
func (d *Dialect) CreateParameter(value any) any {
	switch v := value.(type) {
	case uuid.UUID:
		return uniqueIdentifier(v)
	case *uuid.UUID:
		if v == nil {
			return nil
		}
		return uniqueIdentifier(*v)
	case uuid.NullUUID:
		if !v.Valid {
			return nil
		}
		return uniqueIdentifier(v.UUID)
	}
	return base.DriverValue(value)
}

func uniqueIdentifier(u uuid.UUID) any {
	raw, _ := mssqldb.UniqueIdentifier(u).Value()
	return raw
}

// insertColumns drops the identity column; SQL Server generates it.
func (d *Dialect) insertColumns(columns []string, mc adapters.MergeTarget) []string {
	if mc.Identity == nil {
		return columns
	}
	return base.Without(columns, []string{mc.Identity.Column})
}

func (d *Dialect) schemaOf(t adapters.TableRef) string {
	if t.Schema == "" {
		return DefaultSchema
	}
	return t.Schema
}

func (d *Dialect) qualified(t adapters.TableRef) adapters.TableRef {
	return adapters.TableRef{Schema: d.schemaOf(t), Name: t.Name}
}

var _ adapters.Dialect = (*Dialect)(nil)
