package mysql

import (
	"fmt"
	"strings"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	"github.com/ruslano69/bulkmerge/pkg/adapters/base"
)

// MaxIdentifierLength is the MySQL limit for table names.
const MaxIdentifierLength = 64

// Session variables carrying the generated key range between statements.
const (
	varNewRows = "@bulk_new_rows"
	varLastID  = "@bulk_last_id"
)

// Dialect renders MySQL 5.7+/8.0 statements. Every script element is a
// single statement, so the DSN does not need multiStatements=true.
type Dialect struct {
	q *base.SQLAdapter
}

// NewDialect creates the MySQL dialect.
func NewDialect() *Dialect {
	return &Dialect{q: base.NewStandardSQLAdapter("`")}
}

func (d *Dialect) Name() string { return AdapterType }

// DefaultSchema is empty: unqualified tables resolve against DATABASE().
func (d *Dialect) DefaultSchema() string { return "" }

func (d *Dialect) MaxIdentifierLength() int { return MaxIdentifierLength }

func (d *Dialect) FindPrimaryKeysQuery(table adapters.TableRef) string {
	return fmt.Sprintf(`SELECT COLUMN_NAME
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = %s
  AND TABLE_NAME = %s
  AND COLUMN_KEY = 'PRI'
ORDER BY ORDINAL_POSITION`, d.schemaExpr(table), quoteLiteral(table.Name))
}

func (d *Dialect) FindIdentityQuery(table adapters.TableRef) string {
	return fmt.Sprintf(`SELECT COLUMN_NAME, COLUMN_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = %s
  AND TABLE_NAME = %s
  AND EXTRA LIKE '%%auto_increment%%'`, d.schemaExpr(table), quoteLiteral(table.Name))
}

func (d *Dialect) CreateTempTableQuery(temp string, source adapters.TableRef, columns []string) adapters.Script {
	return adapters.Script{fmt.Sprintf("CREATE TEMPORARY TABLE IF NOT EXISTS %s AS (SELECT %s FROM %s WHERE 1=0)",
		d.q.QuoteIdentifier(temp), d.q.QuoteList("", columns), d.q.QuoteTable(source))}
}

// AlterIdentityColumnQuery re-creates the staged identity column as a plain
// nullable column in one statement, which also works when it is the only column.
func (d *Dialect) AlterIdentityColumnQuery(temp string, id adapters.Identity) adapters.Script {
	col := d.q.QuoteIdentifier(id.Column)
	return adapters.Script{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s, ADD COLUMN %s %s NULL",
		d.q.QuoteIdentifier(temp), col, col, id.Type)}
}

// InsertQuery leaves the identity out of the column list. With an identity
// the insert runs under LOCK TABLES so the generated keys form one range
// starting at LAST_INSERT_ID().
func (d *Dialect) InsertQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	cols := columns
	if mc.Identity != nil {
		cols = base.Without(columns, []string{mc.Identity.Column})
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s FROM %s",
		d.q.QuoteTable(mc.Table), d.q.QuoteList("", cols), d.q.QuoteList("", cols), d.q.QuoteIdentifier(mc.TempTable))

	if mc.Identity == nil {
		return adapters.Script{insert}
	}
	return d.withKeyRange(mc, fmt.Sprintf("SET %s = (SELECT COUNT(*) FROM %s)", varNewRows, d.q.QuoteIdentifier(mc.TempTable)), insert)
}

func (d *Dialect) UpdateQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	return adapters.Script{fmt.Sprintf("UPDATE %s AS T\nINNER JOIN %s AS S ON (%s)\nSET %s",
		d.q.QuoteTable(mc.Table),
		d.q.QuoteIdentifier(mc.TempTable),
		d.q.KeyMatch("T", "S", mc.PrimaryKeys),
		d.q.SetList("T", "S", d.updatable(columns, mc), mc.PrimaryKeys))}
}

// UpsertQuery uses INSERT ... ON DUPLICATE KEY UPDATE. The identity stays in
// the column list so staged keys can collide; NULL or 0 makes MySQL generate one.
func (d *Dialect) UpsertQuery(columns []string, mc adapters.MergeTarget) adapters.Script {
	temp := d.q.QuoteIdentifier(mc.TempTable)

	set := d.q.SetList("", temp, d.updatable(columns, mc), mc.PrimaryKeys)
	if set == "" && len(mc.PrimaryKeys) > 0 {
		k := d.q.QuoteIdentifier(mc.PrimaryKeys[0])
		set = k + " = " + k
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s FROM %s\nON DUPLICATE KEY UPDATE %s",
		d.q.QuoteTable(mc.Table), d.q.QuoteList("", columns), d.q.QuoteList("", columns), temp, set)

	if mc.Identity == nil {
		return adapters.Script{insert}
	}

	count := fmt.Sprintf("SET %s = 0", varNewRows)
	if col, ok := mc.IdentityIn(columns); ok {
		id := d.q.QuoteIdentifier(col)
		count = fmt.Sprintf("SET %s = (SELECT COUNT(*) FROM %s WHERE %s IS NULL OR %s = 0)", varNewRows, temp, id, id)
	}
	return d.withKeyRange(mc, count, insert)
}

func (d *Dialect) DeleteQuery(mc adapters.MergeTarget) adapters.Script {
	return adapters.Script{fmt.Sprintf("DELETE T FROM %s AS T\nINNER JOIN %s AS S ON (%s)",
		d.q.QuoteTable(mc.Table),
		d.q.QuoteIdentifier(mc.TempTable),
		d.q.KeyMatch("T", "S", mc.PrimaryKeys))}
}

// DropTempTableQuery also releases table locks left by a failed script.
func (d *Dialect) DropTempTableQuery(temp string) adapters.Script {
	return adapters.Script{
		"UNLOCK TABLES",
		"DROP TEMPORARY TABLE IF EXISTS " + d.q.QuoteIdentifier(temp),
	}
}

func (d *Dialect) TempTableName(target string) string {
	return base.GenerateTempTableName("", target, MaxIdentifierLength)
}

// CreateParameter resolves driver.Valuer values; UUIDs become their text form.
func (d *Dialect) CreateParameter(value any) any {
	return base.DriverValue(value)
}

func (d *Dialect) withKeyRange(mc adapters.MergeTarget, count, statement string) adapters.Script {
	id := d.q.QuoteIdentifier(mc.Identity.Column)
	return adapters.Script{
		fmt.Sprintf("LOCK TABLES %s WRITE, %s READ", d.q.QuoteTable(mc.Table), d.q.QuoteIdentifier(mc.TempTable)),
		count,
		statement,
		fmt.Sprintf("SET %s = LAST_INSERT_ID()", varLastID),
		"UNLOCK TABLES",
		fmt.Sprintf("SELECT %s FROM %s WHERE %s BETWEEN %s AND %s + %s - 1 ORDER BY %s ASC",
			id, d.q.QuoteTable(mc.Table), id, varLastID, varLastID, varNewRows, id),
	}
}

func (d *Dialect) updatable(columns []string, mc adapters.MergeTarget) []string {
	if mc.Identity == nil {
		return columns
	}
	return base.Without(columns, []string{mc.Identity.Column})
}

func (d *Dialect) schemaExpr(t adapters.TableRef) string {
	if t.Schema == "" {
		return "DATABASE()"
	}
	return quoteLiteral(t.Schema)
}

// quoteLiteral also escapes backslashes, which MySQL treats as escapes
// unless NO_BACKSLASH_ESCAPES is set.
func quoteLiteral(s string) string {
	return base.QuoteLiteral(strings.ReplaceAll(s, `\`, `\\`))
}

var _ adapters.Dialect = (*Dialect)(nil)
