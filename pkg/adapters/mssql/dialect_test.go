package mssql

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

func personTarget(identity bool) adapters.MergeTarget {
	mc := adapters.MergeTarget{
		Table:       adapters.TableRef{Name: "Person"},
		TempTable:   "#Person_0000000000001",
		PrimaryKeys: []string{"Id"},
	}
	if identity {
		mc.Identity = &adapters.Identity{Column: "Id", Type: "bigint"}
	}
	return mc
}

func TestDialect_Basics(t *testing.T) {
	d := NewDialect()

	if d.Name() != "mssql" {
		t.Errorf("Unexpected name %q", d.Name())
	}
	if d.DefaultSchema() != "dbo" {
		t.Errorf("Unexpected default schema %q", d.DefaultSchema())
	}
	if d.MaxIdentifierLength() != 116 {
		t.Errorf("Unexpected identifier limit %d", d.MaxIdentifierLength())
	}
}

func TestDialect_CatalogQueriesEscapeLiterals(t *testing.T) {
	d := NewDialect()
	table := adapters.TableRef{Name: "O'Brien"}

	for _, q := range []string{d.FindPrimaryKeysQuery(table), d.FindIdentityQuery(table)} {
		if !strings.Contains(q, "'O''Brien'") {
			t.Errorf("Table literal not escaped:\n%s", q)
		}
		if !strings.Contains(q, "'dbo'") {
			t.Errorf("Default schema not applied:\n%s", q)
		}
	}

	if !strings.Contains(d.FindIdentityQuery(table), "'IsIdentity'") {
		t.Error("Identity query must use COLUMNPROPERTY IsIdentity")
	}
}

func TestDialect_CreateTempTable(t *testing.T) {
	d := NewDialect()

	got := d.CreateTempTableQuery("#p_1", adapters.TableRef{Schema: "sales", Name: "Person"}, []string{"Id", "FullName"})
	want := "SELECT [Id],[FullName] INTO [#p_1] FROM [sales].[Person] WITH(READUNCOMMITTED) WHERE 1 = 0"
	if len(got) != 1 || got[0] != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestDialect_AlterIdentityColumn(t *testing.T) {
	d := NewDialect()

	script := d.AlterIdentityColumnQuery("#p_1", adapters.Identity{Column: "Id", Type: "decimal(18,0)"})
	if len(script) != 1 {
		t.Fatalf("Expected a single batch, got %d statements", len(script))
	}

	lines := strings.Split(script[0], "\n")
	want := []string{
		"ALTER TABLE [#p_1] ADD [_bulk_swap_Id] BIT;",
		"ALTER TABLE [#p_1] DROP COLUMN [Id];",
		"ALTER TABLE [#p_1] ADD [Id] decimal(18,0);",
		"ALTER TABLE [#p_1] DROP COLUMN [_bulk_swap_Id];",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("Line %d: expected %q, got %q", i, w, lines[i])
		}
	}
}

func TestDialect_InsertQuery(t *testing.T) {
	d := NewDialect()
	cols := []string{"Id", "FullName"}

	plain := d.InsertQuery(cols, personTarget(false)).String()
	if strings.Contains(plain, "OUTPUT") {
		t.Errorf("Insert without identity must not return keys:\n%s", plain)
	}
	if !strings.Contains(plain, "INSERT INTO [dbo].[Person] ([Id],[FullName])") {
		t.Errorf("Unexpected insert:\n%s", plain)
	}

	withID := d.InsertQuery(cols, personTarget(true)).String()
	for _, part := range []string{
		"DECLARE @Id TABLE ([Id] bigint);",
		"INSERT INTO [dbo].[Person] ([FullName])",
		"OUTPUT inserted.[Id] INTO @Id ([Id])",
		"SELECT [FullName] FROM [#Person_0000000000001];",
		"SELECT [Id] FROM @Id ORDER BY [Id] ASC;",
	} {
		if !strings.Contains(withID, part) {
			t.Errorf("Missing %q in:\n%s", part, withID)
		}
	}
}

func TestDialect_UpsertQuery(t *testing.T) {
	d := NewDialect()

	script := d.UpsertQuery([]string{"Id", "FullName"}, personTarget(true))
	if len(script) != 1 {
		t.Fatalf("Expected one batch, got %d", len(script))
	}
	q := script[0]
	for _, part := range []string{
		"DECLARE @Id TABLE ([Action] VARCHAR(20), [Id] bigint);",
		"ON (T.[Id] = S.[Id])",
		"WHEN NOT MATCHED THEN INSERT ([FullName]) VALUES (S.[FullName])",
		"WHEN MATCHED THEN UPDATE SET T.[FullName] = S.[FullName]",
		"OUTPUT $action, inserted.[Id] INTO @Id ([Action], [Id]);",
		"WHERE [Action] = 'INSERT' ORDER BY [Id] ASC",
	} {
		if !strings.Contains(q, part) {
			t.Errorf("Missing %q in:\n%s", part, q)
		}
	}

	keysOnly := d.UpsertQuery([]string{"Code"}, adapters.MergeTarget{
		Table: adapters.TableRef{Name: "Tag"}, TempTable: "#t", PrimaryKeys: []string{"Code"},
	})[0]
	if strings.Contains(keysOnly, "WHEN MATCHED") {
		t.Errorf("Empty SET list must omit WHEN MATCHED:\n%s", keysOnly)
	}
	if !strings.HasSuffix(keysOnly, ";") {
		t.Errorf("MERGE must be terminated:\n%s", keysOnly)
	}
}

func TestDialect_UpdateAndDelete(t *testing.T) {
	d := NewDialect()
	mc := adapters.MergeTarget{
		Table:       adapters.TableRef{Name: "Stock"},
		TempTable:   "#s",
		PrimaryKeys: []string{"Sku", "Store"},
	}

	update := d.UpdateQuery([]string{"Sku", "Store", "Qty"}, mc).String()
	if !strings.Contains(update, "ON (T.[Sku] = S.[Sku] AND T.[Store] = S.[Store])") {
		t.Errorf("Composite key match missing:\n%s", update)
	}
	if !strings.Contains(update, "UPDATE SET T.[Qty] = S.[Qty];") {
		t.Errorf("Keys must not be assigned:\n%s", update)
	}

	del := d.DeleteQuery(mc).String()
	if !strings.Contains(del, "WHEN MATCHED THEN DELETE;") {
		t.Errorf("Unexpected delete:\n%s", del)
	}
}

func TestDialect_DropTempTable(t *testing.T) {
	got := NewDialect().DropTempTableQuery("#p_1").String()
	want := "IF OBJECT_ID('tempdb..#p_1') IS NOT NULL DROP TABLE [#p_1]"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestDialect_TempTableName(t *testing.T) {
	d := NewDialect()
	name := d.TempTableName(strings.Repeat("Customer", 30))

	if !strings.HasPrefix(name, "#Customer") {
		t.Errorf("Unexpected temp name %q", name)
	}
	if len(name) > MaxTempNameLength {
		t.Errorf("Temp name %q is %d bytes long", name, len(name))
	}
	if d.TempTableName("Person") == d.TempTableName("Person") {
		t.Error("Temp names must be unique")
	}
}

func TestDialect_CreateParameter(t *testing.T) {
	d := NewDialect()
	id := uuid.MustParse("01020304-0506-0708-090a-0b0c0d0e0f10")

	raw, ok := d.CreateParameter(id).([]byte)
	if !ok {
		t.Fatalf("Expected []byte for uuid, got %T", d.CreateParameter(id))
	}
	want := []byte{4, 3, 2, 1, 6, 5, 8, 7, 9, 10, 11, 12, 13, 14, 15, 16}
	if !bytes.Equal(raw, want) {
		t.Errorf("Expected %v, got %v", want, raw)
	}

	if d.CreateParameter(uuid.NullUUID{}) != nil {
		t.Error("Invalid NullUUID must be NULL")
	}
	var nilID *uuid.UUID
	if d.CreateParameter(nilID) != nil {
		t.Error("Nil uuid pointer must be NULL")
	}
	if d.CreateParameter(int32(7)) != int64(7) {
		t.Errorf("Expected int64, got %T", d.CreateParameter(int32(7)))
	}
}
