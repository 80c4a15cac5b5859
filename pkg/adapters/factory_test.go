package adapters_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
	_ "github.com/ruslano69/bulkmerge/pkg/adapters/mssql"
	_ "github.com/ruslano69/bulkmerge/pkg/adapters/mysql"
	_ "github.com/ruslano69/bulkmerge/pkg/adapters/postgres"
)

type nopWriter struct{}

func (nopWriter) Write(context.Context, adapters.WriteRequest) error { return nil }

func TestFactory_BuiltinBackends(t *testing.T) {
	for _, name := range []string{"mssql", "mysql", "postgres"} {
		backend, err := adapters.New(name)
		if err != nil {
			t.Fatalf("Failed to create %s backend: %v", name, err)
		}
		if backend.Name != name {
			t.Errorf("Expected backend name %s, got %s", name, backend.Name)
		}
		if backend.Dialect.Name() != name {
			t.Errorf("Expected dialect name %s, got %s", name, backend.Dialect.Name())
		}
	}

	types := adapters.GetRegisteredTypes()
	if strings.Join(types, ",") != "mssql,mysql,postgres" {
		t.Errorf("Unexpected registered types: %v", types)
	}
}

func TestFactory_UnknownType(t *testing.T) {
	_, err := adapters.New("oracle")
	if err == nil {
		t.Fatal("Expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "unknown database type") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestFactory_InvalidBackend(t *testing.T) {
	f := adapters.NewFactory()
	f.Register("half", func() adapters.Backend {
		return adapters.Backend{Name: "half", Writer: nopWriter{}}
	})

	if !f.IsRegistered("half") {
		t.Fatal("Expected half to be registered")
	}
	if _, err := f.Create("half"); err == nil || !strings.Contains(err.Error(), "no dialect") {
		t.Errorf("Expected missing dialect error, got %v", err)
	}

	f.Unregister("half")
	if f.IsRegistered("half") {
		t.Error("Expected half to be unregistered")
	}
}

func TestFactory_MustNewPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected MustNew to panic")
		}
	}()
	adapters.MustNew("oracle")
}

func TestBatches(t *testing.T) {
	tests := []struct {
		n, size int
		want    string
	}{
		{0, 10, ""},
		{5, 0, "[0 5]"},
		{5, 10, "[0 5]"},
		{5, 2, "[0 2][2 4][4 5]"},
	}

	for _, tt := range tests {
		var b strings.Builder
		for _, r := range adapters.Batches(tt.n, tt.size) {
			fmt.Fprint(&b, r)
		}
		if b.String() != tt.want {
			t.Errorf("Batches(%d, %d) = %s, want %s", tt.n, tt.size, b.String(), tt.want)
		}
	}
}

func TestMergeTarget_IdentityIn(t *testing.T) {
	mc := adapters.MergeTarget{Identity: &adapters.Identity{Column: "id", Type: "int"}}

	if col, ok := mc.IdentityIn([]string{"Name", "Id"}); !ok || col != "Id" {
		t.Errorf("Expected staged name Id, got %q %v", col, ok)
	}
	if _, ok := mc.IdentityIn([]string{"Name"}); ok {
		t.Error("Identity must not be found among unrelated columns")
	}
	if _, ok := (adapters.MergeTarget{}).IdentityIn([]string{"Id"}); ok {
		t.Error("No identity must never match")
	}
}

func TestWriteError(t *testing.T) {
	cause := errors.New("invalid column name 'fullname'")
	err := error(&adapters.WriteError{Backend: "mssql", Table: "#tmp", Err: cause, Hint: adapters.ColumnCaseHint})

	if !errors.Is(err, cause) {
		t.Error("WriteError must unwrap to the driver error")
	}
	if !strings.Contains(err.Error(), "hint:") {
		t.Errorf("Expected hint in message: %s", err)
	}
}
