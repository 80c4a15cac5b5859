package schema

import (
	"errors"
	"strings"
	"testing"
)

type person struct {
	ID       int64
	FullName string
	Nick     string
	Secret   string
}

func (person) BulkSchema(b *Builder[person]) {
	b.Table("Person").
		Schema("dbo").
		KeyIdentity("Id", ZeroIdentity(func(p *person) *int64 { return &p.ID })).
		Column("FullName", func(p *person) any { return p.FullName }).
		Column("Nick", func(p *person) any { return p.Nick }).
		Ignore("Secret")
}

type unnamedTable struct {
	Code string
}

func (unnamedTable) BulkSchema(b *Builder[unnamedTable]) {
	b.Key("Code", func(u *unnamedTable) any { return u.Code })
}

func TestBuilder_Describe(t *testing.T) {
	s, err := Describe[person]()
	if err != nil {
		t.Fatalf("Failed to describe person: %v", err)
	}

	if s.Table() != "Person" {
		t.Errorf("Expected table 'Person', got '%s'", s.Table())
	}
	if s.SchemaName() != "dbo" {
		t.Errorf("Expected schema 'dbo', got '%s'", s.SchemaName())
	}

	names := s.ColumnNames()
	if strings.Join(names, ",") != "Id,FullName,Nick" {
		t.Errorf("Unexpected column order: %v", names)
	}

	keys := s.PrimaryKeys()
	if len(keys) != 1 || keys[0] != "Id" {
		t.Errorf("Expected primary keys [Id], got %v", keys)
	}

	if ignored := s.Ignored(); len(ignored) != 1 || ignored[0] != "Secret" {
		t.Errorf("Expected ignored [Secret], got %v", ignored)
	}
}

func TestBuilder_TableFallsBackToTypeName(t *testing.T) {
	s, err := Describe[unnamedTable]()
	if err != nil {
		t.Fatalf("Failed to describe: %v", err)
	}
	if s.Table() != "unnamedTable" {
		t.Errorf("Expected type name as table, got '%s'", s.Table())
	}
}

func TestSchema_LookupIgnoresCase(t *testing.T) {
	s, err := Describe[person]()
	if err != nil {
		t.Fatalf("Failed to describe person: %v", err)
	}

	c, ok := s.Lookup("fullname")
	if !ok {
		t.Fatal("Expected lookup of 'fullname' to succeed")
	}
	if c.Name != "FullName" {
		t.Errorf("Expected verbatim name 'FullName', got '%s'", c.Name)
	}

	if _, ok := s.Lookup("Secret"); ok {
		t.Error("Ignored column must not be resolvable")
	}

	id, _ := s.Lookup("ID")
	if id.Identity() == nil {
		t.Error("Expected Id to carry an identity accessor")
	}
}

func TestColumn_Value(t *testing.T) {
	s, err := Describe[person]()
	if err != nil {
		t.Fatalf("Failed to describe person: %v", err)
	}

	p := person{ID: 7, FullName: "Ada Lovelace"}
	cols := s.Columns()

	if v := cols[0].Value(&p); v != int64(7) {
		t.Errorf("Expected identity value 7, got %v", v)
	}
	if v := cols[1].Value(&p); v != "Ada Lovelace" {
		t.Errorf("Expected 'Ada Lovelace', got %v", v)
	}

	p.ID = 0
	if v := cols[0].Value(&p); v != nil {
		t.Errorf("Unset identity must stage as NULL, got %v", v)
	}
}

func TestBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		build   func() error
		message string
	}{
		{
			name: "no columns",
			build: func() error {
				_, err := NewBuilder[person]().Table("Person").Build()
				return err
			},
			message: "at least one column",
		},
		{
			name: "duplicate names ignore case",
			build: func() error {
				_, err := NewBuilder[person]().
					Column("Nick", func(p *person) any { return p.Nick }).
					Column("NICK", func(p *person) any { return p.Nick }).
					Build()
				return err
			},
			message: "duplicate column name",
		},
		{
			name: "nil accessor",
			build: func() error {
				_, err := NewBuilder[person]().Column("Nick", nil).Build()
				return err
			},
			message: "accessor is nil",
		},
		{
			name: "declared and ignored",
			build: func() error {
				_, err := NewBuilder[person]().
					Column("Nick", func(p *person) any { return p.Nick }).
					Ignore("nick").
					Build()
				return err
			},
			message: "both declared and ignored",
		},
		{
			name: "two identities",
			build: func() error {
				_, err := NewBuilder[person]().
					Identity("A", ZeroIdentity(func(p *person) *int64 { return &p.ID })).
					Identity("B", ZeroIdentity(func(p *person) *int64 { return &p.ID })).
					Build()
				return err
			},
			message: "more than one identity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected error containing %q, got %v", tt.message, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestBuilder_Reset(t *testing.T) {
	b := NewBuilder[person]().
		Table("Person").
		Key("Nick", func(p *person) any { return p.Nick })

	if !b.HasKeyField() || b.FieldCount() != 1 {
		t.Fatalf("Unexpected builder state: keys=%v count=%d", b.HasKeyField(), b.FieldCount())
	}

	b.Reset()
	if b.HasKeyField() || b.FieldCount() != 0 {
		t.Error("Reset must clear all declarations")
	}
}
