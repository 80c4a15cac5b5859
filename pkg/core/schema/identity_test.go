package schema

import (
	"testing"
)

type widget struct {
	ID    uint32
	RefID *int16
}

func TestZeroIdentity(t *testing.T) {
	id := ZeroIdentity(func(w *widget) *uint32 { return &w.ID })

	var w widget
	if id.Kind() != IdentityZero {
		t.Errorf("Expected kind zero, got %s", id.Kind())
	}
	if !id.Unset(&w) {
		t.Fatal("Zero value must be unset")
	}

	if err := id.Assign(&w, int64(42)); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if w.ID != 42 || id.Unset(&w) {
		t.Errorf("Expected ID 42, got %d", w.ID)
	}
	if v := id.Value(&w); v != uint64(42) {
		t.Errorf("Expected widened uint64(42), got %#v", v)
	}
}

func TestNullableIdentity(t *testing.T) {
	id := NullableIdentity(func(w *widget) **int16 { return &w.RefID })

	var w widget
	if id.Kind() != IdentityNullable {
		t.Errorf("Expected kind nullable, got %s", id.Kind())
	}
	if !id.Unset(&w) {
		t.Fatal("Nil pointer must be unset")
	}
	if id.Value(&w) != nil {
		t.Error("Unset nullable identity must stage as NULL")
	}

	if err := id.Assign(&w, []byte("17")); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if w.RefID == nil || *w.RefID != 17 {
		t.Errorf("Expected RefID 17, got %v", w.RefID)
	}

	zero := int16(0)
	w.RefID = &zero
	if id.Unset(&w) {
		t.Error("A non-nil pointer to zero is assigned, not unset")
	}
}

func TestIdentityAssign_Conversions(t *testing.T) {
	var w widget
	id := ZeroIdentity(func(w *widget) *uint32 { return &w.ID })

	tests := []struct {
		name    string
		value   any
		want    uint32
		wantErr bool
	}{
		{"int64", int64(5), 5, false},
		{"int32", int32(6), 6, false},
		{"uint64", uint64(7), 7, false},
		{"float64", float64(8), 8, false},
		{"string", "9", 9, false},
		{"bytes", []byte("10"), 10, false},
		{"fractional float", 1.5, 0, true},
		{"negative", int64(-1), 0, true},
		{"overflow", int64(1) << 40, 0, true},
		{"null", nil, 0, true},
		{"garbage", "abc", 0, true},
		{"unsupported", struct{}{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.ID = 0
			err := id.Assign(&w, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %v", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if w.ID != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.ID)
			}
		})
	}
}

func TestIdentityAssign_SignedOverflowFromUnsigned(t *testing.T) {
	type rec struct{ ID int64 }
	id := ZeroIdentity(func(r *rec) *int64 { return &r.ID })

	var r rec
	if err := id.Assign(&r, uint64(1)<<63); err == nil {
		t.Error("Expected overflow error for uint64 above MaxInt64")
	}
}
