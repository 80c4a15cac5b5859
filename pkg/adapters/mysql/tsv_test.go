package mysql

import (
	"bytes"
	"testing"
	"time"
)

func TestAppendRow(t *testing.T) {
	tests := []struct {
		name string
		row  []any
		want string
	}{
		{"plain", []any{int64(1), "Ann"}, "1\tAnn\n"},
		{"null", []any{nil, []byte(nil)}, "\\N\t\\N\n"},
		{"escapes", []any{"a\tb\nc\\d\r\x00"}, "a\\tb\\nc\\\\d\\r\\0\n"},
		{"bool", []any{true, false}, "1\t0\n"},
		{"float", []any{1500000.25, float32(0.5)}, "1500000.25\t0.5\n"},
		{"unsigned", []any{uint64(18446744073709551615)}, "18446744073709551615\n"},
		{"time", []any{time.Date(2024, 3, 1, 10, 20, 30, 123000000, time.UTC)}, "2024-03-01 10:20:30.123\n"},
		{"bytes", []any{[]byte("x\ty")}, "x\\ty\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			appendRow(&buf, tt.row)
			if buf.String() != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}
