package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestEntry_Builder(t *testing.T) {
	entry := NewEntry(OpUpsert, StatusSuccess).
		WithBackend("postgres").
		WithTable("public.person").
		WithRecords(100).
		WithDuration(500*time.Millisecond).
		WithMetadata("temp_table", "person_abc")

	if entry.ID == "" {
		t.Error("Expected generated ID")
	}
	if entry.Table != "public.person" || entry.Records != 100 {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if entry.Metadata["temp_table"] != "person_abc" {
		t.Error("Expected metadata temp_table")
	}

	entry.WithError(nil)
	if entry.Status != StatusSuccess {
		t.Error("nil error must not change the status")
	}
	entry.WithError(errors.New("deadlock"))
	if entry.Status != StatusFailure || entry.ErrorMessage != "deadlock" {
		t.Errorf("Expected failure with message, got %s %q", entry.Status, entry.ErrorMessage)
	}
}

func TestEntry_FilterByLevel(t *testing.T) {
	entry := NewEntry(OpInsert, StatusFailure).
		WithBackend("mssql").
		WithTable("dbo.Person").
		WithDuration(time.Second).
		WithError(errors.New("boom")).
		WithMetadata("state", "RowsStaged")

	minimal := entry.FilterByLevel(LevelMinimal)
	if minimal.Backend != "" || minimal.ErrorMessage != "" || minimal.Metadata != nil {
		t.Errorf("Minimal level kept too much: %+v", minimal)
	}
	if minimal.Table != "dbo.Person" {
		t.Error("Minimal level must keep the table")
	}

	standard := entry.FilterByLevel(LevelStandard)
	if standard.Metadata != nil || standard.ErrorMessage == "" {
		t.Errorf("Unexpected standard entry: %+v", standard)
	}

	full := entry.FilterByLevel(LevelFull)
	if full.Metadata["state"] != "RowsStaged" {
		t.Error("Full level must keep metadata")
	}

	full.Metadata["state"] = "changed"
	if entry.Metadata["state"] != "RowsStaged" {
		t.Error("Filtered copy must not share metadata")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelStandard, false},
		{"minimal", LevelMinimal, false},
		{" FULL ", LevelFull, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	return lines
}

func TestFileAppender_WriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "bulk.log")

	appender, err := NewFileAppender(FileAppenderConfig{FilePath: path, Level: LevelFull, FormatJSON: true})
	if err != nil {
		t.Fatalf("Failed to create file appender: %v", err)
	}

	entry := NewEntry(OpDelete, StatusSuccess).WithTable("dbo.Person").WithRecords(3)
	if err := appender.Append(context.Background(), entry); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}
	if appender.CurrentSize() == 0 {
		t.Error("Expected non-zero file size")
	}
	if err := appender.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	var decoded Entry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("Line is not JSON: %v", err)
	}
	if decoded.ID != entry.ID || decoded.Records != 3 || decoded.Operation != OpDelete {
		t.Errorf("Unexpected decoded entry %+v", decoded)
	}
}

func TestFileAppender_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulk.log")

	appender, err := NewFileAppender(FileAppenderConfig{FilePath: path, MaxSize: 1, MaxBackups: 2, Level: LevelFull})
	if err != nil {
		t.Fatalf("Failed to create file appender: %v", err)
	}
	defer appender.Close()

	big := strings.Repeat("x", 64*1024)
	for i := 0; i < 40; i++ {
		entry := NewEntry(OpCopy, StatusFailure).WithError(errors.New(big))
		if err := appender.Append(context.Background(), entry); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("Expected first backup after rotation: %v", err)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("Backups beyond MaxBackups must not exist")
	}
	if appender.CurrentSize() > 1024*1024 {
		t.Errorf("Active file exceeds MaxSize: %d", appender.CurrentSize())
	}
}

type countingAppender struct {
	appended atomic.Int64
	closed   atomic.Bool
	err      error
}

func (c *countingAppender) Append(ctx context.Context, entry *Entry) error {
	c.appended.Add(1)
	return c.err
}

func (c *countingAppender) Close() error {
	c.closed.Store(true)
	return nil
}

func TestMultiAppender_ContinuesAfterFailure(t *testing.T) {
	failing := &countingAppender{err: errors.New("disk full")}
	ok := &countingAppender{}

	multi := NewMultiAppender(failing)
	multi.Add(ok)

	err := multi.Append(context.Background(), NewEntry(OpInsert, StatusSuccess))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Expected joined failure, got %v", err)
	}
	if ok.appended.Load() != 1 {
		t.Error("Second appender must still receive the entry")
	}

	if err := multi.Close(); err != nil {
		t.Errorf("Unexpected close error: %v", err)
	}
	if !failing.closed.Load() || !ok.closed.Load() {
		t.Error("Every appender must be closed")
	}
}

func TestAuditLogger_Sync(t *testing.T) {
	sink := &countingAppender{}
	logger := NewLogger(SyncConfig(), sink)

	if err := logger.Log(context.Background(), NewEntry(OpInsert, StatusSuccess)); err != nil {
		t.Fatalf("Failed to log entry: %v", err)
	}
	if sink.appended.Load() != 1 {
		t.Errorf("Sync logger must write before returning, got %d", sink.appended.Load())
	}

	if err := logger.Log(context.Background(), nil); err == nil {
		t.Error("Expected error for nil entry")
	}
	logger.Close()
}

func TestAuditLogger_AsyncDrainsOnClose(t *testing.T) {
	sink := &countingAppender{}
	config := DefaultConfig()
	config.BufferSize = 100
	logger := NewLogger(config, sink)

	for i := 0; i < 50; i++ {
		if err := logger.Log(context.Background(), NewEntry(OpUpsert, StatusSuccess).WithRecords(int64(i))); err != nil {
			t.Fatalf("Failed to log entry: %v", err)
		}
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}
	if sink.appended.Load() != 50 {
		t.Errorf("Expected 50 entries after close, got %d", sink.appended.Load())
	}
	if !sink.closed.Load() {
		t.Error("Close must close appenders")
	}

	if err := logger.Log(context.Background(), NewEntry(OpUpsert, StatusSuccess)); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second Close must be a no-op, got %v", err)
	}
}

func TestAuditLogger_OnError(t *testing.T) {
	var reported atomic.Int64
	config := DefaultConfig()
	config.OnError = func(error) { reported.Add(1) }

	logger := NewLogger(config, &countingAppender{err: errors.New("unreachable")})
	logger.Log(context.Background(), NewEntry(OpDelete, StatusSuccess))
	logger.Close()

	if reported.Load() != 1 {
		t.Errorf("Expected 1 reported error, got %d", reported.Load())
	}
}

func TestNullLogger(t *testing.T) {
	var logger Logger = NewNullLogger()

	if err := logger.Log(context.Background(), NewEntry(OpCopy, StatusSuccess)); err != nil {
		t.Errorf("NullLogger should never return error, got: %v", err)
	}
	if err := logger.Flush(); err != nil {
		t.Errorf("NullLogger.Flush should not error, got: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger.Close should not error, got: %v", err)
	}
}
