package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openAuditDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to open SQLite database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseAppender_AppendAndQuery(t *testing.T) {
	db := openAuditDB(t)

	appender, err := NewDatabaseAppender(DatabaseAppenderConfig{
		DB:              db,
		Level:           LevelFull,
		AutoCreateTable: true,
	})
	if err != nil {
		t.Fatalf("Failed to create database appender: %v", err)
	}
	defer appender.Close()

	ctx := context.Background()
	entry := NewEntry(OpUpsert, StatusSuccess).
		WithBackend("mysql").
		WithTable("shop.person").
		WithRecords(100).
		WithDuration(1500*time.Millisecond).
		WithMetadata("temp_table", "person_x")
	if err := appender.Append(ctx, entry); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}
	if err := appender.Append(ctx, NewEntry(OpDelete, StatusSuccess).WithTable("shop.order")); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}

	entries, err := appender.Query(ctx, QueryFilter{Table: "shop.person", Limit: 10})
	if err != nil {
		t.Fatalf("Failed to query entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	got := entries[0]
	if got.ID != entry.ID || got.Operation != OpUpsert || got.Records != 100 {
		t.Errorf("Unexpected entry %+v", got)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Expected duration 1.5s, got %v", got.Duration)
	}
	if got.Metadata["temp_table"] != "person_x" {
		t.Errorf("Expected metadata round trip, got %v", got.Metadata)
	}
	if got.Timestamp.Sub(entry.Timestamp).Abs() > time.Microsecond {
		t.Errorf("Timestamp mismatch: %v vs %v", got.Timestamp, entry.Timestamp)
	}
}

func TestDatabaseAppender_Batch(t *testing.T) {
	db := openAuditDB(t)

	appender, err := NewDatabaseAppender(DatabaseAppenderConfig{
		DB:              db,
		BatchSize:       5,
		AutoCreateTable: true,
	})
	if err != nil {
		t.Fatalf("Failed to create database appender: %v", err)
	}
	defer appender.Close()

	ctx := context.Background()
	for i := 0; i < 12; i++ {
		if err := appender.Append(ctx, NewEntry(OpInsert, StatusSuccess).WithRecords(int64(i))); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	count, err := appender.Count(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected 10 entries before flush, got %d", count)
	}

	if err := appender.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	count, _ = appender.Count(ctx, QueryFilter{Operation: OpInsert})
	if count != 12 {
		t.Errorf("Expected 12 entries after flush, got %d", count)
	}
}

func TestDatabaseAppender_DeleteOlderThan(t *testing.T) {
	db := openAuditDB(t)

	appender, err := NewDatabaseAppender(DatabaseAppenderConfig{DB: db, AutoCreateTable: true})
	if err != nil {
		t.Fatalf("Failed to create database appender: %v", err)
	}
	defer appender.Close()

	ctx := context.Background()
	old := NewEntry(OpCopy, StatusSuccess)
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	appender.Append(ctx, old)
	for i := 0; i < 3; i++ {
		appender.Append(ctx, NewEntry(OpCopy, StatusFailure))
	}

	deleted, err := appender.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete old entries: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted entry, got %d", deleted)
	}

	count, _ := appender.Count(ctx, QueryFilter{Status: StatusFailure, Since: time.Now().Add(-time.Hour)})
	if count != 3 {
		t.Errorf("Expected 3 remaining failures, got %d", count)
	}
}

func TestDatabaseAppender_RequiresDB(t *testing.T) {
	if _, err := NewDatabaseAppender(DatabaseAppenderConfig{}); err == nil {
		t.Error("Expected error without DB")
	}
}

func TestPlaceholder_Bind(t *testing.T) {
	if got := PlaceholderDollar.bind(3); got != "$3" {
		t.Errorf("Expected $3, got %s", got)
	}
	if got := PlaceholderAt.bind(2); got != "@p2" {
		t.Errorf("Expected @p2, got %s", got)
	}
	if got := PlaceholderQuestion.bind(7); got != "?" {
		t.Errorf("Expected ?, got %s", got)
	}
}
