package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level controls how much of an entry an appender keeps.
type Level int

const (
	// LevelMinimal keeps the operation, status, table and row count.
	LevelMinimal Level = iota + 1

	// LevelStandard adds backend, duration and error.
	LevelStandard

	// LevelFull adds metadata such as the temp table and failing state.
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// ParseLevel maps a configuration string to a Level. Empty means standard.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return LevelMinimal, nil
	case "", "standard":
		return LevelStandard, nil
	case "full":
		return LevelFull, nil
	default:
		return 0, fmt.Errorf("unknown audit level %q", s)
	}
}

// Operation is the bulk verb an entry records.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
	OpCopy   Operation = "copy"
)

// Status is the outcome of an operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"

	// StatusPartial marks a committed statement whose generated keys could
	// not all be assigned.
	StatusPartial Status = "partial"
)

// Entry records one bulk call.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation Operation `json:"operation"`
	Status    Status    `json:"status"`

	Backend string `json:"backend,omitempty"`
	Table   string `json:"table,omitempty"`

	// Records is the number of records passed to the call.
	Records int64 `json:"records"`

	Duration     time.Duration  `json:"duration,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewEntry creates an entry stamped with a fresh id and the current time.
func NewEntry(operation Operation, status Status) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Operation: operation,
		Status:    status,
	}
}

func (e *Entry) WithBackend(backend string) *Entry {
	e.Backend = backend
	return e
}

func (e *Entry) WithTable(table string) *Entry {
	e.Table = table
	return e
}

func (e *Entry) WithRecords(n int64) *Entry {
	e.Records = n
	return e
}

func (e *Entry) WithDuration(d time.Duration) *Entry {
	e.Duration = d
	return e
}

// WithError records err and marks the entry failed. A nil err is ignored.
func (e *Entry) WithError(err error) *Entry {
	if err != nil {
		e.ErrorMessage = err.Error()
		e.Status = StatusFailure
	}
	return e
}

func (e *Entry) WithMetadata(key string, value any) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Entry) String() string {
	s := fmt.Sprintf("[%s] %s %s %s (backend=%s, records=%d, duration=%v)",
		e.Timestamp.Format(time.RFC3339),
		e.Operation,
		e.Table,
		e.Status,
		e.Backend,
		e.Records,
		e.Duration,
	)
	if e.ErrorMessage != "" {
		s += ": " + e.ErrorMessage
	}
	return s
}

// Clone returns a copy that does not share Metadata.
func (e *Entry) Clone() *Entry {
	clone := *e
	if e.Metadata != nil {
		clone.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// FilterByLevel returns a copy holding only the fields level keeps.
func (e *Entry) FilterByLevel(level Level) *Entry {
	filtered := e.Clone()

	switch level {
	case LevelMinimal:
		filtered.Backend = ""
		filtered.Duration = 0
		filtered.ErrorMessage = ""
		filtered.Metadata = nil
	case LevelStandard:
		filtered.Metadata = nil
	}

	return filtered
}
