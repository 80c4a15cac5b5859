package retry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// LedgerEntry records a temp table whose cleanup never succeeded.
type LedgerEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Backend   string    `json:"backend"`
	Operation string    `json:"operation"`
	Table     string    `json:"table"`
	TempTable string    `json:"temp_table"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`

	// Evicted is set when the session holding the table was discarded
	// instead of being returned to the pool.
	Evicted bool `json:"evicted"`
}

// Ledger is a JSON file of stranded temp tables, rewritten on every change.
type Ledger struct {
	mu      sync.RWMutex
	config  LedgerConfig
	entries []LedgerEntry
	counter int
}

// NewLedger opens the ledger, loading config.Path when it exists.
func NewLedger(config LedgerConfig) (*Ledger, error) {
	l := &Ledger{
		config:  config,
		entries: make([]LedgerEntry, 0),
	}

	if _, err := os.Stat(config.Path); err == nil {
		if err := l.Load(); err != nil {
			return nil, fmt.Errorf("failed to load ledger: %w", err)
		}
	}

	return l, nil
}

// Add appends entry, trims to MaxSize and persists. Write failures are
// kept for Save to report.
func (l *Ledger) Add(entry LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counter++
	entry.ID = fmt.Sprintf("stranded-%d-%d", time.Now().Unix(), l.counter)
	l.entries = append(l.entries, entry)

	if l.config.MaxSize > 0 && len(l.entries) > l.config.MaxSize {
		l.entries = l.entries[len(l.entries)-l.config.MaxSize:]
	}

	l.saveUnsafe()
}

// Get returns a copy of all entries, oldest first.
func (l *Ledger) Get() []LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]LedgerEntry, len(l.entries))
	copy(result, l.entries)
	return result
}

// GetByID returns the entry with id, or nil.
func (l *Ledger) GetByID(id string) *LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.entries {
		if l.entries[i].ID == id {
			entry := l.entries[i]
			return &entry
		}
	}
	return nil
}

// Remove deletes the entry with id.
func (l *Ledger) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, entry := range l.entries {
		if entry.ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			l.saveUnsafe()
			return true
		}
	}
	return false
}

// Clear removes every entry.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]LedgerEntry, 0)
	return l.saveUnsafe()
}

// CleanupOld drops entries older than Retention and returns how many.
func (l *Ledger) CleanupOld() int {
	if l.config.Retention == 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.config.Retention)
	kept := make([]LedgerEntry, 0, len(l.entries))
	removed := 0

	for _, entry := range l.entries {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		} else {
			removed++
		}
	}

	if removed > 0 {
		l.entries = kept
		l.saveUnsafe()
	}
	return removed
}

// Size returns the number of entries.
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Save writes the ledger file.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveUnsafe()
}

// saveUnsafe expects l.mu to be held.
func (l *Ledger) saveUnsafe() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	if err := os.WriteFile(l.config.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return nil
}

// Load replaces the in-memory entries with the file contents.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.config.Path)
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}

	var entries []LedgerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal ledger: %w", err)
	}

	l.entries = entries
	return nil
}

// LedgerStats summarizes the ledger.
type LedgerStats struct {
	TotalEntries int
	Evicted      int
	OldestEntry  time.Time
	NewestEntry  time.Time
	ByBackend    map[string]int
}

// GetStats returns counts per backend and the entry time range.
func (l *Ledger) GetStats() LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := LedgerStats{
		TotalEntries: len(l.entries),
		ByBackend:    make(map[string]int),
	}
	if len(l.entries) == 0 {
		return stats
	}

	stats.OldestEntry = l.entries[0].Timestamp
	stats.NewestEntry = l.entries[len(l.entries)-1].Timestamp

	for _, entry := range l.entries {
		stats.ByBackend[entry.Backend]++
		if entry.Evicted {
			stats.Evicted++
		}
	}
	return stats
}
