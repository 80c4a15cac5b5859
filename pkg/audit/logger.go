package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by Log after Close.
var ErrClosed = errors.New("audit logger is closed")

// Logger receives one entry per bulk call.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	Flush() error
	Close() error
}

// LoggerConfig configures an AuditLogger.
type LoggerConfig struct {
	// AsyncMode hands entries to a background writer.
	AsyncMode bool

	// BufferSize is the async queue length. A full queue falls back to a
	// synchronous write.
	BufferSize int

	// FlushInterval flushes appenders periodically. Zero disables it.
	FlushInterval time.Duration

	// OnError receives appender failures of the background writer.
	OnError func(error)
}

// DefaultConfig is asynchronous with a 1000 entry queue.
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		AsyncMode:  true,
		BufferSize: 1000,
	}
}

// SyncConfig writes every entry before Log returns.
func SyncConfig() LoggerConfig {
	return LoggerConfig{}
}

// AuditLogger fans entries out to its appenders.
type AuditLogger struct {
	appenders []Appender
	config    LoggerConfig
	entries   chan *Entry

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewLogger starts a logger writing to appenders.
func NewLogger(config LoggerConfig, appenders ...Appender) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}

	l := &AuditLogger{
		appenders: appenders,
		config:    config,
		done:      make(chan struct{}),
	}

	if config.AsyncMode {
		l.entries = make(chan *Entry, config.BufferSize)
		l.wg.Add(1)
		go l.processEntries()
	}

	if config.FlushInterval > 0 {
		l.wg.Add(1)
		go l.autoFlush()
	}

	return l
}

// Log writes entry, or queues it in async mode.
func (l *AuditLogger) Log(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}

	if l.entries != nil {
		select {
		case l.entries <- entry:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return l.writeEntry(ctx, entry)
}

func (l *AuditLogger) writeEntry(ctx context.Context, entry *Entry) error {
	var errs []error
	for _, appender := range l.appenders {
		if err := appender.Append(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("appender failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (l *AuditLogger) processEntries() {
	defer l.wg.Done()

	for entry := range l.entries {
		if err := l.writeEntry(context.Background(), entry); err != nil {
			l.handleError(err)
		}
	}
}

func (l *AuditLogger) autoFlush() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Flush(); err != nil {
				l.handleError(err)
			}
		case <-l.done:
			return
		}
	}
}

// Flush flushes appenders that buffer.
func (l *AuditLogger) Flush() error {
	var errs []error
	for _, appender := range l.appenders {
		if flusher, ok := appender.(interface{ Flush() error }); ok {
			if err := flusher.Flush(); err != nil {
				errs = append(errs, fmt.Errorf("flush failed: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close drains the queue, flushes and closes every appender.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	if l.entries != nil {
		close(l.entries)
	}
	close(l.done)
	l.mu.Unlock()

	l.wg.Wait()

	errs := []error{l.Flush()}
	for _, appender := range l.appenders {
		if err := appender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (l *AuditLogger) handleError(err error) {
	if l.config.OnError != nil {
		l.config.OnError(err)
	}
}

// NullLogger discards entries.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (NullLogger) Log(ctx context.Context, entry *Entry) error { return nil }
func (NullLogger) Flush() error                                { return nil }
func (NullLogger) Close() error                                { return nil }
