package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Appender writes entries to one destination.
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
	Close() error
}

// MultiAppender writes to every appender and reports all failures.
type MultiAppender struct {
	appenders []Appender
}

func NewMultiAppender(appenders ...Appender) *MultiAppender {
	return &MultiAppender{appenders: appenders}
}

// Append writes to every appender even after one fails.
func (ma *MultiAppender) Append(ctx context.Context, entry *Entry) error {
	var errs []error
	for _, appender := range ma.appenders {
		if err := appender.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ma *MultiAppender) Close() error {
	var errs []error
	for _, appender := range ma.appenders {
		if err := appender.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ma *MultiAppender) Add(appender Appender) {
	ma.appenders = append(ma.appenders, appender)
}

// ConsoleAppender prints entries to stdout, failures to stderr.
type ConsoleAppender struct {
	level      Level
	formatJSON bool
}

func NewConsoleAppender(level Level, formatJSON bool) *ConsoleAppender {
	return &ConsoleAppender{level: level, formatJSON: formatJSON}
}

func (ca *ConsoleAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(ca.level)

	line := filtered.String()
	if ca.formatJSON {
		data, err := filtered.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		line = string(data)
	}

	out := os.Stdout
	if entry.Status == StatusFailure {
		out = os.Stderr
	}
	_, err := fmt.Fprintln(out, line)
	return err
}

func (ca *ConsoleAppender) Close() error { return nil }

// NullAppender discards entries.
type NullAppender struct{}

func NewNullAppender() *NullAppender { return &NullAppender{} }

func (NullAppender) Append(ctx context.Context, entry *Entry) error { return nil }

func (NullAppender) Close() error { return nil }
