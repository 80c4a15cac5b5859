package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileAppenderConfig configures a FileAppender.
type FileAppenderConfig struct {
	FilePath string

	// MaxSize in megabytes before the file is rotated. Default 100.
	MaxSize int64

	// MaxBackups is the number of rotated files kept. Default 5.
	MaxBackups int

	Level      Level
	FormatJSON bool
}

// FileAppender writes one line per entry and rotates by size.
type FileAppender struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	maxSize     int64
	maxBackups  int
	currentSize int64
	level       Level
	formatJSON  bool
}

func NewFileAppender(config FileAppenderConfig) (*FileAppender, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("audit file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat audit file: %w", err)
	}

	if config.MaxSize <= 0 {
		config.MaxSize = 100
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 5
	}
	if config.Level == 0 {
		config.Level = LevelStandard
	}

	return &FileAppender{
		file:        file,
		path:        config.FilePath,
		maxSize:     config.MaxSize * 1024 * 1024,
		maxBackups:  config.MaxBackups,
		currentSize: info.Size(),
		level:       config.Level,
		formatJSON:  config.FormatJSON,
	}, nil
}

func (fa *FileAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(fa.level)

	var data []byte
	if fa.formatJSON {
		var err error
		if data, err = filtered.ToJSON(); err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
	} else {
		data = []byte(filtered.String())
	}
	data = append(data, '\n')

	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.currentSize > 0 && fa.currentSize+int64(len(data)) > fa.maxSize {
		if err := fa.rotate(); err != nil {
			return fmt.Errorf("failed to rotate audit file: %w", err)
		}
	}

	n, err := fa.file.Write(data)
	fa.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

// rotate shifts path.N to path.N+1, dropping the oldest, and reopens path.
func (fa *FileAppender) rotate() error {
	if err := fa.file.Close(); err != nil {
		return err
	}

	os.Remove(fmt.Sprintf("%s.%d", fa.path, fa.maxBackups))
	for i := fa.maxBackups - 1; i > 0; i-- {
		old := fmt.Sprintf("%s.%d", fa.path, i)
		if _, err := os.Stat(old); err == nil {
			if err := os.Rename(old, fmt.Sprintf("%s.%d", fa.path, i+1)); err != nil {
				return err
			}
		}
	}
	if err := os.Rename(fa.path, fa.path+".1"); err != nil {
		return err
	}

	file, err := os.OpenFile(fa.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	fa.file = file
	fa.currentSize = 0
	return nil
}

func (fa *FileAppender) Flush() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.file.Sync()
}

func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.file.Close()
}

// CurrentSize returns the size of the active file in bytes.
func (fa *FileAppender) CurrentSize() int64 {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.currentSize
}

func (fa *FileAppender) FilePath() string { return fa.path }
