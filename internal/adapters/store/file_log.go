package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// FileLog is an append-only, newline-delimited log of processed message ids
type FileLog struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	logger *zap.Logger
}

// NewFileLog creates a file log. The file is created on first append.
func NewFileLog(path string, logger *zap.Logger) (*FileLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create processed log directory: %w", err)
		}
	}
	return &FileLog{
		path:   path,
		logger: logger,
	}, nil
}

// Load reads every complete line of the log. A missing file is an empty log,
// malformed lines are skipped and a trailing line without a newline is ignored.
func (l *FileLog) Load(ctx context.Context) ([]core.MessageID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Info("Processed log does not exist yet, starting empty", zap.String("path", l.path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read processed log: %w", err)
	}

	lines := bytes.Split(data, []byte{'\n'})
	// The element after the last newline is either empty or a partial write
	if last := lines[len(lines)-1]; len(last) > 0 {
		l.logger.Warn("Ignoring partial trailing line in processed log",
			zap.String("path", l.path),
			zap.ByteString("line", last))
	}
	lines = lines[:len(lines)-1]

	ids := make([]core.MessageID, 0, len(lines))
	for i, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		id := core.MessageID(line)
		if !validID(id) {
			l.logger.Warn("Skipping malformed processed log line",
				zap.String("path", l.path),
				zap.Int("line", i+1),
				zap.ByteString("content", line))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Append writes one id and syncs it to disk before returning
func (l *FileLog) Append(ctx context.Context, id core.MessageID) error {
	if !validID(id) {
		return fmt.Errorf("refusing to persist malformed message id %q", string(id))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		if err := l.open(); err != nil {
			return err
		}
	}

	if _, err := l.file.WriteString(string(id) + "\n"); err != nil {
		return fmt.Errorf("failed to append to processed log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync processed log: %w", err)
	}

	l.logger.Debug("Appended processed message id", zap.String("message_id", string(id)))
	return nil
}

// open opens the log for appending and terminates a partial trailing line so
// the next record starts on its own line.
func (l *FileLog) open() error {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open processed log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat processed log: %w", err)
	}
	if info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
			f.Close()
			return fmt.Errorf("failed to read processed log: %w", err)
		}
		if last[0] != '\n' {
			if _, err := f.WriteString("\n"); err != nil {
				f.Close()
				return fmt.Errorf("failed to terminate partial line in processed log: %w", err)
			}
		}
	}

	l.file = f
	return nil
}

// Close closes the underlying file
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// validID accepts decimal UIDs, the only identifiers the mailbox produces
func validID(id core.MessageID) bool {
	n, err := strconv.ParseUint(string(id), 10, 32)
	return err == nil && n > 0
}
