package store

import (
	"context"
	"sync"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// MemoryLog keeps processed ids in memory only; nothing survives a restart
type MemoryLog struct {
	ids    []core.MessageID
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryLog creates an empty in-memory log, optionally seeded with ids
func NewMemoryLog(logger *zap.Logger, seed ...core.MessageID) *MemoryLog {
	return &MemoryLog{
		ids:    append([]core.MessageID(nil), seed...),
		logger: logger,
	}
}

// Load returns the recorded ids
func (l *MemoryLog) Load(ctx context.Context) ([]core.MessageID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]core.MessageID(nil), l.ids...), nil
}

// Append records an id
func (l *MemoryLog) Append(ctx context.Context, id core.MessageID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, id)
	l.logger.Debug("Recorded processed message id in memory", zap.String("message_id", string(id)))
	return nil
}

// Entries returns how many appends were recorded, duplicates included
func (l *MemoryLog) Entries() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// Close is a no-op
func (l *MemoryLog) Close() error {
	return nil
}
