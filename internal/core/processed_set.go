package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ProcessedSet is the set of messages already handled by the sorter. It keeps
// an in-memory mirror of a durable append-only log.
type ProcessedSet struct {
	log    ProcessedLog
	ids    map[MessageID]struct{}
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewProcessedSet creates an empty set backed by the given log
func NewProcessedSet(log ProcessedLog, logger *zap.Logger) *ProcessedSet {
	return &ProcessedSet{
		log:    log,
		ids:    make(map[MessageID]struct{}),
		logger: logger,
	}
}

// LoadAll populates the in-memory mirror from the durable log
func (s *ProcessedSet) LoadAll(ctx context.Context) error {
	ids, err := s.log.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load processed messages: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}

	s.logger.Info("Loaded processed messages", zap.Int("count", len(s.ids)))
	return nil
}

// Contains reports whether the message was already processed
func (s *ProcessedSet) Contains(id MessageID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Mark records the message as processed. Marking a message that is already
// present does nothing. The id only enters the mirror once the log append
// has succeeded.
func (s *ProcessedSet) Mark(ctx context.Context, id MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		s.logger.Debug("Message already marked as processed", zap.String("message_id", string(id)))
		return nil
	}

	if err := s.log.Append(ctx, id); err != nil {
		s.logger.Error("Failed to persist processed message",
			zap.String("message_id", string(id)),
			zap.Error(err))
		return fmt.Errorf("failed to persist processed message %s: %w", id, err)
	}

	s.ids[id] = struct{}{}
	s.logger.Debug("Marked message as processed", zap.String("message_id", string(id)))
	return nil
}

// Len returns the number of processed messages
func (s *ProcessedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Close closes the underlying log
func (s *ProcessedSet) Close() error {
	return s.log.Close()
}
