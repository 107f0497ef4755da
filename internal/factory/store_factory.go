package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/llm-mail-sorter/internal/adapters/store"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

const storeConnectTimeout = 30 * time.Second

// StoreFactory creates processed message logs based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateProcessedLog creates a processed message log based on the configuration
func (f *StoreFactory) CreateProcessedLog() (core.ProcessedLog, error) {
	storeCfg := f.cfg.GetStore()

	f.logger.Info("Creating processed message store", zap.String("type", storeCfg.Type))

	switch storeCfg.Type {
	case "file":
		return store.NewFileLog(storeCfg.Path, f.logger)
	case "memory":
		f.logger.Warn("Processed messages are kept in memory only and will be reclassified after a restart")
		return store.NewMemoryLog(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteLog(storeCfg.SQLitePath, f.logger)
	case "mysql":
		ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
		defer cancel()
		return store.NewMySQLLog(ctx, storeCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("%w: unsupported store type: %s", core.ErrConfiguration, storeCfg.Type)
	}
}

// CreateProcessedSet creates the processed set and loads it from the log
func (f *StoreFactory) CreateProcessedSet(log core.ProcessedLog) (*core.ProcessedSet, error) {
	set := core.NewProcessedSet(log, f.logger)
	if err := set.LoadAll(context.Background()); err != nil {
		return nil, err
	}
	return set, nil
}
