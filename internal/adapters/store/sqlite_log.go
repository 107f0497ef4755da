package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// SQLiteLog stores processed message ids in a SQLite database
type SQLiteLog struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteLog opens the database and creates the table if needed
func NewSQLiteLog(dbPath string, logger *zap.Logger) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS processed_messages (
			message_id TEXT PRIMARY KEY,
			processed_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteLog{
		db:     db,
		logger: logger,
	}, nil
}

// Load returns every recorded id in insertion order
func (l *SQLiteLog) Load(ctx context.Context) ([]core.MessageID, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT message_id FROM processed_messages ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed messages: %w", err)
	}
	defer rows.Close()

	var ids []core.MessageID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			l.logger.Warn("Skipping unreadable processed message row", zap.Error(err))
			continue
		}
		ids = append(ids, core.MessageID(id))
	}
	if err := rows.Err(); err != nil {
		return ids, fmt.Errorf("failed to read processed messages: %w", err)
	}
	return ids, nil
}

// Append records an id; recording the same id twice keeps one row
func (l *SQLiteLog) Append(ctx context.Context, id core.MessageID) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_messages (message_id, processed_at)
		VALUES (?, ?)
	`, string(id), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert processed message: %w", err)
	}
	return nil
}

// Close closes the database connection
func (l *SQLiteLog) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}
