package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// MySQLLog stores processed message ids in a MySQL table
type MySQLLog struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLLog connects to MySQL and creates the table if needed
func NewMySQLLog(ctx context.Context, dsn string, logger *zap.Logger) (*MySQLLog, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS processed_messages (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			message_id VARCHAR(64) NOT NULL,
			processed_at TIMESTAMP NOT NULL,
			UNIQUE KEY uniq_message_id (message_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLLog{
		db:     db,
		logger: logger,
	}, nil
}

// Load returns every recorded id in insertion order
func (l *MySQLLog) Load(ctx context.Context) ([]core.MessageID, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT message_id FROM processed_messages ORDER BY id
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
func (l *MySQLLog) Append(ctx context.Context, id core.MessageID) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT IGNORE INTO processed_messages (message_id, processed_at)
		VALUES (?, ?)
	`, string(id), time.Now().UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("failed to insert processed message: %w", err)
	}
	return nil
}

// Close closes the database connection
func (l *MySQLLog) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close MySQL database: %w", err)
	}
	return nil
}
