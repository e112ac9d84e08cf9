package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// MessageLog is the durable mirror of conversation buffers, keyed by
// channel identity. Rows for one channel never exceed the buffer capacity;
// each write trims before inserting inside a single transaction.
type MessageLog struct {
	db *sql.DB
}

// OpenLog opens (or creates) the SQLite message log at the given path,
// ensuring the parent directory exists.
func OpenLog(path string) (*MessageLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open message log at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping message log at %s: %w", path, err)
	}

	l := &MessageLog{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate message log: %w", err)
	}
	return l, nil
}

func (l *MessageLog) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS channel_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			user_id TEXT,
			username TEXT,
			timestamp REAL NOT NULL,
			UNIQUE(channel_id, timestamp)
		);
		CREATE INDEX IF NOT EXISTS idx_channel_timestamp
		ON channel_messages(channel_id, timestamp);
	`)
	return err
}

// Append mirrors a message into the log, keeping at most capacity rows for
// the channel. A timestamp collision upserts, the newer content wins. The
// trim and insert run in one transaction so a crash leaves the log valid.
func (l *MessageLog) Append(ctx context.Context, channelID string, msg Message, capacity int) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM channel_messages
		WHERE channel_id = ?
		AND timestamp NOT IN (
			SELECT timestamp FROM channel_messages
			WHERE channel_id = ?
			ORDER BY timestamp DESC
			LIMIT ?
		)`, channelID, channelID, capacity-1)
	if err != nil {
		return fmt.Errorf("failed to trim channel %s: %w", channelID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO channel_messages
		(channel_id, role, content, user_id, username, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		channelID,
		string(msg.Role),
		msg.Content,
		nullable(msg.UserID),
		nullable(msg.Username),
		msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message for channel %s: %w", channelID, err)
	}

	return tx.Commit()
}

// Load returns up to limit messages for a channel, oldest first.
func (l *MessageLog) Load(ctx context.Context, channelID string, limit int) ([]Message, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT role, content, user_id, username, timestamp
		FROM channel_messages
		WHERE channel_id = ?
		ORDER BY timestamp ASC
		LIMIT ?`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages for channel %s: %w", channelID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg              Message
			userID, username sql.NullString
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &userID, &username, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.UserID = userID.String
		msg.Username = username.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Clear deletes every row belonging to a channel.
func (l *MessageLog) Clear(ctx context.Context, channelID string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM channel_messages WHERE channel_id = ?`, channelID)
	if err != nil {
		return fmt.Errorf("failed to clear channel %s: %w", channelID, err)
	}
	return nil
}

// Purge deletes rows older than maxAge across all channels and returns the
// number deleted.
func (l *MessageLog) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := nowSeconds() - maxAge.Seconds()
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM channel_messages WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old messages: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of rows stored for a channel.
func (l *MessageLog) Count(ctx context.Context, channelID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channel_messages WHERE channel_id = ?`, channelID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for channel %s: %w", channelID, err)
	}
	return n, nil
}

// Close closes the underlying database.
func (l *MessageLog) Close() error {
	return l.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
