package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/newsterm/newsterm/internal/api"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
    body TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    sequence INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, sequence);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);

-- Metadata table for the current conversation pointer and preferences
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT
);
`

const (
	metaCurrent     = "current_conversation"
	metaPreferences = "user_preferences"
)

// Open creates or opens the store at cfg.Path and runs the retention
// sweep. Cleanup problems are logged, not fatal; stale history must not
// keep the client from starting.
func Open(cfg Config) (*SQLiteStore, error) {
	path := cfg.Path
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("get store path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, cfg: cfg}
	if err := s.cleanup(); err != nil {
		log.Warn().Err(err).Msg("history cleanup failed")
	}
	return s, nil
}

// cleanup evicts aged messages, drops emptied conversations, and expires
// a current pointer that has sat idle past the configured window.
func (s *SQLiteStore) cleanup() error {
	ctx := context.Background()

	if s.cfg.MaxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.MaxAgeDays)
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM messages WHERE created_at < ?", cutoff); err != nil {
			return fmt.Errorf("evict old messages: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `
			DELETE FROM conversations WHERE id NOT IN (
				SELECT DISTINCT conversation_id FROM messages
			)`); err != nil {
			return fmt.Errorf("drop empty conversations: %w", err)
		}
	}

	if s.cfg.IdleExpiry > 0 {
		current, err := s.Current(ctx)
		if err != nil {
			return fmt.Errorf("read current pointer: %w", err)
		}
		if current == "" {
			return nil
		}
		var updated time.Time
		err = s.db.QueryRowContext(ctx,
			"SELECT updated_at FROM conversations WHERE id = ?", current).Scan(&updated)
		if err == sql.ErrNoRows {
			// conversation was evicted above; the pointer goes with it
			return s.ClearCurrent(ctx)
		}
		if err != nil {
			return fmt.Errorf("read conversation activity: %w", err)
		}
		if time.Since(updated) > s.cfg.IdleExpiry {
			return s.ClearCurrent(ctx)
		}
	}
	return nil
}

// Messages returns the stored log for a conversation in order.
func (s *SQLiteStore) Messages(ctx context.Context, conversationID string) ([]api.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM messages
		WHERE conversation_id = ?
		ORDER BY sequence ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []api.ChatMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg api.ChatMessage
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// SaveMessages replaces the stored log, keeping the newest MaxMessages
// entries, and refreshes the conversation's activity time.
func (s *SQLiteStore) SaveMessages(ctx context.Context, conversationID string, msgs []api.ChatMessage) error {
	if s.cfg.MaxMessages > 0 && len(msgs) > s.cfg.MaxMessages {
		msgs = msgs[len(msgs)-s.cfg.MaxMessages:]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		conversationID, now, now); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("clear old log: %w", err)
	}
	for i, msg := range msgs {
		body, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		created := msg.Timestamp.Time
		if created.IsZero() {
			// a zero instant would be swept as aged on the next open
			created = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, role, body, created_at, sequence)
			VALUES (?, ?, ?, ?, ?)`,
			conversationID, string(msg.Role), string(body), created, i); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// Preferences returns the saved snapshot, nil when none was stored.
func (s *SQLiteStore) Preferences(ctx context.Context) (*api.UserPreferences, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM metadata WHERE key = ?", metaPreferences).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	var prefs api.UserPreferences
	if err := json.Unmarshal([]byte(value), &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &prefs, nil
}

// SavePreferences stores the snapshot as JSON.
func (s *SQLiteStore) SavePreferences(ctx context.Context, prefs api.UserPreferences) error {
	value, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		metaPreferences, string(value))
	return err
}

// Current returns the active conversation id, empty when none is set.
func (s *SQLiteStore) Current(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM metadata WHERE key = ?", metaCurrent).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query current conversation: %w", err)
	}
	return id, nil
}

// SetCurrent marks a conversation as the active one.
func (s *SQLiteStore) SetCurrent(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		metaCurrent, conversationID)
	return err
}

// ClearCurrent removes the active conversation marker.
func (s *SQLiteStore) ClearCurrent(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM metadata WHERE key = ?", metaCurrent)
	return err
}

// Delete removes a conversation; the foreign key cascade takes the
// messages with it.
func (s *SQLiteStore) Delete(ctx context.Context, conversationID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE id = ?", conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("conversation not found: %s", conversationID)
	}
	current, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if current == conversationID {
		return s.ClearCurrent(ctx)
	}
	return nil
}

// List returns stored conversations, newest activity first.
func (s *SQLiteStore) List(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages WHERE conversation_id = c.id) AS message_count
		FROM conversations c
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var results []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
