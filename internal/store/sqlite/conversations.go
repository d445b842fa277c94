package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dmpilot/dmpilot/internal/store"
)

const conversationSchema = `
CREATE TABLE IF NOT EXISTS user_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id TEXT NOT NULL,
	message_id TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_messages_thread ON user_messages (thread_id, created_at DESC);

CREATE TABLE IF NOT EXISTS bot_replies (
	thread_id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	sent_at TIMESTAMP NOT NULL
);
`

// Conversations implements store.ConversationStore backed by SQLite.
type Conversations struct {
	db *sql.DB
}

// OpenConversations creates or opens the conversation database at path.
func OpenConversations(path string) (*Conversations, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(conversationSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply conversation schema: %w", err)
	}
	return &Conversations{db: db}, nil
}

// OpenConversationsMemory opens an in-memory conversation store for tests.
func OpenConversationsMemory() (*Conversations, error) {
	db, err := open(":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(conversationSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply conversation schema: %w", err)
	}
	return &Conversations{db: db}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// WAL lets the long-lived bot process read while a write is in flight.
	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma journal_mode: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	return db, nil
}

func (c *Conversations) LastBotReply(ctx context.Context, threadID string) (*store.BotReply, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT text, sent_at FROM bot_replies WHERE thread_id = ?`, threadID)

	reply := store.BotReply{ThreadID: threadID}
	if err := row.Scan(&reply.Text, &reply.SentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query last bot reply: %w", err)
	}
	return &reply, nil
}

func (c *Conversations) SaveBotReply(ctx context.Context, reply store.BotReply) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO bot_replies (thread_id, text, sent_at) VALUES (?, ?, ?)
		 ON CONFLICT (thread_id) DO UPDATE SET text = excluded.text, sent_at = excluded.sent_at`,
		reply.ThreadID, reply.Text, reply.SentAt)
	if err != nil {
		return fmt.Errorf("save bot reply: %w", err)
	}
	return nil
}

func (c *Conversations) SaveUserMessage(ctx context.Context, msg store.UserMessage) error {
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO user_messages (thread_id, message_id, text, created_at) VALUES (?, ?, ?, ?)`,
		msg.ThreadID, msg.MessageID, msg.Text, at)
	if err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	return nil
}

func (c *Conversations) HasBotReply(ctx context.Context, threadID string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bot_replies WHERE thread_id = ?`, threadID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count bot replies: %w", err)
	}
	return n > 0, nil
}

func (c *Conversations) Close() error {
	return c.db.Close()
}
