package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmpilot/dmpilot/internal/store"
)

// Conversations implements store.ConversationStore backed by Postgres.
// Schema is managed by the migrate command (see migrations/).
type Conversations struct {
	db *sql.DB
}

// OpenConversations connects to Postgres using the pgx stdlib driver.
func OpenConversations(dsn string) (*Conversations, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Conversations{db: db}, nil
}

func (c *Conversations) LastBotReply(ctx context.Context, threadID string) (*store.BotReply, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT text, sent_at FROM bot_replies WHERE thread_id = $1`, threadID)

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
		`INSERT INTO bot_replies (thread_id, text, sent_at) VALUES ($1, $2, $3)
		 ON CONFLICT (thread_id) DO UPDATE SET text = EXCLUDED.text, sent_at = EXCLUDED.sent_at`,
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
		`INSERT INTO user_messages (thread_id, message_id, text, created_at) VALUES ($1, $2, $3, $4)`,
		msg.ThreadID, msg.MessageID, msg.Text, at)
	if err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	return nil
}

func (c *Conversations) HasBotReply(ctx context.Context, threadID string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bot_replies WHERE thread_id = $1)`, threadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check bot reply: %w", err)
	}
	return exists, nil
}

func (c *Conversations) Close() error {
	return c.db.Close()
}
