package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const dashboardSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id TEXT NOT NULL,
	username TEXT NOT NULL,
	text TEXT NOT NULL,
	is_from_bot INTEGER NOT NULL,
	message_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages (thread_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages (created_at DESC);

CREATE TABLE IF NOT EXISTS threads (
	thread_id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT '',
	last_message TEXT NOT NULL DEFAULT '',
	last_message_from_bot INTEGER NOT NULL DEFAULT 0,
	message_count INTEGER NOT NULL DEFAULT 0,
	last_active TIMESTAMP,
	status_updated TIMESTAMP
);

CREATE TABLE IF NOT EXISTS message_stats (
	stat_key TEXT PRIMARY KEY,
	total_messages INTEGER NOT NULL DEFAULT 0,
	bot_messages INTEGER NOT NULL DEFAULT 0,
	user_messages INTEGER NOT NULL DEFAULT 0,
	last_updated TIMESTAMP
);

CREATE TABLE IF NOT EXISTS api_stats (
	stat_key TEXT PRIMARY KEY,
	total_calls INTEGER NOT NULL DEFAULT 0,
	successful_calls INTEGER NOT NULL DEFAULT 0,
	failed_calls INTEGER NOT NULL DEFAULT 0,
	last_updated TIMESTAMP
);
`

// Dashboard implements store.DashboardStore backed by SQLite. It is a
// monitoring sink, separate from the conversation database.
type Dashboard struct {
	db *sql.DB
}

// OpenDashboard creates or opens the dashboard database at path.
func OpenDashboard(path string) (*Dashboard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(dashboardSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply dashboard schema: %w", err)
	}
	return &Dashboard{db: db}, nil
}

// OpenDashboardMemory opens an in-memory dashboard store for tests.
func OpenDashboardMemory() (*Dashboard, error) {
	db, err := open(":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(dashboardSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply dashboard schema: %w", err)
	}
	return &Dashboard{db: db}, nil
}

func (d *Dashboard) StoreMessage(ctx context.Context, threadID, username, text string, fromBot bool, messageID string) error {
	now := time.Now()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dashboard tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (thread_id, username, text, is_from_bot, message_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		threadID, username, text, boolInt(fromBot), messageID, now); err != nil {
		return fmt.Errorf("insert dashboard message: %w", err)
	}

	preview := text
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO threads (thread_id, username, last_message, last_message_from_bot, message_count, last_active)
		 VALUES (?, ?, ?, ?, 1, ?)
		 ON CONFLICT (thread_id) DO UPDATE SET
			username = excluded.username,
			last_message = excluded.last_message,
			last_message_from_bot = excluded.last_message_from_bot,
			message_count = threads.message_count + 1,
			last_active = excluded.last_active`,
		threadID, username, preview, boolInt(fromBot), now); err != nil {
		return fmt.Errorf("update dashboard thread: %w", err)
	}

	// Global plus per-day counters, matching the stats the dashboard reads.
	for _, key := range []string{"global", "daily_" + now.Format("2006-01-02")} {
		if err := bumpMessageStats(ctx, tx, key, fromBot, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func bumpMessageStats(ctx context.Context, tx *sql.Tx, key string, fromBot bool, now time.Time) error {
	bot, user := 0, 1
	if fromBot {
		bot, user = 1, 0
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO message_stats (stat_key, total_messages, bot_messages, user_messages, last_updated)
		 VALUES (?, 1, ?, ?, ?)
		 ON CONFLICT (stat_key) DO UPDATE SET
			total_messages = message_stats.total_messages + 1,
			bot_messages = message_stats.bot_messages + excluded.bot_messages,
			user_messages = message_stats.user_messages + excluded.user_messages,
			last_updated = excluded.last_updated`,
		key, bot, user, now)
	if err != nil {
		return fmt.Errorf("bump message stats %s: %w", key, err)
	}
	return nil
}

func (d *Dashboard) UpdateThreadStatus(ctx context.Context, threadID, username, status string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO threads (thread_id, username, status, status_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (thread_id) DO UPDATE SET
			username = excluded.username,
			status = excluded.status,
			status_updated = excluded.status_updated`,
		threadID, username, status, time.Now())
	if err != nil {
		return fmt.Errorf("update thread status: %w", err)
	}
	return nil
}

func (d *Dashboard) RecordAPICall(ctx context.Context, api string, success bool) error {
	now := time.Now()
	ok, failed := 0, 1
	if success {
		ok, failed = 1, 0
	}
	for _, key := range []string{"api_" + api, "api_" + api + "_" + now.Format("2006-01-02")} {
		_, err := d.db.ExecContext(ctx,
			`INSERT INTO api_stats (stat_key, total_calls, successful_calls, failed_calls, last_updated)
			 VALUES (?, 1, ?, ?, ?)
			 ON CONFLICT (stat_key) DO UPDATE SET
				total_calls = api_stats.total_calls + 1,
				successful_calls = api_stats.successful_calls + excluded.successful_calls,
				failed_calls = api_stats.failed_calls + excluded.failed_calls,
				last_updated = excluded.last_updated`,
			key, ok, failed, now)
		if err != nil {
			return fmt.Errorf("record api call %s: %w", key, err)
		}
	}
	return nil
}

func (d *Dashboard) Close() error {
	return d.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
