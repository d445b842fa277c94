package store

import (
	"context"
	"time"
)

// BotReply is the durable record of the most recent reply the engine itself
// sent into a thread. It is the sole boundary anchor: at most one per thread,
// overwritten in engine send order.
type BotReply struct {
	ThreadID string
	Text     string
	SentAt   time.Time
}

// UserMessage is an append-only record of a participant message.
type UserMessage struct {
	ThreadID  string
	MessageID string
	Text      string
	CreatedAt time.Time
}

// ConversationStore is the durable per-thread bookkeeping the engine
// depends on for correctness.
type ConversationStore interface {
	// LastBotReply returns the reply record for threadID, or nil when the
	// engine has never replied to this thread.
	LastBotReply(ctx context.Context, threadID string) (*BotReply, error)
	// SaveBotReply upserts the reply record for a thread (last-write-wins).
	SaveBotReply(ctx context.Context, reply BotReply) error
	// SaveUserMessage appends a participant message record.
	SaveUserMessage(ctx context.Context, msg UserMessage) error
	// HasBotReply reports whether any reply was ever sent to threadID.
	HasBotReply(ctx context.Context, threadID string) (bool, error)
	Close() error
}

// DashboardStore records monitoring data for the admin dashboard. Every
// method is best-effort: failures are logged by callers and never affect
// pipeline outcome.
type DashboardStore interface {
	// StoreMessage records a message copy plus thread metadata and counters.
	StoreMessage(ctx context.Context, threadID, username, text string, fromBot bool, messageID string) error
	// UpdateThreadStatus records a thread status transition
	// ("pending", "active").
	UpdateThreadStatus(ctx context.Context, threadID, username, status string) error
	// RecordAPICall bumps success/failure counters for an external API.
	RecordAPICall(ctx context.Context, api string, success bool) error
	Close() error
}

// NopDashboard is used when the dashboard is disabled.
type NopDashboard struct{}

func (NopDashboard) StoreMessage(context.Context, string, string, string, bool, string) error {
	return nil
}
func (NopDashboard) UpdateThreadStatus(context.Context, string, string, string) error { return nil }
func (NopDashboard) RecordAPICall(context.Context, string, bool) error                { return nil }
func (NopDashboard) Close() error                                                     { return nil }
