package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/dmpilot/dmpilot/internal/store"
)

func TestConversations_LastBotReply(t *testing.T) {
	c, err := OpenConversationsMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	r, err := c.LastBotReply(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Fatalf("expected no reply for fresh thread, got %+v", r)
	}

	first := store.BotReply{ThreadID: "t1", Text: "first reply", SentAt: time.Now().Add(-time.Hour)}
	if err := c.SaveBotReply(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := store.BotReply{ThreadID: "t1", Text: "second reply", SentAt: time.Now()}
	if err := c.SaveBotReply(ctx, second); err != nil {
		t.Fatal(err)
	}

	// One row per thread, last write wins.
	r, err = c.LastBotReply(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || r.Text != "second reply" {
		t.Errorf("LastBotReply = %+v, want second reply", r)
	}

	// Other threads are unaffected.
	if r, _ := c.LastBotReply(ctx, "t2"); r != nil {
		t.Errorf("thread t2 should have no reply, got %+v", r)
	}
}

func TestConversations_HasBotReply(t *testing.T) {
	c, err := OpenConversationsMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	has, err := c.HasBotReply(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("fresh thread reported as already replied")
	}

	if err := c.SaveBotReply(ctx, store.BotReply{ThreadID: "t1", Text: "hi", SentAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if has, _ = c.HasBotReply(ctx, "t1"); !has {
		t.Error("replied thread reported as fresh")
	}
}

func TestConversations_SaveUserMessage(t *testing.T) {
	c, err := OpenConversationsMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	msgs := []store.UserMessage{
		{ThreadID: "t1", MessageID: "m1", Text: "hello", CreatedAt: time.Now().Add(-time.Minute)},
		{ThreadID: "t1", MessageID: "m2", Text: "anyone there?", CreatedAt: time.Now()},
	}
	for _, m := range msgs {
		if err := c.SaveUserMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	var count int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_messages WHERE thread_id = ?`, "t1").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("stored %d messages, want 2", count)
	}
}
