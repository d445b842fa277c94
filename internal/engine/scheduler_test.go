package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmpilot/dmpilot/internal/instagram"
	"github.com/dmpilot/dmpilot/internal/store"
)

// schedClient adds channel listings on top of fakeClient.
type schedClient struct {
	*fakeClient
	pending    func() []instagram.Thread
	pendingIDs func() []string
	unread     func() []instagram.Thread
	pendingErr error
}

func (c *schedClient) PendingThreads(ctx context.Context) ([]instagram.Thread, error) {
	if c.pendingErr != nil {
		return nil, c.pendingErr
	}
	if c.pending == nil {
		return nil, nil
	}
	return c.pending(), nil
}

func (c *schedClient) PendingThreadIDs(ctx context.Context) ([]string, error) {
	if c.pendingIDs == nil {
		return nil, nil
	}
	return c.pendingIDs(), nil
}

func (c *schedClient) UnreadThreads(ctx context.Context) ([]instagram.Thread, error) {
	if c.unread == nil {
		return nil, nil
	}
	return c.unread(), nil
}

// newTestScheduler wires a scheduler with a fake clock: sleeps advance the
// clock instead of blocking, and the test stops the loop after maxTicks.
func newTestScheduler(t *testing.T, client instagram.Client, gen *fakeGenerator, maxTicks int) *Scheduler {
	t.Helper()

	p := NewPipeline(client, gen, newMemConversations(), store.NopDashboard{}, NewRecencyCache(100), PipelineOptions{CombineMessages: true})
	p.pace = noPace

	s := NewScheduler(client, p, store.NopDashboard{}, SchedulerOptions{
		CheckInterval:  time.Minute,
		BackoffFactor:  2,
		BackoffCeiling: 8,
	})
	s.pace = noPace

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	ticks := 0
	s.sleep = func(ctx context.Context, d time.Duration) error {
		clock = clock.Add(d)
		ticks++
		if ticks >= maxTicks {
			return context.Canceled
		}
		return nil
	}
	return s
}

func TestScheduler_BacksOffWhenQuiet(t *testing.T) {
	client := &schedClient{fakeClient: newFakeClient()}
	s := newTestScheduler(t, client, &fakeGenerator{}, 10)

	if err := s.Run(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	// Both channels were empty on every pass, so both converge on the
	// ceiling of 8x the base interval.
	if s.pending.Interval != 8*time.Minute {
		t.Errorf("pending interval = %v, want ceiling 8m", s.pending.Interval)
	}
	if s.inbox.Interval != 8*time.Minute {
		t.Errorf("inbox interval = %v, want ceiling 8m", s.inbox.Interval)
	}
}

func TestScheduler_ResetsOnActivity(t *testing.T) {
	client := &schedClient{fakeClient: newFakeClient()}
	client.setThread("t1", instagram.Message{ID: "m1", Type: "text", Text: "hello"})

	passes := 0
	client.unread = func() []instagram.Thread {
		passes++
		// Quiet for a while, then one thread shows up on the final pass.
		if passes < 5 {
			return nil
		}
		return []instagram.Thread{{ID: "t1", UnreadCount: 1}}
	}

	s := newTestScheduler(t, client, &fakeGenerator{response: "hi"}, 6)
	s.Run(context.Background())

	if s.inbox.Interval != time.Minute {
		t.Errorf("inbox interval after activity = %v, want base 1m", s.inbox.Interval)
	}
	if s.pending.Interval == time.Minute {
		t.Error("pending interval should have stretched while quiet")
	}
	if len(client.sent) != 1 {
		t.Errorf("sent %d replies, want 1", len(client.sent))
	}
}

func TestScheduler_PendingFallsBackToIDs(t *testing.T) {
	client := &schedClient{fakeClient: newFakeClient()}
	client.setThread("t9", instagram.Message{ID: "m1", Type: "text", Text: "hey"})
	client.pendingErr = errors.New("decode failed")
	client.pendingIDs = func() []string { return []string{"t9"} }

	s := newTestScheduler(t, client, &fakeGenerator{response: "hello!"}, 1)
	s.Run(context.Background())

	if len(client.approved) != 1 || client.approved[0] != "t9" {
		t.Errorf("approved = %v, want [t9] via id fallback", client.approved)
	}
	if len(client.sent) != 1 {
		t.Errorf("sent %d replies, want 1", len(client.sent))
	}
	if s.pending.Interval != time.Minute {
		t.Errorf("pending interval = %v, want base after found activity", s.pending.Interval)
	}
}

func TestScheduler_WaitFlooredAtMinSleep(t *testing.T) {
	client := &schedClient{fakeClient: newFakeClient()}
	s := newTestScheduler(t, client, &fakeGenerator{}, 1)

	var waited time.Duration
	inner := s.sleep
	s.sleep = func(ctx context.Context, d time.Duration) error {
		waited = d
		return inner(ctx, d)
	}
	s.Run(context.Background())

	if waited < s.minSleep {
		t.Errorf("slept %v, want at least %v", waited, s.minSleep)
	}
}
