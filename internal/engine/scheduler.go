package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dmpilot/dmpilot/internal/instagram"
	"github.com/dmpilot/dmpilot/internal/store"
)

// SchedulerOptions tunes the dual-channel polling loop.
type SchedulerOptions struct {
	// CheckInterval is the base polling interval shared by both channels.
	CheckInterval time.Duration
	// BackoffFactor multiplies a channel's interval after an empty pass.
	BackoffFactor float64
	// BackoffCeiling caps the interval at CheckInterval * BackoffCeiling.
	BackoffCeiling int
	// MinSleep floors the wait between loop iterations.
	MinSleep time.Duration
	// SleepJitter randomizes each wait by up to this much either way.
	SleepJitter time.Duration
}

// Scheduler polls the pending and inbox channels, each with its own
// adaptive interval, and hands discovered threads to the pipeline.
// Channels share a base interval but back off independently: a quiet
// channel stretches toward the ceiling while an active one snaps back
// to the base.
type Scheduler struct {
	client    instagram.Client
	pipeline  *Pipeline
	dashboard store.DashboardStore

	backoff Backoff
	pending ChannelState
	inbox   ChannelState

	minSleep time.Duration
	jitter   time.Duration

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	pace  PaceFunc
	rng   *rand.Rand
}

// NewScheduler builds a scheduler with both channels due immediately.
func NewScheduler(client instagram.Client, pipeline *Pipeline, dashboard store.DashboardStore, opts SchedulerOptions) *Scheduler {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Minute
	}
	if opts.MinSleep <= 0 {
		opts.MinSleep = 10 * time.Second
	}
	if opts.SleepJitter < 0 {
		opts.SleepJitter = 0
	}
	return &Scheduler{
		client:    client,
		pipeline:  pipeline,
		dashboard: dashboard,
		backoff:   NewBackoff(opts.CheckInterval, opts.BackoffFactor, opts.BackoffCeiling),
		pending:   ChannelState{Name: "pending", Interval: opts.CheckInterval},
		inbox:     ChannelState{Name: "inbox", Interval: opts.CheckInterval},
		minSleep:  opts.MinSleep,
		jitter:    opts.SleepJitter,
		now:       time.Now,
		sleep:     sleepCtx,
		pace:      sleepWithJitter,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run polls until ctx is cancelled. A failed pass never stops the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started",
		"check_interval", s.pending.Interval,
		"backoff_factor", s.backoff.Factor,
		"backoff_ceiling", s.backoff.Ceiling)

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("scheduler stopped")
			return err
		}

		now := s.now()
		if s.pending.Due(now) {
			found := s.checkPending(ctx)
			s.pending.Update(s.backoff, found, s.now())
			slog.Debug("pending channel checked", "found", found, "interval", s.pending.Interval)
			s.pace(ctx, 5*time.Second, 3*time.Second)
		}

		if err := ctx.Err(); err != nil {
			slog.Info("scheduler stopped")
			return err
		}

		now = s.now()
		if s.inbox.Due(now) {
			found := s.checkInbox(ctx)
			s.inbox.Update(s.backoff, found, s.now())
			slog.Debug("inbox channel checked", "found", found, "interval", s.inbox.Interval)
		}

		if err := s.sleep(ctx, s.nextWait()); err != nil {
			slog.Info("scheduler stopped")
			return err
		}
	}
}

// checkPending scans the approval queue. Returns whether any thread was
// discovered, regardless of pipeline outcome.
func (s *Scheduler) checkPending(ctx context.Context) bool {
	threads, err := s.client.PendingThreads(ctx)
	if err != nil {
		slog.Warn("pending fetch failed, trying id-only listing", "error", err)
		s.pace(ctx, 3*time.Second, 2*time.Second)
		return s.checkPendingIDs(ctx)
	}
	s.recordAPICall(ctx, "instagram_pending", true)

	if len(threads) == 0 {
		return false
	}
	slog.Info("pending threads found", "count", len(threads))
	for i := range threads {
		th := threads[i]
		s.pipeline.ProcessThread(ctx, th.ID, &th, true)
		s.pace(ctx, 5*time.Second, 3*time.Second)
	}
	return true
}

// checkPendingIDs is the degraded path when full pending payloads cannot be
// decoded: thread ids alone still let the pipeline approve and fetch.
func (s *Scheduler) checkPendingIDs(ctx context.Context) bool {
	ids, err := s.client.PendingThreadIDs(ctx)
	s.recordAPICall(ctx, "instagram_pending", err == nil)
	if err != nil {
		slog.Error("pending id listing failed", "error", err)
		return false
	}
	if len(ids) == 0 {
		return false
	}
	slog.Info("pending thread ids found", "count", len(ids))
	for _, id := range ids {
		s.pipeline.ProcessThread(ctx, id, nil, true)
		s.pace(ctx, 5*time.Second, 3*time.Second)
	}
	return true
}

// checkInbox scans approved threads with unread activity.
func (s *Scheduler) checkInbox(ctx context.Context) bool {
	threads, err := s.client.UnreadThreads(ctx)
	s.recordAPICall(ctx, "instagram_inbox", err == nil)
	if err != nil {
		slog.Error("inbox fetch failed", "error", err)
		return false
	}
	if len(threads) == 0 {
		return false
	}
	slog.Info("inbox threads found", "count", len(threads))
	for i := range threads {
		th := threads[i]
		s.pipeline.ProcessThread(ctx, th.ID, &th, false)
		s.pace(ctx, 5*time.Second, 3*time.Second)
	}
	return true
}

// nextWait sleeps until the earlier of the two channels' next checks,
// floored at MinSleep and jittered to avoid a fixed request signature.
func (s *Scheduler) nextWait() time.Duration {
	next := s.pending.NextCheck()
	if in := s.inbox.NextCheck(); in.Before(next) {
		next = in
	}
	wait := next.Sub(s.now())
	if s.jitter > 0 {
		wait += time.Duration(s.rng.Int63n(int64(2*s.jitter))) - s.jitter
	}
	if wait < s.minSleep {
		wait = s.minSleep
	}
	return wait
}

func (s *Scheduler) recordAPICall(ctx context.Context, api string, success bool) {
	if err := s.dashboard.RecordAPICall(ctx, api, success); err != nil {
		slog.Debug("dashboard api counter failed", "api", api, "error", err)
	}
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
