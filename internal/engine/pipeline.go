package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmpilot/dmpilot/internal/instagram"
	"github.com/dmpilot/dmpilot/internal/llm"
	"github.com/dmpilot/dmpilot/internal/store"
)

// Outcome is the terminal state of one thread pass.
type Outcome int

const (
	// OutcomeSkipped means the pass ended without sending a reply: nothing
	// new, nothing actionable, or a collaborator failure. Skips are always
	// safe; durable state is only advanced after a successful send.
	OutcomeSkipped Outcome = iota
	// OutcomeCommitted means a reply was sent and bookkeeping committed.
	OutcomeCommitted
)

func (o Outcome) String() string {
	if o == OutcomeCommitted {
		return "committed"
	}
	return "skipped"
}

// PipelineOptions tunes per-thread processing.
type PipelineOptions struct {
	ResponsePrefix  string
	CombineMessages bool
	CombineLimit    int
	PreserveContext bool
	ContextLimit    int
}

// Pipeline drives one thread end-to-end: approval (if pending), fetch,
// boundary resolution, windowing, response generation, send, and state
// commit. Every external step is failure-isolated: an error aborts only
// this thread's pass and never propagates to the scheduler.
type Pipeline struct {
	client        instagram.Client
	generator     llm.Generator
	conversations store.ConversationStore
	dashboard     store.DashboardStore
	cache         *RecencyCache
	opts          PipelineOptions
	pace          PaceFunc
	now           func() time.Time
}

// NewPipeline wires a thread pipeline. dashboard may be store.NopDashboard.
func NewPipeline(client instagram.Client, generator llm.Generator, conversations store.ConversationStore, dashboard store.DashboardStore, cache *RecencyCache, opts PipelineOptions) *Pipeline {
	if opts.CombineLimit <= 0 {
		opts.CombineLimit = 5
	}
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = 10
	}
	return &Pipeline{
		client:        client,
		generator:     generator,
		conversations: conversations,
		dashboard:     dashboard,
		cache:         cache,
		opts:          opts,
		pace:          sleepWithJitter,
		now:           time.Now,
	}
}

// ProcessThread runs one pass over a thread. thread may be nil when only the
// id is known (pending id fallback); pending marks threads discovered on the
// approval queue.
func (p *Pipeline) ProcessThread(ctx context.Context, threadID string, thread *instagram.Thread, pending bool) Outcome {
	log := slog.With("thread", threadID, "pending", pending)
	log.Info("processing thread")

	username := "unknown_user"
	if thread != nil {
		username = thread.Username()
	}

	if pending {
		p.recordStatus(ctx, threadID, username, "pending", log)

		// Approval failure is non-fatal: some provider states allow replying
		// without an explicit approve.
		if err := p.client.ApproveThread(ctx, threadID); err != nil {
			log.Warn("could not approve thread, processing anyway", "error", err)
		} else {
			p.recordStatus(ctx, threadID, username, "active", log)
		}
		p.pace(ctx, 2*time.Second, time.Second)
	}

	limit := 10
	if p.opts.PreserveContext && p.opts.ContextLimit > limit {
		limit = p.opts.ContextLimit
	}
	messages, err := p.client.ThreadMessages(ctx, threadID, limit)
	if err != nil {
		log.Warn("fetch failed", "error", err)
		return OutcomeSkipped
	}
	if len(messages) == 0 {
		log.Warn("no messages in thread")
		return OutcomeSkipped
	}
	log.Info("fetched messages", "count", len(messages))
	p.pace(ctx, time.Second, time.Second)

	if username == "" || username == "unknown_user" {
		if u := counterpartyName(messages); u != "" {
			username = u
		}
	}

	latest := messages[0]
	if latest.ID == "" {
		log.Warn("latest message has no id, skipping")
		return OutcomeSkipped
	}
	if p.cache.Contains(latest.ID) {
		log.Debug("latest message already processed", "message", latest.ID)
		return OutcomeSkipped
	}

	lastReply, err := p.conversations.LastBotReply(ctx, threadID)
	if err != nil {
		// Without the boundary anchor a reply could be a duplicate; wait for
		// the store to recover.
		log.Error("last bot reply lookup failed", "error", err)
		return OutcomeSkipped
	}
	lastReplyText := ""
	if lastReply != nil {
		lastReplyText = lastReply.Text
	}

	newMessages := ResolveNew(messages, lastReplyText)
	log.Info("resolved boundary", "new", len(newMessages))
	if len(newMessages) == 0 {
		p.cache.Add(latest.ID)
		return OutcomeSkipped
	}

	attrib := NewAttribution(p.opts.ResponsePrefix, lastReplyText)
	userMessages := attrib.Participant(newMessages)
	log.Info("attributed participant messages", "count", len(userMessages))
	if len(userMessages) == 0 {
		p.cache.Add(latest.ID)
		return OutcomeSkipped
	}

	// Participant messages are durably recorded even when this turn ends up
	// producing no reply, oldest-first to preserve transcript order.
	p.persistUserMessages(ctx, threadID, username, userMessages, log)

	firstInteraction := true
	if has, err := p.conversations.HasBotReply(ctx, threadID); err != nil {
		log.Warn("first interaction check failed, assuming first", "error", err)
	} else {
		firstInteraction = !has
	}

	utterance := ""
	if p.opts.CombineMessages {
		utterance = CombinedUtterance(userMessages, p.opts.CombineLimit)
	} else if latest.HasText() {
		utterance = latest.Text
	}
	if utterance == "" {
		log.Warn("no text extractable from new messages")
		return OutcomeSkipped
	}

	var history []llm.ChatMessage
	if p.opts.PreserveContext {
		history = HistoryWindow(messages, p.opts.ContextLimit, attrib)
	}

	p.pace(ctx, time.Second, time.Second)
	response, err := p.generator.Generate(ctx, utterance, firstInteraction, history)
	p.recordAPICall(ctx, "openai", err == nil, log)
	if err != nil {
		log.Error("response generation failed", "error", err)
		return OutcomeSkipped
	}

	if p.opts.ResponsePrefix != "" {
		response = p.opts.ResponsePrefix + response
	}

	p.pace(ctx, 2*time.Second, 2*time.Second)
	sendErr := p.client.SendText(ctx, threadID, response)
	p.recordAPICall(ctx, "instagram", sendErr == nil, log)
	if sendErr != nil {
		// The reply anchor is untouched, so this participant turn stays
		// "new" and is retried on the next cycle that sees it.
		log.Error("send failed", "error", sendErr)
		return OutcomeSkipped
	}

	p.commit(ctx, threadID, username, response, latest.ID, log)
	return OutcomeCommitted
}

// commit records the sent reply: the durable boundary anchor, the dashboard
// copy, the recency cache entry, and the provider read receipt.
func (p *Pipeline) commit(ctx context.Context, threadID, username, response, latestID string, log *slog.Logger) {
	if err := p.conversations.SaveBotReply(ctx, store.BotReply{
		ThreadID: threadID,
		Text:     response,
		SentAt:   p.now(),
	}); err != nil {
		log.Error("saving bot reply failed", "error", err)
	}

	if err := p.dashboard.StoreMessage(ctx, threadID, username, response, true, "bot_"+uuid.NewString()); err != nil {
		log.Debug("dashboard bot message failed", "error", err)
	}

	p.cache.Add(latestID)

	p.pace(ctx, 2*time.Second, time.Second)
	if err := p.client.MarkSeen(ctx, threadID); err != nil {
		log.Warn("mark seen failed", "error", err)
	}
	log.Info("replied to thread")
}

func (p *Pipeline) persistUserMessages(ctx context.Context, threadID, username string, newestFirst []instagram.Message, log *slog.Logger) {
	stored := 0
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msg := newestFirst[i]
		if err := p.conversations.SaveUserMessage(ctx, store.UserMessage{
			ThreadID:  threadID,
			MessageID: msg.ID,
			Text:      msg.Text,
			CreatedAt: msg.Timestamp.Time,
		}); err != nil {
			log.Warn("saving user message failed", "message", msg.ID, "error", err)
			continue
		}
		stored++
		if err := p.dashboard.StoreMessage(ctx, threadID, username, msg.Text, false, msg.ID); err != nil {
			log.Debug("dashboard user message failed", "error", err)
		}
	}
	log.Info("stored participant messages", "count", stored)
}

func (p *Pipeline) recordStatus(ctx context.Context, threadID, username, status string, log *slog.Logger) {
	if err := p.dashboard.UpdateThreadStatus(ctx, threadID, username, status); err != nil {
		log.Debug("dashboard status update failed", "status", status, "error", err)
	}
}

func (p *Pipeline) recordAPICall(ctx context.Context, api string, success bool, log *slog.Logger) {
	if err := p.dashboard.RecordAPICall(ctx, api, success); err != nil {
		log.Debug("dashboard api counter failed", "api", api, "error", err)
	}
}

// counterpartyName finds a display name among fetched messages when the
// thread object carried none. Only non-viewer messages qualify.
func counterpartyName(messages []instagram.Message) string {
	for _, msg := range messages {
		if !msg.SentByViewer && msg.UserID != 0 {
			// The direct API carries usernames on thread objects, not items;
			// fall back to the numeric id.
			return "user_" + strconv.FormatInt(msg.UserID, 10)
		}
	}
	return ""
}
