package engine

import (
	"strings"

	"github.com/dmpilot/dmpilot/internal/instagram"
	"github.com/dmpilot/dmpilot/internal/llm"
)

// CombinedUtterance joins the text of up to limit of the newest messages
// into one user turn, oldest-first, newline-separated. msgs must be ordered
// newest-first. Returns "" when no text is extractable.
func CombinedUtterance(msgs []instagram.Message, limit int) string {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	parts := make([]string, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].HasText() {
			parts = append(parts, msgs[i].Text)
		}
	}
	return strings.Join(parts, "\n")
}

// HistoryWindow builds the advisory conversation context for generation from
// the full fetched thread (newest-first). The newest maxMessages are kept
// (older messages in the fetched page are dropped first), then reordered
// oldest-first and role-tagged via attrib. Messages that are exactly the
// response-prefix marker are dropped, and the prefix is stripped from
// bot-attributed messages so it never pollutes generated context.
func HistoryWindow(msgs []instagram.Message, maxMessages int, attrib Attribution) []llm.ChatMessage {
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[:maxMessages]
	}

	var history []llm.ChatMessage
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if !msg.HasText() {
			continue
		}
		if attrib.IsPrefixOnly(msg.Text) {
			continue
		}

		role := llm.RoleUser
		content := msg.Text
		if attrib.IsBot(msg.Text) {
			role = llm.RoleAssistant
			content = attrib.StripPrefix(content)
		}
		if content == "" {
			continue
		}
		history = append(history, llm.ChatMessage{Role: role, Content: content})
	}
	return history
}
