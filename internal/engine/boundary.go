package engine

import (
	"strings"

	"github.com/dmpilot/dmpilot/internal/instagram"
)

// ResolveNew computes which fetched messages are strictly newer than the
// engine's last reply. messages must be ordered newest-first; the result
// preserves that order and contains only text-bearing messages.
//
// With no last reply this is first contact and every text-bearing message is
// new. Otherwise messages are scanned newest to oldest until one whose text
// exactly equals lastBotReply; everything before it is new, the match and
// everything older is excluded. When no message matches, the last reply fell
// outside the fetched window and the result is empty: the engine prefers
// missing a turn over re-answering stale content.
func ResolveNew(messages []instagram.Message, lastBotReply string) []instagram.Message {
	var newMsgs []instagram.Message
	for _, msg := range messages {
		if lastBotReply != "" && msg.HasText() && msg.Text == lastBotReply {
			return newMsgs
		}
		if msg.HasText() {
			newMsgs = append(newMsgs, msg)
		}
	}
	if lastBotReply == "" {
		return newMsgs
	}
	// Boundary not found in the fetched window.
	return nil
}

// Attribution identifies message provenance by text equality against the
// known bot-sent texts, plus the configured response prefix when one is set.
// Provider sender fields are not trustworthy across all thread states, so
// text is the only stable signal.
type Attribution struct {
	prefix   string
	botTexts map[string]struct{}
}

// NewAttribution builds an attribution function from the response prefix and
// the set of texts known to have been sent by the bot.
func NewAttribution(prefix string, botTexts ...string) Attribution {
	a := Attribution{prefix: strings.TrimSpace(prefix), botTexts: make(map[string]struct{}, len(botTexts))}
	for _, t := range botTexts {
		if t == "" {
			continue
		}
		a.botTexts[t] = struct{}{}
		if a.prefix != "" {
			a.botTexts[strings.TrimSpace(a.prefix+t)] = struct{}{}
		}
	}
	return a
}

// IsBot reports whether text is attributable to the bot.
func (a Attribution) IsBot(text string) bool {
	if text == "" {
		return false
	}
	if _, ok := a.botTexts[text]; ok {
		return true
	}
	return a.prefix != "" && strings.HasPrefix(text, a.prefix)
}

// StripPrefix removes the decorative response prefix from bot text.
func (a Attribution) StripPrefix(text string) string {
	if a.prefix == "" {
		return text
	}
	return strings.TrimSpace(strings.TrimPrefix(text, a.prefix))
}

// IsPrefixOnly reports whether the message text is just the prefix marker.
func (a Attribution) IsPrefixOnly(text string) bool {
	return a.prefix != "" && strings.TrimSpace(text) == a.prefix
}

// Participant filters msgs down to participant-authored, text-bearing
// messages, preserving order.
func (a Attribution) Participant(msgs []instagram.Message) []instagram.Message {
	var out []instagram.Message
	for _, msg := range msgs {
		if !msg.HasText() {
			continue
		}
		if a.IsBot(msg.Text) {
			continue
		}
		out = append(out, msg)
	}
	return out
}
