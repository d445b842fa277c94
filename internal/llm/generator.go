package llm

import "context"

// Role tags a history message for generation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role-tagged turn of advisory conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces a reply for one resolved user turn. An empty reply with
// a nil error never occurs; generation failure is reported as an error and
// the caller skips the thread for this cycle.
type Generator interface {
	Generate(ctx context.Context, utterance string, firstInteraction bool, history []ChatMessage) (string, error)
}
