package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = `You are an assistant managing Instagram direct messages.
Be helpful, friendly, and concise in your responses.
For new users who have just sent a message request, be welcoming and introduce yourself briefly.
Respond only to the most recent message or group of messages.
Keep responses brief and conversational, suitable for Instagram messaging.
If asked about services, products, or business inquiries, respond professionally and ask for details.`

const firstInteractionNote = "\nThis is your first interaction with this user. Be welcoming and friendly."

// OpenAIGenerator implements Generator using the OpenAI Chat Completions API.
type OpenAIGenerator struct {
	client       *openai.Client
	model        string
	maxTokens    int
	temperature  float32
	systemPrompt string
}

// GeneratorOptions configures a new OpenAIGenerator.
type GeneratorOptions struct {
	APIKey           string
	Model            string
	MaxTokens        int
	Temperature      float64
	SystemPromptPath string
	// BaseURL overrides the API endpoint, for proxies and tests.
	BaseURL string
}

// NewOpenAIGenerator creates a generator. The system prompt is loaded from
// SystemPromptPath when the file exists; otherwise a built-in default is used.
func NewOpenAIGenerator(opts GeneratorOptions) *OpenAIGenerator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIGenerator{
		client:       openai.NewClientWithConfig(cfg),
		model:        opts.Model,
		maxTokens:    opts.MaxTokens,
		temperature:  float32(opts.Temperature),
		systemPrompt: loadSystemPrompt(opts.SystemPromptPath),
	}
}

func loadSystemPrompt(path string) string {
	if path == "" {
		return defaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("system prompt file not readable, using default", "path", path, "error", err)
		return defaultSystemPrompt
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return defaultSystemPrompt
	}
	slog.Info("loaded system prompt", "path", path, "chars", len(prompt))
	return prompt
}

// Generate sends the utterance with optional history and returns the reply text.
func (g *OpenAIGenerator) Generate(ctx context.Context, utterance string, firstInteraction bool, history []ChatMessage) (string, error) {
	system := g.systemPrompt
	if firstInteraction {
		system += firstInteractionNote
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: utterance,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion: empty content")
	}
	return content, nil
}
