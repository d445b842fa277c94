package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the dmpilot bot.
type Config struct {
	Instagram InstagramConfig `json:"instagram"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Engine    EngineConfig    `json:"engine"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Dashboard DashboardConfig `json:"dashboard,omitempty"`
}

// InstagramConfig holds credentials and endpoints for the messaging provider.
// SessionToken is NEVER read from config.json (secret); only from env
// DMPILOT_IG_SESSION.
type InstagramConfig struct {
	Username       string `json:"username"`
	SessionToken   string `json:"-"` // from env DMPILOT_IG_SESSION only
	BaseURL        string `json:"base_url,omitempty"`
	MaxRetries     int    `json:"max_retries,omitempty"`      // per-call retry attempts (default 3)
	RequestsPerMin int    `json:"requests_per_min,omitempty"` // outbound pacing (default 20)
}

// OpenAIConfig configures response generation.
// APIKey comes from env DMPILOT_OPENAI_API_KEY only.
type OpenAIConfig struct {
	APIKey           string  `json:"-"`
	Model            string  `json:"model,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	SystemPromptPath string  `json:"system_prompt_path,omitempty"`
}

// EngineConfig tunes the synchronization engine.
type EngineConfig struct {
	CheckInterval    string  `json:"check_interval,omitempty"`     // base poll interval, Go duration (default "60s")
	BackoffFactor    float64 `json:"backoff_factor,omitempty"`     // interval growth on empty polls (default 1.5)
	BackoffCeiling   int     `json:"backoff_ceiling,omitempty"`    // ceiling as multiple of base (default 8)
	CombineMessages  *bool   `json:"combine_messages,omitempty"`   // merge new messages into one turn (default true)
	CombineLimit     int     `json:"combine_limit,omitempty"`      // max messages merged per turn (default 5)
	PreserveContext  *bool   `json:"preserve_context,omitempty"`   // include thread history for generation (default true)
	ContextLimit     int     `json:"context_limit,omitempty"`      // max history messages (default 10)
	ResponsePrefix   string  `json:"response_prefix,omitempty"`    // decorative tag prepended to replies
	RecencyCacheSize int     `json:"recency_cache_size,omitempty"` // processed-thread cache cap (default 1000)
}

// DatabaseConfig selects the conversation store backend.
// PostgresDSN is env-only (DMPILOT_POSTGRES_DSN), never persisted.
type DatabaseConfig struct {
	Driver      string `json:"driver,omitempty"` // "sqlite" (default) or "postgres"
	Path        string `json:"path,omitempty"`   // sqlite file path (default ~/.dmpilot/dmpilot.db)
	PostgresDSN string `json:"-"`
}

// DashboardConfig configures the best-effort dashboard store.
// When disabled, thread status and counters are simply not recorded.
type DashboardConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"` // sqlite file path (default ~/.dmpilot/dashboard.db)
}

// CheckIntervalDuration parses Engine.CheckInterval with a fallback default.
func (c *Config) CheckIntervalDuration() time.Duration {
	if c.Engine.CheckInterval != "" {
		if d, err := time.ParseDuration(c.Engine.CheckInterval); err == nil && d > 0 {
			return d
		}
	}
	return 60 * time.Second
}

// Validate checks that all required credentials are present.
func (c *Config) Validate() error {
	if c.Instagram.Username == "" {
		return fmt.Errorf("instagram.username is required")
	}
	if c.Instagram.SessionToken == "" {
		return fmt.Errorf("DMPILOT_IG_SESSION environment variable is not set")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("DMPILOT_OPENAI_API_KEY environment variable is not set")
	}
	return nil
}

// CombineEnabled reports whether new messages are merged into one turn.
func (e EngineConfig) CombineEnabled() bool {
	return e.CombineMessages == nil || *e.CombineMessages
}

// PreserveEnabled reports whether thread history is passed to generation.
func (e EngineConfig) PreserveEnabled() bool {
	return e.PreserveContext == nil || *e.PreserveContext
}
