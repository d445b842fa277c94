package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Instagram: InstagramConfig{
			BaseURL:        "https://i.instagram.com",
			MaxRetries:     3,
			RequestsPerMin: 20,
		},
		OpenAI: OpenAIConfig{
			Model:            "gpt-4.1-nano-2025-04-14",
			MaxTokens:        15000,
			Temperature:      0.7,
			SystemPromptPath: "system_prompt.txt",
		},
		Engine: EngineConfig{
			CheckInterval:    "60s",
			BackoffFactor:    1.5,
			BackoffCeiling:   8,
			CombineLimit:     5,
			ContextLimit:     10,
			RecencyCacheSize: 1000,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "~/.dmpilot/dmpilot.db",
		},
		Dashboard: DashboardConfig{
			Path: "~/.dmpilot/dashboard.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("DMPILOT_IG_USERNAME", &c.Instagram.Username)
	envStr("DMPILOT_IG_SESSION", &c.Instagram.SessionToken)
	envStr("DMPILOT_IG_BASE_URL", &c.Instagram.BaseURL)
	envStr("DMPILOT_OPENAI_API_KEY", &c.OpenAI.APIKey)
	envStr("DMPILOT_OPENAI_MODEL", &c.OpenAI.Model)
	envStr("DMPILOT_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("DMPILOT_RESPONSE_PREFIX", &c.Engine.ResponsePrefix)
	envStr("DMPILOT_CHECK_INTERVAL", &c.Engine.CheckInterval)

	if v := os.Getenv("DMPILOT_CONTEXT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.Engine.ContextLimit = n
		}
	}
	if c.Database.PostgresDSN != "" {
		c.Database.Driver = "postgres"
	}
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
