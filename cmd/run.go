package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmpilot/dmpilot/internal/config"
	"github.com/dmpilot/dmpilot/internal/engine"
	"github.com/dmpilot/dmpilot/internal/instagram"
	"github.com/dmpilot/dmpilot/internal/llm"
	"github.com/dmpilot/dmpilot/internal/store"
	"github.com/dmpilot/dmpilot/internal/store/pg"
	"github.com/dmpilot/dmpilot/internal/store/sqlite"
)

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Secrets live in the environment; a local .env is a convenience, not a requirement.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	conversations, err := openConversations(cfg)
	if err != nil {
		slog.Error("failed to open conversation store", "error", err)
		os.Exit(1)
	}
	defer conversations.Close()

	dashboard, err := openDashboard(cfg)
	if err != nil {
		slog.Error("failed to open dashboard store", "error", err)
		os.Exit(1)
	}
	defer dashboard.Close()

	client := instagram.NewHTTPClient(instagram.ClientOptions{
		BaseURL:        cfg.Instagram.BaseURL,
		Username:       cfg.Instagram.Username,
		SessionToken:   cfg.Instagram.SessionToken,
		MaxRetries:     cfg.Instagram.MaxRetries,
		RequestsPerMin: cfg.Instagram.RequestsPerMin,
	})

	generator := llm.NewOpenAIGenerator(llm.GeneratorOptions{
		APIKey:           cfg.OpenAI.APIKey,
		Model:            cfg.OpenAI.Model,
		MaxTokens:        cfg.OpenAI.MaxTokens,
		Temperature:      cfg.OpenAI.Temperature,
		SystemPromptPath: config.ExpandHome(cfg.OpenAI.SystemPromptPath),
	})

	pipeline := engine.NewPipeline(client, generator, conversations, dashboard,
		engine.NewRecencyCache(cfg.Engine.RecencyCacheSize),
		engine.PipelineOptions{
			ResponsePrefix:  cfg.Engine.ResponsePrefix,
			CombineMessages: cfg.Engine.CombineEnabled(),
			CombineLimit:    cfg.Engine.CombineLimit,
			PreserveContext: cfg.Engine.PreserveEnabled(),
			ContextLimit:    cfg.Engine.ContextLimit,
		})

	scheduler := engine.NewScheduler(client, pipeline, dashboard, engine.SchedulerOptions{
		CheckInterval:  cfg.CheckIntervalDuration(),
		BackoffFactor:  cfg.Engine.BackoffFactor,
		BackoffCeiling: cfg.Engine.BackoffCeiling,
		SleepJitter:    2 * time.Second,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("dmpilot started",
		"version", Version,
		"account", cfg.Instagram.Username,
		"model", cfg.OpenAI.Model,
		"driver", cfg.Database.Driver)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("dmpilot shut down")
}

func openConversations(cfg *config.Config) (store.ConversationStore, error) {
	if cfg.Database.Driver == "postgres" {
		return pg.OpenConversations(cfg.Database.PostgresDSN)
	}
	return sqlite.OpenConversations(config.ExpandHome(cfg.Database.Path))
}

func openDashboard(cfg *config.Config) (store.DashboardStore, error) {
	if !cfg.Dashboard.Enabled {
		return store.NopDashboard{}, nil
	}
	return sqlite.OpenDashboard(config.ExpandHome(cfg.Dashboard.Path))
}
