package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/dmpilot/dmpilot/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("dmpilot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Instagram:")
	fmt.Printf("    %-14s %s\n", "Username:", orMissing(cfg.Instagram.Username))
	fmt.Printf("    %-14s %s\n", "Session:", secretStatus(cfg.Instagram.SessionToken, "DMPILOT_IG_SESSION"))
	fmt.Printf("    %-14s %s\n", "Base URL:", cfg.Instagram.BaseURL)

	fmt.Println()
	fmt.Println("  OpenAI:")
	fmt.Printf("    %-14s %s\n", "API key:", secretStatus(cfg.OpenAI.APIKey, "DMPILOT_OPENAI_API_KEY"))
	fmt.Printf("    %-14s %s\n", "Model:", cfg.OpenAI.Model)
	if cfg.OpenAI.SystemPromptPath != "" {
		if _, err := os.Stat(config.ExpandHome(cfg.OpenAI.SystemPromptPath)); err != nil {
			fmt.Printf("    %-14s %s (NOT FOUND, built-in prompt will be used)\n", "Prompt:", cfg.OpenAI.SystemPromptPath)
		} else {
			fmt.Printf("    %-14s %s (OK)\n", "Prompt:", cfg.OpenAI.SystemPromptPath)
		}
	}

	fmt.Println()
	fmt.Println("  Engine:")
	fmt.Printf("    %-14s %s\n", "Interval:", cfg.CheckIntervalDuration())
	fmt.Printf("    %-14s %.2gx up to %dx base\n", "Backoff:", cfg.Engine.BackoffFactor, cfg.Engine.BackoffCeiling)

	fmt.Println()
	fmt.Println("  Database:")
	fmt.Printf("    %-14s %s\n", "Driver:", cfg.Database.Driver)
	switch cfg.Database.Driver {
	case "postgres":
		checkPostgres(cfg.Database.PostgresDSN)
	default:
		fmt.Printf("    %-14s %s\n", "Path:", config.ExpandHome(cfg.Database.Path))
	}

	if cfg.Dashboard.Enabled {
		fmt.Printf("    %-14s %s\n", "Dashboard:", config.ExpandHome(cfg.Dashboard.Path))
	} else {
		fmt.Printf("    %-14s disabled\n", "Dashboard:")
	}

	fmt.Println()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Status: NOT READY (%s)\n", err)
		return
	}
	fmt.Println("  Status: ready")
}

func checkPostgres(dsn string) {
	if dsn == "" {
		fmt.Printf("    %-14s DMPILOT_POSTGRES_DSN not set\n", "Status:")
		return
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Printf("    %-14s CONNECT FAILED (%s)\n", "Status:", err)
		return
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Printf("    %-14s CONNECT FAILED (%s)\n", "Status:", err)
		return
	}
	fmt.Printf("    %-14s connected\n", "Status:")
}

func orMissing(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

func secretStatus(v, envVar string) string {
	if v == "" {
		return fmt.Sprintf("NOT SET (export %s)", envVar)
	}
	return "set"
}
