// Package main implements the entry point for the Scry practice server,
// which assigns adaptive practice items to learners and runs generation
// jobs in the background.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/scry-practice/internal/config"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a goose migration command (up, down, status, version) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		fmt.Fprintf(os.Stderr, "scry-practice: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, sets up logging and either applies migrations
// or serves until SIGINT or SIGTERM.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("auth_enabled", cfg.Auth.Enabled()),
		slog.Bool("redis_configured", cfg.Redis.URL != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateCmd != "" {
		return runMigrations(ctx, cfg, log, migrateCmd, flag.Args()...)
	}

	app, err := newApplication(ctx, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
