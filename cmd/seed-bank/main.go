// Command seed-bank loads practice items from a YAML file into the
// PostgreSQL item bank.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	"github.com/phrazzld/scry-practice/internal/config"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/platform/postgres"
	"github.com/phrazzld/scry-practice/internal/redact"
)

func main() {
	file := flag.String("file", "", "path to the YAML seed file")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing to the database")
	flag.Parse()

	if err := run(*file, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "seed-bank: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, dryRun bool) error {
	if path == "" {
		return fmt.Errorf("-file is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	items, err := parseSeed(f)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Printf("%s: %d valid items\n", path, len(items))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("seeding requires the %s driver", config.DriverPostgres)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %s", redact.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := postgres.Migrate(ctx, db, log, "up"); err != nil {
		return err
	}

	inserted, err := postgres.NewPostgresItemBank(db, log).Add(ctx, items)
	if err != nil {
		return fmt.Errorf("failed to add items: %w", err)
	}

	log.Info("item bank seeded",
		slog.String("file", path),
		slog.Int("items", len(items)),
		slog.Int("inserted", inserted),
		slog.Int("skipped", len(items)-inserted))
	return nil
}
