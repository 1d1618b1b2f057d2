package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"sensorhub-server/internal/config"
	"sensorhub-server/internal/db"
	"sensorhub-server/internal/logging"
	"sensorhub-server/internal/migrate"
)

const appName = "sensorhub-migrate"

var version = "dev"

const usage = `usage: %s <command>
  migrate  create the database if needed and bring the schema up to date (safe to re-run)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg, version, appName))

	if err := run(context.Background(), cfg, os.Args[1], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, command string, out io.Writer) error {
	if command != "migrate" {
		return fmt.Errorf("unknown command (allowed: migrate)")
	}

	if err := db.EnsureDatabase(ctx, cfg.DB); err != nil {
		return err
	}

	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	if err := migrate.Run(ctx, conn, cfg.DB.Driver); err != nil {
		return err
	}
	fmt.Fprintln(out, "migrations applied")
	return nil
}
