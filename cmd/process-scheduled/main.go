// Command process-scheduled runs one scheduler pass: it sends every due
// scheduled notification and purges old finished ones.
//
// It exits 0 when the pass completes, including when individual
// notifications fail, and 1 when configuration, the database or the
// pass itself fails.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/app"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	configPath := flag.String("config", os.Getenv("DISTRIBUTOR_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := app.RunScheduledOnce(ctx, cfg)
	if err != nil {
		slog.Error("processing scheduled notifications failed", "run_id", report.RunID, "error", err)
		return 1
	}

	slog.Info("processed scheduled notifications",
		"run_id", report.RunID,
		"processed", report.Processed,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"purged", report.Purged,
	)
	return 0
}
