// Command haggle-watch follows a haggle session through its HTTP API and
// prints the outcomes once every buyer is done.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/haggle/internal/observer"
	"github.com/talgya/haggle/internal/report"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("HAGGLE_API_URL", "http://localhost:8080")
	intervalMs := envIntOrDefault("HAGGLE_WATCH_INTERVAL_MS", 500)

	slog.Info("haggle watcher starting", "api_url", apiURL, "interval_ms", intervalMs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs := observer.NewObserver(apiURL)

	// The session process may still be building its catalog.
	slog.Info("waiting for session API...")
	if err := obs.WaitReady(ctx, 2*time.Second, 30*time.Second, 5*time.Minute); err != nil {
		slog.Error("session API unavailable", "error", err)
		os.Exit(1)
	}

	snap, err := obs.WaitDone(ctx, time.Duration(intervalMs)*time.Millisecond)
	if err != nil {
		slog.Error("observation failed", "error", err)
		os.Exit(1)
	}

	slog.Info("session finished",
		"seed", snap.Status.Seed,
		"duration", snap.Status.Duration,
		"deals", snap.Deals,
	)
	if snap.Status.Error != "" {
		slog.Error("session aborted", "error", snap.Status.Error)
	}

	fmt.Println("\nStock:")
	report.Catalog(os.Stdout, snap.Catalog)
	fmt.Println("\nOutcomes:")
	if n := report.Outcomes(os.Stdout, snap.Outcomes); n > 0 || snap.Status.Error != "" {
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
