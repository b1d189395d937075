// Command haggle runs one buyer/seller negotiation session over a persisted
// vehicle market.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/haggle/internal/agents"
	"github.com/talgya/haggle/internal/api"
	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/config"
	"github.com/talgya/haggle/internal/engine"
	"github.com/talgya/haggle/internal/entropy"
	"github.com/talgya/haggle/internal/metrics"
	"github.com/talgya/haggle/internal/persistence"
	"github.com/talgya/haggle/internal/report"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(envOrDefault("HAGGLE_LOG_LEVEL", "info")),
	}))
	slog.SetDefault(logger)

	slog.Info("haggle: buyer/seller negotiation market")

	// ── Configuration ────────────────────────────────────────────────
	cfg := config.Default()
	if path := os.Getenv("HAGGLE_CONFIG"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			slog.Error("failed to load config", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = *loaded
		slog.Info("config loaded", "path", path)
	}
	cfg.Catalog.DB = envOrDefault("HAGGLE_DB", cfg.Catalog.DB)
	cfg.Server.Port = envIntOrDefault("HAGGLE_PORT", cfg.Server.Port)
	cfg.Seed = int64(envIntOrDefault("HAGGLE_SEED", int(cfg.Seed)))
	cfg.RandomBuyers = envIntOrDefault("HAGGLE_BUYERS", cfg.RandomBuyers)
	if v := os.Getenv("HAGGLE_SERVE"); v != "" {
		cfg.Server.Serve, _ = strconv.ParseBool(v)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rng := entropy.NewStream(cfg.Seed)
	seed := rng.Seed()

	// ── Database ──────────────────────────────────────────────────────
	db, err := openStore(cfg.Catalog.DB)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// os.Exit skips deferred calls; close the database first.
	fatal := func(msg string, args ...any) {
		slog.Error(msg, args...)
		db.Close()
		os.Exit(1)
	}
	slog.Info("database opened", "path", cfg.Catalog.DB)

	// ── Load or Generate Catalog ──────────────────────────────────────
	var sellers []agents.SellerConfig
	if db.HasCatalog() && cfg.Generated() && !cfg.Catalog.Regenerate {
		slog.Info("found saved catalog, loading...")
		sellers, err = db.LoadCatalog()
		if err != nil {
			fatal("failed to load catalog", "error", err)
		}
		runs, _ := db.GetMeta("sessions_run")
		slog.Info("catalog restored", "sellers", len(sellers), "sessions_run", runs)
	} else {
		slog.Info("building catalog", "seed", seed)
		sellers = cfg.BuildSellers(seed)
		if err := db.SaveCatalog(sellers); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	var stock []catalog.Entry
	for _, s := range sellers {
		stock = append(stock, s.Catalog...)
	}
	summaries := catalog.Summarize(stock)
	fmt.Printf("\n%d vehicles across %d sellers:\n", len(stock), len(sellers))
	report.Catalog(os.Stdout, summaries)

	buyers := cfg.BuildBuyers(summaries, rng.Derive(1))
	if len(buyers) == 0 {
		fatal("no buyers: the market has nothing to sell")
	}

	// ── Session ──────────────────────────────────────────────────────
	sess, err := engine.NewSession(engine.Setup{
		Protocol: cfg.Protocol,
		Buyers:   buyers,
		Sellers:  sellers,
		Seed:     seed,
		Metrics:  metrics.New(),
	})
	if err != nil {
		fatal("failed to build session", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── HTTP API ──────────────────────────────────────────────────────
	var apiDone <-chan error
	if cfg.Server.Port > 0 {
		apiServer := &api.Server{
			Session: sess,
			Port:    cfg.Server.Port,
			Limiter: api.NewRateLimiter(600, time.Minute),
		}
		apiDone = apiServer.Start(ctx)
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	}

	// ── Negotiate ─────────────────────────────────────────────────────
	runErr := sess.Run(ctx)

	fmt.Println("\nNegotiations:")
	report.Transcripts(os.Stdout, sess.Transcripts())
	fmt.Println("\nOutcomes:")
	if n := report.Outcomes(os.Stdout, sess.Outcomes()); n > 0 {
		slog.Error("deals closed outside their price band", "count", n)
	}

	if runErr != nil {
		fatal("session failed, catalog not saved", "error", runErr)
	}

	if cfg.Catalog.Checkout {
		slog.Info("checkout", "removed", sess.Checkout())
	}
	if err := db.SaveSession(sess); err != nil {
		slog.Error("final save failed", "error", err)
	}

	if apiDone != nil && cfg.Server.Serve {
		fmt.Println("Session finished. Serving results... (Ctrl+C to stop)")
		<-ctx.Done()
		slog.Info("received signal, shutting down")
		<-apiDone
	}

	fmt.Println("Session complete. Catalog saved.")
}

// openStore creates the database directory if needed and opens the store.
func openStore(path string) (*persistence.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	return persistence.Open(path)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
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
