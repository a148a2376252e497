// Package main is the entrypoint for the ReplyForge job worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/replyforge/replyforge/internal/cache"
	"github.com/replyforge/replyforge/internal/completion"
	"github.com/replyforge/replyforge/internal/config"
	"github.com/replyforge/replyforge/internal/dispatch"
	"github.com/replyforge/replyforge/internal/store"
	"github.com/replyforge/replyforge/internal/worker"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(newLogger("json"))

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log.Format))
	slog.Info("config loaded",
		"completion_provider", cfg.Completion.Provider,
		"poll_interval", cfg.Worker.PollInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create completion client and dispatcher
	client, err := completion.NewClient(cfg.Completion)
	if err != nil {
		return fmt.Errorf("create completion client: %w", err)
	}
	slog.Info("completion client initialized", "provider", client.Name())

	dispatcher := dispatch.New(client, dispatch.DefaultPromptBuilder{})

	// 6. Run the polling loop until SIGINT/SIGTERM. In-flight jobs finish
	// before Run returns.
	pgStore := store.NewPostgresStore(pool)
	w := worker.New(pgStore, redisCache, dispatcher, slog.Default(), cfg.Worker)

	stats := w.Run(ctx)
	slog.Info("worker exited",
		"jobs_processed", stats.Processed,
		"jobs_failed", stats.Failed,
		"uptime", stats.Uptime.Round(time.Second),
	)
	return nil
}

// newLogger builds a JSON logger for production or a tinted console logger
// for local development.
func newLogger(format string) *slog.Logger {
	if format == "console" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
