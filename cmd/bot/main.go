package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"stockbot/internal/alert"
	"stockbot/internal/bot"
	"stockbot/internal/classify"
	"stockbot/internal/config"
	"stockbot/internal/diff"
	"stockbot/internal/fetcher"
	"stockbot/internal/scheduler"
	"stockbot/internal/scraper"
	"stockbot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	b, err := bot.New(cfg, store, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	f := fetcher.New(http.DefaultClient, fetcher.Config{
		Attempts:    cfg.RetryAttempts,
		BackoffBase: cfg.RetryDelayBase,
		DelayMin:    cfg.RequestDelayMin,
		DelayMax:    cfg.RequestDelayMax,
		Timeout:     cfg.RequestTimeout,
	}, log)
	sc := scraper.New(classify.Default(), log)
	engine := diff.New(store, log)
	gate := alert.New(store, b, cfg.AlertCooldown, log)

	sched := scheduler.New(cfg, store, f, sc, engine, gate, log)
	b.SetMonitor(sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting stock alert bot")

	sched.Start(ctx)

	if err := b.Run(ctx); err != nil {
		log.Error("bot run", "error", err)
	}

	sched.Stop()
	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
