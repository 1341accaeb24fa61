package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "ledgerctl: load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(openRuntime, version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl: %v\n", err)
		os.Exit(1)
	}
}

func openRuntime(ctx context.Context) (*cli.Runtime, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4, ApplicationName: "ledgerctl"})
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, computing without cache", slog.Any("error", err))
		redisClient = nil
	}

	deps := app.LedgerDeps{Config: cfg, DB: pool, Logger: logger}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	stack, err := app.NewLedgerStack(deps)
	if err != nil {
		pool.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, nil, err
	}

	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	closeFn := func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
	}
	return &cli.Runtime{Ledger: stack.Service, Jobs: jobsCLI}, closeFn, nil
}
