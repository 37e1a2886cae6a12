package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: false,
		Level:     cfg.LogLevel,
	}))

	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Server run error", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hasher, err := NewPasswordHasher(cfg.PasswordScheme, cfg.BcryptCost)
	if err != nil {
		return err
	}

	db, err := OpenDatabase(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("Failed to init the database", "error", err)
		return err
	}
	defer db.Close()

	if err := db.CreateSchema(ctx); err != nil {
		return err
	}

	if cfg.Seed {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		if _, err := Seed(ctx, db, hasher, rng, time.Now()); err != nil {
			return err
		}
	}

	server := NewAPIServer(db, hasher, cfg.ListenAddr())

	return server.Run(ctx, cfg.ShutdownTimeout)
}
