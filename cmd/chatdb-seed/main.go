package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatdb/chatdb/internal/config"
	"github.com/chatdb/chatdb/internal/demo/seeder"
	"github.com/chatdb/chatdb/internal/observability"
	mongostore "github.com/chatdb/chatdb/internal/store/mongo"
)

func main() {
	cfg, err := config.LoadFromEnv("chatdb-seed")
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongostore.Connect(ctx, mongostore.ClientConfig{
		URI:              cfg.Mongo.URI,
		ConnectTimeout:   cfg.Mongo.ConnectTimeout,
		OperationTimeout: cfg.Mongo.OperationTimeout,
	})
	if err != nil {
		logger.Error("failed to connect mongo", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = client.Close(context.Background()) }()

	service, err := seeder.NewService(client.Database(cfg.Seed.Database), seeder.Config{
		Users:      cfg.Seed.Users,
		Orders:     cfg.Seed.Orders,
		RandomSeed: int64(cfg.Seed.RandomSeed),
		Reset:      cfg.Seed.Reset,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding demo data",
		slog.String("database", cfg.Seed.Database),
		slog.Int("users", cfg.Seed.Users),
		slog.Int("orders", cfg.Seed.Orders),
		slog.Bool("reset", cfg.Seed.Reset),
	)
	if _, err := service.Run(ctx); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
}
