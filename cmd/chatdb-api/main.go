package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatdb/chatdb/internal/api"
	"github.com/chatdb/chatdb/internal/config"
	"github.com/chatdb/chatdb/internal/llm"
	"github.com/chatdb/chatdb/internal/nl2mongo"
	"github.com/chatdb/chatdb/internal/nl2sql"
	"github.com/chatdb/chatdb/internal/observability"
	"github.com/chatdb/chatdb/internal/sqlstore"
	"github.com/chatdb/chatdb/internal/store"
	mongostore "github.com/chatdb/chatdb/internal/store/mongo"
)

func main() {
	cfg, err := config.LoadFromEnv("chatdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	mongoClient, err := mongostore.Connect(context.Background(), mongostore.ClientConfig{
		URI:              cfg.Mongo.URI,
		ConnectTimeout:   cfg.Mongo.ConnectTimeout,
		OperationTimeout: cfg.Mongo.OperationTimeout,
		MaxPoolSize:      uint64(cfg.Mongo.MaxPoolSize),
	})
	if err != nil {
		logger.Error("failed to connect mongo", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = mongoClient.Close(context.Background()) }()

	databases := make([]store.Database, 0, len(cfg.Mongo.Databases))
	for _, name := range cfg.Mongo.Databases {
		databases = append(databases, mongoClient.Database(name))
	}
	registry := store.NewRegistry(databases...)

	gateway, err := newGateway(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize llm gateway", slog.Any("error", err))
		os.Exit(1)
	}

	mongoService, err := nl2mongo.NewService(registry, gateway, nl2mongo.Config{
		SampleSize:         cfg.Schema.SampleSize,
		DefaultSampleLimit: cfg.Schema.DefaultSampleLimit,
		MaxSampleLimit:     cfg.Schema.MaxSampleLimit,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize mongodb translator", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Mongo:             mongoService,
		DependencyTimeout: 2 * time.Second,
	}
	readiness := []api.ReadinessCheck{mongoClient.Ping}

	if cfg.SQL.Enabled {
		pools, err := openSQLPools(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to open sql databases", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = pools.Close() }()

		sqlService, err := nl2sql.NewService(pools, gateway, nl2sql.Config{
			RowLimit:       cfg.SQL.RowLimit,
			ExplainResults: cfg.SQL.ExplainResults,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize sql translator", slog.Any("error", err))
			os.Exit(1)
		}
		deps.SQL = sqlService
		readiness = append(readiness, pools.Ping)
	}
	deps.Readiness = api.CombineReadinessChecks(readiness...)

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("llm_provider", gateway.Provider()),
			slog.Any("mongo_databases", registry.Names()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func newGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) (*llm.Gateway, error) {
	var provider llm.Provider
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
		})
		if err != nil {
			return nil, err
		}
		provider = gemini
	default:
		openai, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
		})
		if err != nil {
			return nil, err
		}
		provider = openai
	}
	return llm.NewGateway(provider, llm.GatewayConfig{
		Timeout:  cfg.AI.Timeout,
		JSONMode: cfg.AI.JSONMode,
		Logger:   logger,
	})
}

func openSQLPools(ctx context.Context, cfg config.Config) (*sqlstore.Pools, error) {
	dbs := make(map[string]*sql.DB, len(cfg.SQL.Databases))
	for _, database := range cfg.SQL.Databases {
		db, err := sqlstore.Open(ctx, sqlstore.DBConfig{
			Driver:          cfg.SQL.Driver,
			DSN:             database.DSN,
			MaxOpenConns:    cfg.SQL.MaxOpenConns,
			MaxIdleConns:    cfg.SQL.MaxIdleConns,
			ConnMaxIdleTime: cfg.SQL.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.SQL.ConnMaxLifetime,
		})
		if err != nil {
			for _, opened := range dbs {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("open %s: %w", database.Name, err)
		}
		dbs[database.Name] = db
	}
	return sqlstore.NewPools(cfg.SQL.Driver, dbs), nil
}
