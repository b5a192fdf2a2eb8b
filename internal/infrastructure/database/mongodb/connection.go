package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"customer-service/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func NewClient(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*mongo.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("store URL is empty in configuration")
	}

	clientOpts := clientOptions(cfg)

	logger.Info("Connecting to MongoDB...", "url", redact(clientOpts), "database", cfg.Database)
	connectCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.Timeout))
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("unable to create mongo client: %w", err)
	}

	if err := verifyConnection(ctx, client, cfg.Timeout, logger); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("Successfully connected to MongoDB.", "hosts", clientOpts.Hosts, "database", cfg.Database)
	return client, nil
}

func clientOptions(cfg config.StoreConfig) *options.ClientOptions {
	clientOpts := options.Client().ApplyURI(cfg.URL)
	if cfg.Username != "" && cfg.Password != "" {
		clientOpts = clientOpts.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	timeout := timeoutOrDefault(cfg.Timeout)
	maxPool := cfg.MaxPool
	if maxPool == 0 {
		maxPool = 10
	}
	return clientOpts.
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetMinPoolSize(1).
		SetMaxPoolSize(maxPool)
}

func verifyConnection(ctx context.Context, client *mongo.Client, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("Pinging MongoDB...")
	pingCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(timeout))
	defer cancel()

	if err := client.Ping(pingCtx, readpref.PrimaryPreferred()); err != nil {
		logger.Error("Failed to ping MongoDB", "error", err)
		return fmt.Errorf("failed to ping mongo on connect: %w", err)
	}
	return nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

func redact(opts *options.ClientOptions) string {
	if len(opts.Hosts) == 0 {
		return ""
	}
	return "mongodb://" + opts.Hosts[0]
}
