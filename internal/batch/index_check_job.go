package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"customer-service/internal/infrastructure/monitoring"
)

type IndexEnsurer interface {
	EnsureUsernameIndex(ctx context.Context) error
}

type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// IndexCheckJob periodically checks the store and re-creates the username
// index if it has gone missing, e.g. after a collection was restored.
type IndexCheckJob struct {
	indexes IndexEnsurer
	health  HealthChecker
	logger  *slog.Logger
}

func NewIndexCheckJob(indexes IndexEnsurer, health HealthChecker, logger *slog.Logger) *IndexCheckJob {
	if indexes == nil || health == nil || logger == nil {
		panic("IndexCheckJob dependencies cannot be nil")
	}
	return &IndexCheckJob{
		indexes: indexes,
		health:  health,
		logger:  logger.With("job", "IndexCheck"),
	}
}

func (j *IndexCheckJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting store index check job.")

	if err := j.health.CheckHealth(ctx); err != nil {
		monitoring.SetStoreUp(false)
		j.logger.ErrorContext(ctx, "Document store unreachable, skipping index check.", slog.Any("error", err))
		return fmt.Errorf("store health check failed: %w", err)
	}
	monitoring.SetStoreUp(true)

	if err := j.indexes.EnsureUsernameIndex(ctx); err != nil {
		monitoring.SetIndexPresent(false)
		j.logger.ErrorContext(ctx, "Failed to ensure username index.", slog.Any("error", err))
		return fmt.Errorf("ensuring username index: %w", err)
	}
	monitoring.SetIndexPresent(true)

	j.logger.InfoContext(ctx, "Store index check job finished successfully.", slog.Duration("duration", time.Since(startTime)))
	return nil
}
