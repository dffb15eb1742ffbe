package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/demandflow/demandflow/internal/jobs"
	"github.com/demandflow/demandflow/internal/shared"
)

// JournalCleanupJob prunes idempotency keys outside the retention window.
// Journal and audit rows are kept; only replay-protection keys expire.
type JournalCleanupJob struct {
	Store   *shared.IdempotencyStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewJournalCleanupJob wires dependencies for the cleanup handler.
func NewJournalCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *JournalCleanupJob {
	return &JournalCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes journal cleanup tasks.
func (j *JournalCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("journal cleanup: handler not configured")
	}
	var payload JournalCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 72
	}

	tracker := j.metrics().Track(TaskJournalCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	retention := time.Duration(payload.RetentionHours) * time.Hour
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		resultErr = err
		j.logger().Error("cleanup idempotency keys", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("completed journal cleanup", slog.Int("retention_hours", payload.RetentionHours))
	return resultErr
}

func (j *JournalCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *JournalCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
