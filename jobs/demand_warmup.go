package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/demandflow/demandflow/internal/demand"
	jobmetrics "github.com/demandflow/demandflow/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DemandWarmupJob pre-populates the Redis working-set snapshots so the first
// listing after a quiet period does not pay the backend round trip.
type DemandWarmupJob struct {
	Repo    *demand.Repository
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDemandWarmupJob wires dependencies for the warmup handler.
func NewDemandWarmupJob(repo *demand.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *DemandWarmupJob {
	return &DemandWarmupJob{
		Repo:    repo,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes demand warmup tasks.
func (j *DemandWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil {
		return errors.New("demand warmup: handler not configured")
	}
	var payload DemandWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Statuses) == 0 {
		payload.Statuses = []string{string(demand.StatusPending), string(demand.StatusInProcess)}
	}
	if payload.PerPage <= 0 {
		payload.PerPage = 20
	}

	tracker := j.metrics().Track(TaskDemandWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	warmed := 0
	for _, status := range payload.Statuses {
		filter := demand.ListFilter{Status: demand.Status(status), Page: 1, PerPage: payload.PerPage}
		if err := j.Repo.Warm(ctx, filter); err != nil {
			resultErr = err
			j.logger().Error("warm demand snapshot", slog.String("status", status), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}
	j.logger().Info("completed demand warmup", slog.Int("snapshots", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *DemandWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DemandWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *DemandWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
