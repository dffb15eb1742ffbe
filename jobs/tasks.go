package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDemandWarmup pre-populates the demand working-set snapshot cache.
	TaskDemandWarmup = "demand:warmup"
	// TaskJournalCleanup prunes aged idempotency keys.
	TaskJournalCleanup = "journal:cleanup"
)

// DemandWarmupPayload selects which working-set pages to warm.
type DemandWarmupPayload struct {
	// Statuses to warm a first page for; default is the actionable set.
	Statuses []string `json:"statuses"`
	PerPage  int      `json:"per_page"`
}

// NewDemandWarmupTask constructs an Asynq task.
func NewDemandWarmupTask(payload DemandWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDemandWarmup, data), nil
}

// JournalCleanupPayload bounds the retention window in hours.
type JournalCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewJournalCleanupTask constructs an Asynq task.
func NewJournalCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(JournalCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalCleanup, data), nil
}
