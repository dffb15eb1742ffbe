package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalAction enumerates approval journal actions.
type ApprovalAction string

const (
	// ApprovalApprove marks a demand approved through this gateway.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalConflict marks a demand that was approved elsewhere first.
	ApprovalConflict ApprovalAction = "CONFLICT"
)

// ApprovalLog is one journal entry for a demand within a batch command.
type ApprovalLog struct {
	ID        int64
	DemandID  int64
	CommandID uuid.UUID
	ActorID   int64
	Action    ApprovalAction
	Note      string
	At        time.Time
}

// ApprovalJournal persists the gateway-local history of approval commands.
// The backend of record remains authoritative; the journal exists so
// operators can reconstruct who submitted which batch and what came back.
type ApprovalJournal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalJournal constructs ApprovalJournal.
func NewApprovalJournal(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalJournal {
	return &ApprovalJournal{pool: pool, logger: logger}
}

// Record writes one journal entry.
func (j *ApprovalJournal) Record(ctx context.Context, log ApprovalLog) error {
	if j == nil {
		return errors.New("approval journal not initialised")
	}
	if log.DemandID == 0 {
		return errors.New("approval demand id required")
	}
	if log.CommandID == uuid.Nil {
		return errors.New("approval command id required")
	}
	if log.ActorID == 0 {
		return errors.New("approval actor required")
	}
	if log.Action == "" {
		return errors.New("approval action required")
	}
	_, err := j.pool.Exec(ctx, `INSERT INTO approval_journal (demand_id, command_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.DemandID, log.CommandID, log.ActorID, string(log.Action), log.Note, log.At)
	if err != nil {
		// A resubmitted command writes the same (demand, command) pair again.
		if isDuplicateCommand(err) {
			return nil
		}
		j.logger.Error("record approval", slog.Any("error", err))
		return err
	}
	return nil
}

// isDuplicateCommand reports whether err is the unique violation raised by
// replaying an already journaled (demand, command) pair.
func isDuplicateCommand(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_approval_journal_cmd"
}

// ListByDemand returns journal entries for one demand, oldest first.
func (j *ApprovalJournal) ListByDemand(ctx context.Context, demandID int64) ([]ApprovalLog, error) {
	if j == nil {
		return nil, errors.New("approval journal not initialised")
	}
	rows, err := j.pool.Query(ctx, `SELECT id, demand_id, command_id, actor_id, action, note, at
FROM approval_journal WHERE demand_id=$1 ORDER BY at ASC`, demandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var l ApprovalLog
		var action string
		if err := rows.Scan(&l.ID, &l.DemandID, &l.CommandID, &l.ActorID, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = ApprovalAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
