package demand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/demandflow/demandflow/internal/shared"
)

// ApprovalCommand is an immutable, normalized batch approval. Building one
// from raw selection state dedupes and integer-coerces the ids, so the same
// command can be resubmitted safely after a transport failure.
type ApprovalCommand struct {
	ID      uuid.UUID
	ActorID int64
	ids     []int64
}

// NewApprovalCommand normalizes the raw selection into a command. Selection
// state arrives as opaque strings from the UI; anything non-numeric is
// rejected rather than silently dropped.
func NewApprovalCommand(actorID int64, rawIDs []string) (ApprovalCommand, error) {
	if len(rawIDs) == 0 {
		return ApprovalCommand{}, errors.New("demand: empty selection")
	}
	seen := make(map[int64]struct{}, len(rawIDs))
	ids := make([]int64, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return ApprovalCommand{}, fmt.Errorf("demand: invalid selection id %q", raw)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ApprovalCommand{ID: uuid.New(), ActorID: actorID, ids: ids}, nil
}

// DemandIDs returns a copy of the normalized id set.
func (c ApprovalCommand) DemandIDs() []int64 {
	out := make([]int64, len(c.ids))
	copy(out, c.ids)
	return out
}

// BatchOutcome partitions a batch approval response. The three sets are
// disjoint: approved, lost the eligibility race, or refused outright.
type BatchOutcome struct {
	ApprovedCount   int
	AlreadyApproved []int64
	Errors          []string
}

// Clean reports whether every demand in the batch was approved.
func (o BatchOutcome) Clean() bool {
	return len(o.AlreadyApproved) == 0 && len(o.Errors) == 0
}

// ApproverPort is the backend batch approval operation.
type ApproverPort interface {
	ApproveByInventoryManager(ctx context.Context, demandIDs []int64) (BatchOutcome, error)
}

// RefresherPort invalidates the read-side projection after a submission.
type RefresherPort interface {
	Refresh(ctx context.Context) error
}

// JournalPort records gateway-local approval history.
type JournalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Coordinator submits batch approvals and reconciles partial results.
type Coordinator struct {
	backend ApproverPort
	repo    RefresherPort
	journal JournalPort
	audit   AuditPort
	logger  *slog.Logger
}

// NewCoordinator constructs Coordinator. journal and audit may be nil.
func NewCoordinator(backend ApproverPort, repo RefresherPort, journal JournalPort, audit AuditPort, logger *slog.Logger) *Coordinator {
	return &Coordinator{backend: backend, repo: repo, journal: journal, audit: audit, logger: logger}
}

// ApproveBatch submits the command as a single batch request, journals the
// outcome per demand, and refreshes the working set exactly once after the
// submission has completed. A transport failure aborts the whole batch with
// nothing journaled; the caller retries by resubmitting the same command,
// which is safe because eligibility is re-checked server-side.
func (c *Coordinator) ApproveBatch(ctx context.Context, cmd ApprovalCommand) (BatchOutcome, error) {
	ids := cmd.DemandIDs()
	if len(ids) == 0 {
		return BatchOutcome{}, errors.New("demand: empty selection")
	}
	outcome, err := c.backend.ApproveByInventoryManager(ctx, ids)
	if err != nil {
		return BatchOutcome{}, fmt.Errorf("demand: approve batch: %w", err)
	}

	c.journalOutcome(ctx, cmd, outcome)
	if c.audit != nil {
		_ = c.audit.Record(ctx, shared.AuditLog{
			ActorID:  cmd.ActorID,
			Action:   "demand:bulk-approve",
			Entity:   "approval_command",
			EntityID: cmd.ID.String(),
			Meta: map[string]any{
				"demand_ids":       ids,
				"approved_count":   outcome.ApprovedCount,
				"already_approved": outcome.AlreadyApproved,
				"errors":           outcome.Errors,
			},
		})
	}

	// Refresh only after the submission settled so the projection cannot
	// race a still-pending approval for the same selection.
	if err := c.repo.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after bulk approve", slog.Any("error", err))
	}
	if !outcome.Clean() {
		c.logger.Info("bulk approve partial",
			slog.String("command_id", cmd.ID.String()),
			slog.Int("approved", outcome.ApprovedCount),
			slog.Int("already_approved", len(outcome.AlreadyApproved)),
			slog.Int("errors", len(outcome.Errors)))
	}
	return outcome, nil
}

func (c *Coordinator) journalOutcome(ctx context.Context, cmd ApprovalCommand, outcome BatchOutcome) {
	if c.journal == nil {
		return
	}
	conflicted := make(map[int64]struct{}, len(outcome.AlreadyApproved))
	for _, id := range outcome.AlreadyApproved {
		conflicted[id] = struct{}{}
		_ = c.journal.Record(ctx, shared.ApprovalLog{
			DemandID:  id,
			CommandID: cmd.ID,
			ActorID:   cmd.ActorID,
			Action:    shared.ApprovalConflict,
			Note:      "approved concurrently by another actor",
		})
	}
	// Per-id error messages are free-form, so demands that failed cannot be
	// told apart from demands that succeeded; only a clean remainder is
	// journaled as approved.
	if len(outcome.Errors) > 0 {
		return
	}
	for _, id := range cmd.DemandIDs() {
		if _, ok := conflicted[id]; ok {
			continue
		}
		_ = c.journal.Record(ctx, shared.ApprovalLog{
			DemandID:  id,
			CommandID: cmd.ID,
			ActorID:   cmd.ActorID,
			Action:    shared.ApprovalApprove,
		})
	}
}
