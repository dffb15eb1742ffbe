package demand

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/demandflow/demandflow/internal/shared"
)

// EditInput carries the fields a site store officer may change while a
// demand is still pending.
type EditInput struct {
	Quantity        int             `json:"quantity" validate:"required,gte=1"`
	Priority        Priority        `json:"priority" validate:"required,oneof=Low Medium High Urgent"`
	FulfillmentType FulfillmentType `json:"fulfillment_type" validate:"required,oneof=inter_store_transfer site_purchase market_purchase purchase_order"`
	Remarks         string          `json:"remarks" validate:"max=500"`
}

// EditorPort covers the backend mutations for single demands.
type EditorPort interface {
	UpdateDemand(ctx context.Context, id int64, input EditInput) (SiteDemand, error)
	DeleteDemand(ctx context.Context, id int64) error
}

// Editor forwards demand edits and deletes, gating optimistically on the
// snapshot the caller holds. The backend re-checks; a stale snapshot comes
// back as a state conflict and the projection is refreshed either way.
type Editor struct {
	backend EditorPort
	repo    RefresherPort
	audit   AuditPort
	logger  *slog.Logger
}

// NewEditor constructs Editor. audit may be nil.
func NewEditor(backend EditorPort, repo RefresherPort, audit AuditPort, logger *slog.Logger) *Editor {
	return &Editor{backend: backend, repo: repo, audit: audit, logger: logger}
}

// Update edits a pending demand. The snapshot gate never reaches the
// network when it fails.
func (e *Editor) Update(ctx context.Context, snapshot SiteDemand, input EditInput, actorID int64) (SiteDemand, error) {
	if err := (FulfillmentRouter{}).CanMutate(snapshot); err != nil {
		return SiteDemand{}, err
	}
	updated, err := e.backend.UpdateDemand(ctx, snapshot.ID, input)
	if err != nil {
		e.refresh(ctx, err)
		return SiteDemand{}, fmt.Errorf("demand: update %d: %w", snapshot.ID, err)
	}
	e.record(ctx, actorID, "demand:update", snapshot.ID, map[string]any{
		"quantity":         input.Quantity,
		"priority":         input.Priority,
		"fulfillment_type": input.FulfillmentType,
	})
	e.refresh(ctx, nil)
	return updated, nil
}

// Delete removes a pending demand.
func (e *Editor) Delete(ctx context.Context, snapshot SiteDemand, actorID int64) error {
	if err := (FulfillmentRouter{}).CanMutate(snapshot); err != nil {
		return err
	}
	if err := e.backend.DeleteDemand(ctx, snapshot.ID); err != nil {
		e.refresh(ctx, err)
		return fmt.Errorf("demand: delete %d: %w", snapshot.ID, err)
	}
	e.record(ctx, actorID, "demand:delete", snapshot.ID, nil)
	e.refresh(ctx, nil)
	return nil
}

// refresh drops the projection after any submission that may have changed
// backend state. A transport failure changed nothing, so the snapshot cache
// stays valid.
func (e *Editor) refresh(ctx context.Context, cause error) {
	if cause != nil && shared.IsTransport(cause) {
		return
	}
	if err := e.repo.Refresh(ctx); err != nil {
		e.logger.Warn("refresh after demand mutation", slog.Any("error", err))
	}
}

func (e *Editor) record(ctx context.Context, actorID int64, action string, demandID int64, meta map[string]any) {
	if e.audit == nil {
		return
	}
	_ = e.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "site_demand",
		EntityID: fmt.Sprintf("%d", demandID),
		Meta:     meta,
	})
}
