package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/demandflow/demandflow/internal/shared"
)

const locationsCacheKey = "locations:all"

// SubmitterPort is the backend transfer creation operation.
type SubmitterPort interface {
	CreateTransfer(ctx context.Context, req Request) (Record, error)
}

// LocationPort is the backend location listing.
type LocationPort interface {
	ListLocations(ctx context.Context) ([]Location, error)
}

// RefresherPort invalidates the demand projection after a submission.
type RefresherPort interface {
	Refresh(ctx context.Context) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service submits built transfer requests and serves the source-location
// picker. Submission is idempotent per command id: resubmitting after a
// transport failure cannot create a second transfer.
type Service struct {
	backend     SubmitterPort
	locations   LocationPort
	cache       *redis.Client
	cacheTTL    time.Duration
	idempotency *shared.IdempotencyStore
	audit       AuditPort
	demands     RefresherPort
	logger      *slog.Logger
}

// NewService constructs Service. cache, idempotency and audit may be nil.
func NewService(backend SubmitterPort, locations LocationPort, cache *redis.Client, cacheTTL time.Duration, idem *shared.IdempotencyStore, audit AuditPort, demands RefresherPort, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{
		backend:     backend,
		locations:   locations,
		cache:       cache,
		cacheTTL:    cacheTTL,
		idempotency: idem,
		audit:       audit,
		demands:     demands,
		logger:      logger,
	}
}

// Submit sends a built request to the backend. On a transport failure the
// idempotency key is released so the identical command can be resubmitted;
// on success the demand projection is refreshed.
func (s *Service) Submit(ctx context.Context, req Request, actorID int64) (Record, error) {
	key := fmt.Sprintf("transfer:%s", req.CommandID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "transfer"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Record{}, fmt.Errorf("transfer: command %s already submitted: %w", req.CommandID, err)
			}
			return Record{}, err
		}
		insertedKey = true
	}

	record, err := s.backend.CreateTransfer(ctx, req)
	if err != nil {
		if insertedKey && shared.IsTransport(err) {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Record{}, fmt.Errorf("transfer: submit: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "transfer:create",
			Entity:   "inventory_transfer",
			EntityID: fmt.Sprintf("%d", record.ID),
			Meta: map[string]any{
				"demand_id":         req.DemandID,
				"inventory_item_id": req.InventoryItemID,
				"from_location_id":  req.FromLocationID,
				"to_location_id":    req.ToLocationID,
				"quantity":          req.Quantity,
			},
		})
	}
	if s.demands != nil {
		if err := s.demands.Refresh(ctx); err != nil {
			s.logger.Warn("refresh after transfer", slog.Any("error", err))
		}
	}
	return record, nil
}

// Locations lists transfer source candidates, cached briefly since the set
// changes rarely.
func (s *Service) Locations(ctx context.Context) ([]Location, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, locationsCacheKey).Bytes()
		if err == nil {
			var locs []Location
			if err := json.Unmarshal(payload, &locs); err == nil {
				return locs, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("locations cache read", slog.Any("error", err))
		}
	}
	locs, err := s.locations.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("transfer: list locations: %w", err)
	}
	if s.cache != nil {
		if raw, err := json.Marshal(locs); err == nil {
			if err := s.cache.Set(ctx, locationsCacheKey, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("locations cache write", slog.Any("error", err))
			}
		}
	}
	return locs, nil
}
