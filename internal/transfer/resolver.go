package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrSuperseded indicates a resolution finished after a newer source
// selection was made for the same demand; its result must be discarded.
var ErrSuperseded = errors.New("transfer: stock resolution superseded")

// Resolution is a successful stock lookup. Zero availability is a valid
// resolution, not a failure; the UI offers "pick another location" for zero
// and "retry" for failures.
type Resolution struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       int   `json:"available_quantity"`
}

// StockPort is the backend stock lookup.
type StockPort interface {
	GetStock(ctx context.Context, itemID, locationID int64) (int, error)
}

type resolutionScope struct {
	demandID int64
	itemID   int64
}

// Resolver answers "how much of this item does that location hold" with
// last-selection-wins ordering per demand. Every call takes a token; a
// response whose token is no longer the latest issued for its (demand, item)
// scope is discarded, so a slow lookup for a previously selected location can
// never overwrite the result for the current one.
type Resolver struct {
	stock  StockPort
	logger *slog.Logger

	mu     sync.Mutex
	latest map[resolutionScope]uint64

	group singleflight.Group
}

// NewResolver constructs Resolver.
func NewResolver(stock StockPort, logger *slog.Logger) *Resolver {
	return &Resolver{stock: stock, logger: logger, latest: make(map[resolutionScope]uint64)}
}

func (r *Resolver) issueToken(scope resolutionScope) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[scope]++
	return r.latest[scope]
}

func (r *Resolver) isLatest(scope resolutionScope, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[scope] == token
}

// Resolve looks up available stock for the candidate source location. A
// timeout or backend failure is a resolution failure, never zero stock.
// Identical concurrent lookups share one backend call.
func (r *Resolver) Resolve(ctx context.Context, demandID, itemID, locationID int64) (Resolution, error) {
	scope := resolutionScope{demandID: demandID, itemID: itemID}
	token := r.issueToken(scope)

	key := fmt.Sprintf("%d:%d", itemID, locationID)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.stock.GetStock(ctx, itemID, locationID)
	})

	var qty int
	select {
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Resolution{}, fmt.Errorf("transfer: resolve stock: %w", res.Err)
		}
		qty = res.Val.(int)
	}

	if !r.isLatest(scope, token) {
		r.logger.Debug("stale stock resolution discarded",
			slog.Int64("demand_id", demandID),
			slog.Int64("location_id", locationID))
		return Resolution{}, ErrSuperseded
	}
	return Resolution{InventoryItemID: itemID, LocationID: locationID, Available: qty}, nil
}

// Abandon invalidates any in-flight resolution for the demand, used when the
// transfer flow is closed so a late response surfaces nothing.
func (r *Resolver) Abandon(demandID, itemID int64) {
	scope := resolutionScope{demandID: demandID, itemID: itemID}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[scope]++
}

// ClampQuantity applies the resolver's clamp rule: when the configured
// quantity exceeds the freshly resolved availability, it drops to
// min(available, demandBound), with a floor of 1 when that bound is not
// positive.
func ClampQuantity(current, available, demandBound int) int {
	bound := available
	if demandBound < bound {
		bound = demandBound
	}
	if current <= bound {
		return current
	}
	if bound <= 0 {
		return 1
	}
	return bound
}
