package transfer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/demandflow/demandflow/internal/demand"
)

// Builder assembles a stock-aware transfer request for one demand. It keeps
// the latest stock resolution per candidate source and the quantity the user
// has configured so far; Build turns that state into an immutable Request or
// the first validation failure, in order, without touching the backend.
type Builder struct {
	demand demand.SiteDemand

	mu       sync.Mutex
	resolved map[int64]int
	quantity int
}

// NewBuilder constructs a Builder for the demand. The initial quantity is
// the approved quantity when present, the requested quantity otherwise.
func NewBuilder(d demand.SiteDemand) *Builder {
	qty := demand.ApprovedOrRequested(d)
	if qty < 1 {
		qty = 1
	}
	return &Builder{demand: d, resolved: make(map[int64]int), quantity: qty}
}

// Quantity returns the currently configured quantity.
func (b *Builder) Quantity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quantity
}

// SetQuantity records the user-chosen quantity without validating it; Build
// performs the full ordered validation.
func (b *Builder) SetQuantity(qty int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quantity = qty
}

// ObserveResolution records a stock resolution for a source location and
// clamps the configured quantity down when it no longer fits. Returns the
// quantity after clamping.
func (b *Builder) ObserveResolution(res Resolution) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved[res.LocationID] = res.Available
	b.quantity = ClampQuantity(b.quantity, res.Available, demand.ApprovedOrRequested(b.demand))
	return b.quantity
}

// Build validates and assembles the transfer request. Checks run in order
// and short-circuit on the first failure: source chosen and distinct from
// the destination, quantity at least 1, quantity within resolved stock,
// quantity within the approved demand.
func (b *Builder) Build(fromLocationID int64, quantity int, date time.Time, remarks string) (Request, error) {
	if fromLocationID == 0 {
		return Request{}, ErrMissingSource
	}
	if fromLocationID == b.demand.LocationID {
		return Request{}, ErrSameLocation
	}
	if quantity < 1 {
		return Request{}, ErrInvalidQuantity
	}
	b.mu.Lock()
	available, ok := b.resolved[fromLocationID]
	b.mu.Unlock()
	if !ok {
		return Request{}, ErrStockUnresolved
	}
	if quantity > available {
		return Request{}, &InsufficientStockError{Available: available, Requested: quantity}
	}
	if quantity > demand.ApprovedOrRequested(b.demand) {
		return Request{}, ErrExceedsDemand
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return Request{
		CommandID:       uuid.New(),
		DemandID:        b.demand.ID,
		InventoryItemID: b.demand.InventoryItemID,
		FromLocationID:  fromLocationID,
		// The destination is fixed to the demand's location so a transfer
		// can never be misdirected to the wrong requesting site.
		ToLocationID: b.demand.LocationID,
		Quantity:     quantity,
		TransferDate: date,
		Remarks:      remarks,
	}, nil
}
