package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Location is a stock-holding site as listed by the backend of record.
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Request is a validated inter-store transfer submission. It is constructed
// only by Builder.Build, lives for one submission attempt and is discarded
// once the backend accepts or rejects it. ToLocationID always equals the
// demand's location; the destination is never user-selectable.
type Request struct {
	CommandID       uuid.UUID
	DemandID        int64
	InventoryItemID int64
	FromLocationID  int64
	ToLocationID    int64
	Quantity        int
	TransferDate    time.Time
	Remarks         string
}

// Record is the backend's acknowledgement of an accepted transfer.
type Record struct {
	ID         int64     `json:"id"`
	TransferNo string    `json:"transfer_no"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validation failures are detected before anything is sent to the backend.
var (
	// ErrMissingSource indicates no source location was chosen.
	ErrMissingSource = errors.New("transfer: source location required")
	// ErrSameLocation indicates source equals the demand's destination.
	ErrSameLocation = errors.New("transfer: source must differ from the demand's location")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("transfer: quantity must be at least 1")
	// ErrExceedsDemand indicates a quantity above the approved demand.
	ErrExceedsDemand = errors.New("transfer: quantity exceeds the approved demand")
	// ErrStockUnresolved indicates no stock resolution exists for the chosen
	// source, so feasibility cannot be checked yet.
	ErrStockUnresolved = errors.New("transfer: stock not yet resolved for source location")
)

// InsufficientStockError indicates the requested quantity exceeds what the
// source location holds.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("transfer: only %d in stock, %d requested", e.Available, e.Requested)
}
