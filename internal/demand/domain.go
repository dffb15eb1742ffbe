package demand

import "errors"

// Priority enumerates demand urgency levels.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// FulfillmentType enumerates the mechanisms that can satisfy a demand.
type FulfillmentType string

const (
	FulfillmentInterStoreTransfer FulfillmentType = "inter_store_transfer"
	FulfillmentSitePurchase       FulfillmentType = "site_purchase"
	FulfillmentMarketPurchase     FulfillmentType = "market_purchase"
	FulfillmentPurchaseOrder      FulfillmentType = "purchase_order"
)

// Status enumerates demand processing statuses.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusInProcess Status = "In Process"
	StatusApproved  Status = "Approved"
	StatusCompleted Status = "Completed"
	StatusRejected  Status = "Rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// SiteDemand is a request for a quantity of an inventory item at a location.
// The backend of record owns every field; this service never stores demands.
type SiteDemand struct {
	ID               int64           `json:"id"`
	DemandNo         string          `json:"demand_no"`
	Quantity         int             `json:"quantity"`
	ApprovedQuantity *int            `json:"approved_quantity"`
	Priority         Priority        `json:"priority"`
	FulfillmentType  FulfillmentType `json:"fulfillment_type"`
	ProcessingStatus Status          `json:"processing_status"`
	SiteStoreOfficer int64           `json:"site_store_officer"`
	SiteManager      *int64          `json:"site_manager"`
	InventoryManager *int64          `json:"inventory_manager"`
	LocationID       int64           `json:"location_id"`
	InventoryItemID  int64           `json:"inventory_item_id"`
	ItemName         string          `json:"item_name"`
}

// Pending derives the requested quantity not yet covered by an approval.
// Never negative, never stored; a missing approved quantity counts as zero.
func Pending(d SiteDemand) int {
	approved := 0
	if d.ApprovedQuantity != nil {
		approved = *d.ApprovedQuantity
	}
	if approved < 0 {
		approved = 0
	}
	qty := d.Quantity
	if qty < 0 {
		qty = 0
	}
	if qty <= approved {
		return 0
	}
	return qty - approved
}

// ApprovedOrRequested returns the quantity a fulfillment may cover: the
// approved quantity when set, the requested quantity otherwise.
func ApprovedOrRequested(d SiteDemand) int {
	if d.ApprovedQuantity != nil {
		return *d.ApprovedQuantity
	}
	return d.Quantity
}

// ErrDemandLocked indicates a completed or rejected demand that refuses
// routing, edits and deletes.
var ErrDemandLocked = errors.New("demand: completed or rejected demands are locked")

// ErrNotRoutable indicates a fulfillment type without a known flow.
var ErrNotRoutable = errors.New("demand: no flow for fulfillment type")
