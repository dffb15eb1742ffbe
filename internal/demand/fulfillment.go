package demand

import "fmt"

// Flow identifies the downstream flow a demand routes into.
type Flow string

const (
	FlowInterStoreTransfer Flow = "inter_store_transfer"
	FlowSitePurchase       Flow = "site_purchase"
	FlowMarketPurchase     Flow = "market_purchase"
	FlowPurchaseOrder      Flow = "purchase_order"
)

// Route is a resolved fulfillment routing decision. The seed carries the
// demand id so purchase flows open pre-populated.
type Route struct {
	Flow     Flow
	DemandID int64
	// Transfer flows are additionally seeded with the fixed destination and
	// the item being moved; the source stays user-selectable.
	ToLocationID    int64
	InventoryItemID int64
}

// FulfillmentRouter maps a demand to its fulfillment flow. Routing is a pure
// decision on (processing_status, fulfillment_type); opening the flow and
// submitting anything is the caller's business.
type FulfillmentRouter struct{}

// Route resolves the flow for the demand. Terminal demands refuse routing
// with ErrDemandLocked so the UI can disable the affordance with an
// explanation instead of silently doing nothing.
func (FulfillmentRouter) Route(d SiteDemand) (Route, error) {
	if d.ProcessingStatus.Terminal() {
		return Route{}, fmt.Errorf("%w: %s is %s", ErrDemandLocked, d.DemandNo, d.ProcessingStatus)
	}
	switch d.FulfillmentType {
	case FulfillmentInterStoreTransfer:
		return Route{
			Flow:            FlowInterStoreTransfer,
			DemandID:        d.ID,
			ToLocationID:    d.LocationID,
			InventoryItemID: d.InventoryItemID,
		}, nil
	case FulfillmentSitePurchase:
		return Route{Flow: FlowSitePurchase, DemandID: d.ID}, nil
	case FulfillmentMarketPurchase:
		return Route{Flow: FlowMarketPurchase, DemandID: d.ID}, nil
	case FulfillmentPurchaseOrder:
		return Route{Flow: FlowPurchaseOrder, DemandID: d.ID}, nil
	default:
		return Route{}, fmt.Errorf("%w: %q", ErrNotRoutable, d.FulfillmentType)
	}
}

// CanMutate reports whether edit/delete may proceed, distinguishing the
// locked terminal case from a merely non-editable one.
func (FulfillmentRouter) CanMutate(d SiteDemand) error {
	if d.ProcessingStatus.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrDemandLocked, d.DemandNo, d.ProcessingStatus)
	}
	if !Editable(d) {
		return fmt.Errorf("demand: %s is %s and can no longer be edited", d.DemandNo, d.ProcessingStatus)
	}
	return nil
}
