package shared

// Permission strings for the demand fulfillment workflow. Permission strings
// are the single authorization authority; handlers never consult role names.
const (
	PermDemandsView    = "demands.view"
	PermDemandsEdit    = "demands.edit"
	PermDemandsApprove = "demands.approve"

	PermTransfersCreate = "transfers.create"

	PermStockView = "stock.view"
)

// WorkflowScopes lists all permissions related to the fulfillment workflow.
func WorkflowScopes() []string {
	return []string{
		PermDemandsView,
		PermDemandsEdit,
		PermDemandsApprove,
		PermTransfersCreate,
		PermStockView,
	}
}
