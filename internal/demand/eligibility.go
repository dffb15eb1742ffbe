package demand

// Role identifies the acting role for eligibility checks. Authorization to
// call an endpoint is a permission-string concern (internal/rbac); these
// predicates only encode the workflow's approval chain.
type Role string

const (
	RoleSiteStoreOfficer Role = "site_store_officer"
	RoleSiteManager      Role = "site_manager"
	RoleInventoryManager Role = "inventory_manager"
)

// Eligible reports whether the acting role may approve the demand.
// An inventory manager may only approve demands the site manager has already
// signed off and no inventory manager has touched yet. A site manager may
// approve any demand without a site-manager sign-off.
func Eligible(d SiteDemand, role Role) bool {
	switch role {
	case RoleInventoryManager:
		return d.SiteManager != nil && d.InventoryManager == nil
	case RoleSiteManager:
		return d.SiteManager == nil && !d.ProcessingStatus.Terminal()
	default:
		return false
	}
}

// FilterEligible returns the demands the role may approve, preserving order.
func FilterEligible(demands []SiteDemand, role Role) []SiteDemand {
	var out []SiteDemand
	for _, d := range demands {
		if Eligible(d, role) {
			out = append(out, d)
		}
	}
	return out
}

// AllEligible reports whether a non-empty selection passes Eligible for
// every member. Bulk approval is only offered when this holds.
func AllEligible(demands []SiteDemand, role Role) bool {
	if len(demands) == 0 {
		return false
	}
	for _, d := range demands {
		if !Eligible(d, role) {
			return false
		}
	}
	return true
}

// Editable reports whether the demand may still be edited or deleted.
func Editable(d SiteDemand) bool {
	return d.ProcessingStatus == StatusPending
}
