package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/demandflow/demandflow/internal/platform/httpx"
	"github.com/demandflow/demandflow/internal/shared"
)

// PermissionsHandler lists the permission strings the gateway enforces, and
// which of them the calling actor holds. The UI uses it to decide which
// affordances to render without hard-coding the scope list.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbacMW Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbacMW}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.WorkflowScopes()...))
		r.Get("/", h.listPermissions)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	granted := make([]string, 0)
	for _, scope := range shared.WorkflowScopes() {
		if actor.Can(scope) {
			granted = append(granted, scope)
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permissions": shared.WorkflowScopes(),
		"granted":     granted,
	})
}
