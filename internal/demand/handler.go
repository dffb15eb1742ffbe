package demand

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/demandflow/demandflow/internal/platform/httpx"
	"github.com/demandflow/demandflow/internal/rbac"
	"github.com/demandflow/demandflow/internal/shared"
)

// HistoryPort reads the gateway-local approval journal for one demand.
type HistoryPort interface {
	ListByDemand(ctx context.Context, demandID int64) ([]shared.ApprovalLog, error)
}

// AuditReaderPort reads recent audit entries for one entity.
type AuditReaderPort interface {
	ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]shared.AuditLog, error)
}

// Handler wires HTTP endpoints for the demand workflow.
type Handler struct {
	logger      *slog.Logger
	repo        *Repository
	coordinator *Coordinator
	editor      *Editor
	journal     HistoryPort
	auditTrail  AuditReaderPort
	router      FulfillmentRouter
	rbac        rbac.Middleware
	validate    *validator.Validate
}

// NewHandler constructs the demand handler. journal and auditTrail may be
// nil; the history endpoint then serves empty lists.
func NewHandler(logger *slog.Logger, repo *Repository, coordinator *Coordinator, editor *Editor, journal HistoryPort, auditTrail AuditReaderPort, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:      logger,
		repo:        repo,
		coordinator: coordinator,
		editor:      editor,
		journal:     journal,
		auditTrail:  auditTrail,
		rbac:        rbacMW,
		validate:    validator.New(),
	}
}

// MountRoutes registers demand routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermDemandsView))
		r.Get("/", h.handleList)
		r.Get("/{id}/route", h.handleRoute)
		r.Get("/{id}/history", h.handleHistory)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermDemandsApprove))
		r.Post("/bulk-approve", h.handleBulkApprove)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermDemandsEdit))
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

// demandRow is a listed demand plus the derived flags the UI keys its
// affordances on.
type demandRow struct {
	SiteDemand
	PendingQuantity int  `json:"pending_quantity"`
	Editable        bool `json:"editable"`
	BulkApprovable  bool `json:"bulk_approvable"`
}

type listResponse struct {
	Data []demandRow `json:"data"`
	Meta struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	page, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list demands", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	resp := listResponse{Data: make([]demandRow, 0, len(page.Demands))}
	for _, d := range page.Demands {
		resp.Data = append(resp.Data, demandRow{
			SiteDemand:      d,
			PendingQuantity: Pending(d),
			Editable:        Editable(d),
			BulkApprovable:  Eligible(d, RoleInventoryManager),
		})
	}
	resp.Meta.Page = page.Meta.Page
	resp.Meta.PerPage = page.Meta.PerPage
	resp.Meta.Total = page.Meta.Total
	resp.Meta.TotalPages = page.Meta.TotalPages
	httpx.JSON(w, http.StatusOK, resp)
}

func filterFromQuery(r *http.Request) ListFilter {
	q := r.URL.Query()
	page, perPage := shared.PageFromQuery(q)
	locationID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
	return ListFilter{
		Search:          q.Get("search"),
		Status:          Status(q.Get("processing_status")),
		Priority:        Priority(q.Get("priority")),
		FulfillmentType: FulfillmentType(q.Get("fulfillment_type")),
		LocationID:      locationID,
		SortBy:          q.Get("sort_by"),
		SortDesc:        q.Get("sort_dir") == "desc",
		Page:            page,
		PerPage:         perPage,
	}
}

type bulkApproveRequest struct {
	// Selection ids arrive as the UI collected them; the command
	// constructor normalizes and rejects anything non-numeric.
	DemandIDs []json.Number `json:"demand_ids"`
}

type bulkApproveResponse struct {
	CommandID       string   `json:"command_id"`
	ApprovedCount   int      `json:"approved_count"`
	AlreadyApproved []int64  `json:"already_approved"`
	Errors          []string `json:"errors"`
}

func (h *Handler) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	var req bulkApproveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	raw := make([]string, 0, len(req.DemandIDs))
	for _, n := range req.DemandIDs {
		raw = append(raw, n.String())
	}
	actor := shared.ActorFromContext(r.Context())
	cmd, err := NewApprovalCommand(actorID(actor), raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Selection", err.Error())
		return
	}
	outcome, err := h.coordinator.ApproveBatch(r.Context(), cmd)
	if err != nil {
		h.logger.Error("bulk approve", slog.String("command_id", cmd.ID.String()), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	resp := bulkApproveResponse{
		CommandID:       cmd.ID.String(),
		ApprovedCount:   outcome.ApprovedCount,
		AlreadyApproved: outcome.AlreadyApproved,
		Errors:          outcome.Errors,
	}
	if resp.AlreadyApproved == nil {
		resp.AlreadyApproved = []int64{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRoute(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := snapshotFromQuery(w, r)
	if !ok {
		return
	}
	route, err := h.router.Route(snapshot)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"flow":              route.Flow,
		"demand_id":         route.DemandID,
		"to_location_id":    route.ToLocationID,
		"inventory_item_id": route.InventoryItemID,
	})
}

type historyEntry struct {
	CommandID string `json:"command_id"`
	ActorID   int64  `json:"actor_id"`
	Action    string `json:"action"`
	Note      string `json:"note,omitempty"`
	At        string `json:"at"`
}

// handleHistory serves the gateway-local record of approval commands and
// mutations for one demand. The backend of record keeps its own history;
// this one answers "what went through this gateway, and who sent it".
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid demand id")
		return
	}
	approvals := make([]historyEntry, 0)
	if h.journal != nil {
		logs, err := h.journal.ListByDemand(r.Context(), id)
		if err != nil {
			h.logger.Error("list approval journal", slog.Int64("demand_id", id), slog.Any("error", err))
			h.respondError(w, err)
			return
		}
		for _, l := range logs {
			approvals = append(approvals, historyEntry{
				CommandID: l.CommandID.String(),
				ActorID:   l.ActorID,
				Action:    string(l.Action),
				Note:      l.Note,
				At:        l.At.UTC().Format(time.RFC3339),
			})
		}
	}
	audits := make([]shared.AuditLog, 0)
	if h.auditTrail != nil {
		logs, err := h.auditTrail.ListByEntity(r.Context(), "site_demand", strconv.FormatInt(id, 10), 50)
		if err != nil {
			h.logger.Error("list audit trail", slog.Int64("demand_id", id), slog.Any("error", err))
			h.respondError(w, err)
			return
		}
		audits = logs
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"demand_id": id,
		"approvals": approvals,
		"audit":     audits,
	})
}

type updateRequest struct {
	Snapshot SiteDemand `json:"snapshot"`
	Changes  EditInput  `json:"changes"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid demand id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	req.Snapshot.ID = id
	if err := h.validate.Struct(req.Changes); err != nil {
		httpx.ValidationProblem(w, "invalid demand fields", validationFields(err))
		return
	}
	actor := shared.ActorFromContext(r.Context())
	updated, err := h.editor.Update(r.Context(), req.Snapshot, req.Changes, actorID(actor))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := snapshotFromQuery(w, r)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.editor.Delete(r.Context(), snapshot, actorID(actor)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// snapshotFromQuery rebuilds the demand snapshot the UI row holds from
// query parameters, enough for the optimistic mutation gate.
func snapshotFromQuery(w http.ResponseWriter, r *http.Request) (SiteDemand, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid demand id")
		return SiteDemand{}, false
	}
	q := r.URL.Query()
	status := Status(q.Get("processing_status"))
	if status == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "processing_status is required")
		return SiteDemand{}, false
	}
	locationID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
	itemID, _ := strconv.ParseInt(q.Get("inventory_item_id"), 10, 64)
	return SiteDemand{
		ID:               id,
		DemandNo:         q.Get("demand_no"),
		ProcessingStatus: status,
		FulfillmentType:  FulfillmentType(q.Get("fulfillment_type")),
		LocationID:       locationID,
		InventoryItemID:  itemID,
	}, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var conflict *shared.StateConflictError
	var serverValidation *shared.ServerValidationError
	switch {
	case errors.Is(err, ErrDemandLocked):
		httpx.Problem(w, http.StatusConflict, "Demand Locked", err.Error())
	case errors.Is(err, ErrNotRoutable):
		httpx.Problem(w, http.StatusBadRequest, "Not Routable", err.Error())
	case errors.As(err, &conflict):
		httpx.Problem(w, http.StatusConflict, "State Conflict", conflict.Error())
	case errors.As(err, &serverValidation):
		httpx.ValidationProblem(w, serverValidation.Error(), serverValidation.Fields)
	case shared.IsTransport(err):
		httpx.RetryableProblem(w, "the backend is unavailable; the request may be retried as-is")
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	default:
		httpx.Problem(w, http.StatusBadRequest, "Request Failed", err.Error())
	}
}

func validationFields(err error) map[string][]string {
	fields := map[string][]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], fe.Tag())
		}
	}
	return fields
}

func actorID(actor *shared.Actor) int64 {
	if actor == nil {
		return 0
	}
	return actor.ID
}
