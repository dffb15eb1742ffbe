package transfer

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/demandflow/demandflow/internal/demand"
	"github.com/demandflow/demandflow/internal/platform/httpx"
	"github.com/demandflow/demandflow/internal/rbac"
	"github.com/demandflow/demandflow/internal/shared"
)

// Handler wires HTTP endpoints for the inter-store transfer flow.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs the transfer handler.
func NewHandler(logger *slog.Logger, resolver *Resolver, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, resolver: resolver, service: service, rbac: rbacMW, validate: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockView, shared.PermTransfersCreate))
		r.Get("/stock", h.handleResolveStock)
		r.Delete("/stock", h.handleAbandon)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermTransfersCreate))
		r.Post("/", h.handleSubmit)
	})
}

// MountLocationRoutes registers the source-location picker.
func (h *Handler) MountLocationRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockView, shared.PermTransfersCreate))
		r.Get("/", h.handleLocations)
	})
}

func (h *Handler) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.Locations(r.Context())
	if err != nil {
		h.logger.Error("list locations", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, locations)
}

func (h *Handler) handleResolveStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	demandID, _ := strconv.ParseInt(q.Get("demand_id"), 10, 64)
	itemID, _ := strconv.ParseInt(q.Get("item_id"), 10, 64)
	locationID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
	if demandID <= 0 || itemID <= 0 || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "demand_id, item_id and location_id are required")
		return
	}
	res, err := h.resolver.Resolve(r.Context(), demandID, itemID, locationID)
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			// A newer selection owns the flow state; this result is noise.
			httpx.Problem(w, http.StatusConflict, "Superseded", "a newer source selection is in flight")
			return
		}
		h.logger.Error("resolve stock",
			slog.Int64("demand_id", demandID),
			slog.Int64("location_id", locationID),
			slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	demandID, _ := strconv.ParseInt(q.Get("demand_id"), 10, 64)
	itemID, _ := strconv.ParseInt(q.Get("item_id"), 10, 64)
	if demandID <= 0 || itemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "demand_id and item_id are required")
		return
	}
	h.resolver.Abandon(demandID, itemID)
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	Demand         demand.SiteDemand `json:"demand" validate:"required"`
	FromLocationID int64             `json:"from_location_id"`
	Quantity       int               `json:"quantity"`
	TransferDate   string            `json:"transfer_date"`
	Remarks        string            `json:"remarks" validate:"max=500"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.Demand.ID <= 0 || req.Demand.InventoryItemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "demand snapshot is incomplete")
		return
	}
	if req.Demand.ProcessingStatus.Terminal() {
		httpx.Problem(w, http.StatusConflict, "Demand Locked", "completed or rejected demands cannot be fulfilled")
		return
	}

	var date time.Time
	if req.TransferDate != "" {
		parsed, err := time.Parse("2006-01-02", req.TransferDate)
		if err != nil {
			httpx.ValidationProblem(w, "invalid transfer date", map[string][]string{"transfer_date": {"must be YYYY-MM-DD"}})
			return
		}
		date = parsed
	}

	builder := NewBuilder(req.Demand)
	// Stock is only consulted once the request survives the checks that
	// need no backend state; a locally invalid submission never produces
	// a lookup. Build re-runs the same checks in order afterwards.
	if req.FromLocationID > 0 && req.FromLocationID != req.Demand.LocationID && req.Quantity >= 1 {
		res, err := h.resolver.Resolve(r.Context(), req.Demand.ID, req.Demand.InventoryItemID, req.FromLocationID)
		if err != nil && !errors.Is(err, ErrSuperseded) {
			h.respondError(w, err)
			return
		}
		if err == nil {
			builder.ObserveResolution(res)
		}
	}

	built, err := builder.Build(req.FromLocationID, req.Quantity, date, req.Remarks)
	if err != nil {
		h.respondValidation(w, err)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	var actorIDValue int64
	if actor != nil {
		actorIDValue = actor.ID
	}
	record, err := h.service.Submit(r.Context(), built, actorIDValue)
	if err != nil {
		h.logger.Error("submit transfer",
			slog.Int64("demand_id", built.DemandID),
			slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

// respondValidation maps builder failures; all are client-recoverable and
// none reached the backend.
func (h *Handler) respondValidation(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrMissingSource):
		httpx.ValidationProblem(w, err.Error(), map[string][]string{"from_location_id": {"required"}})
	case errors.Is(err, ErrSameLocation):
		httpx.ValidationProblem(w, err.Error(), map[string][]string{"from_location_id": {"must differ from the demand's location"}})
	case errors.Is(err, ErrInvalidQuantity):
		httpx.ValidationProblem(w, err.Error(), map[string][]string{"quantity": {"must be at least 1"}})
	case errors.As(err, &insufficient):
		httpx.ValidationProblem(w, insufficient.Error(), map[string][]string{"quantity": {insufficient.Error()}})
	case errors.Is(err, ErrExceedsDemand):
		httpx.ValidationProblem(w, err.Error(), map[string][]string{"quantity": {"exceeds the approved demand"}})
	case errors.Is(err, ErrStockUnresolved):
		httpx.ValidationProblem(w, err.Error(), map[string][]string{"from_location_id": {"stock not resolved"}})
	default:
		httpx.Problem(w, http.StatusBadRequest, "Request Failed", err.Error())
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var conflict *shared.StateConflictError
	var serverValidation *shared.ServerValidationError
	switch {
	case errors.As(err, &conflict):
		httpx.Problem(w, http.StatusConflict, "State Conflict", conflict.Error())
	case errors.As(err, &serverValidation):
		httpx.ValidationProblem(w, serverValidation.Error(), serverValidation.Fields)
	case shared.IsTransport(err):
		httpx.RetryableProblem(w, "the backend is unavailable; the request may be retried as-is")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Already Submitted", "this transfer command was already accepted")
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	default:
		httpx.Problem(w, http.StatusBadRequest, "Request Failed", err.Error())
	}
}
