// Package backend is the HTTP client for the warehouse backend of record.
// Every demand state transition and stock level lives there; this client
// only asks and submits, translating failures into the shared error
// taxonomy so callers can tell a retryable transport fault from a state
// conflict or a field-level rejection.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/demandflow/demandflow/internal/demand"
	"github.com/demandflow/demandflow/internal/shared"
	"github.com/demandflow/demandflow/internal/transfer"
)

// Client talks to the backend of record.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	observe    func(operation string, err error)
}

// NewClient constructs a Client. The bearer token is issued by the external
// auth module and passed through verbatim.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetObserver installs a per-call observer, typically the Prometheus
// backend-call counter.
func (c *Client) SetObserver(observe func(operation string, err error)) {
	c.observe = observe
}

// Ping checks whether the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var out struct{}
	if err := c.do(ctx, http.MethodGet, "health", nil, nil, &out); err != nil {
		return err
	}
	return nil
}

type listEnvelope struct {
	Data []demand.SiteDemand `json:"data"`
	Meta struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

// ListDemands fetches one page of demands.
func (c *Client) ListDemands(ctx context.Context, filter demand.ListFilter) ([]demand.SiteDemand, shared.Pagination, error) {
	var envelope listEnvelope
	if err := c.do(ctx, http.MethodGet, "demands", filter.Values(), nil, &envelope); err != nil {
		return nil, shared.Pagination{}, err
	}
	meta := shared.NewPagination(envelope.Meta.Page, envelope.Meta.PerPage, envelope.Meta.Total)
	return envelope.Data, meta, nil
}

type approveRequest struct {
	DemandIDs []int64 `json:"demand_ids"`
}

type approveEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ApprovedCount   int      `json:"approved_count"`
		AlreadyApproved []int64  `json:"already_approved"`
		Errors          []string `json:"errors"`
	} `json:"data"`
}

// ApproveByInventoryManager submits a batch approval in one request.
func (c *Client) ApproveByInventoryManager(ctx context.Context, demandIDs []int64) (demand.BatchOutcome, error) {
	var envelope approveEnvelope
	err := c.do(ctx, http.MethodPost, "demands/approve-by-inventory-manager", nil, approveRequest{DemandIDs: demandIDs}, &envelope)
	if err != nil {
		return demand.BatchOutcome{}, err
	}
	return demand.BatchOutcome{
		ApprovedCount:   envelope.Data.ApprovedCount,
		AlreadyApproved: envelope.Data.AlreadyApproved,
		Errors:          envelope.Data.Errors,
	}, nil
}

// ListLocations fetches all locations.
func (c *Client) ListLocations(ctx context.Context) ([]transfer.Location, error) {
	var locations []transfer.Location
	if err := c.do(ctx, http.MethodGet, "locations", nil, nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// GetStock fetches the current stock of an item at a location.
func (c *Client) GetStock(ctx context.Context, itemID, locationID int64) (int, error) {
	q := url.Values{}
	q.Set("item_id", strconv.FormatInt(itemID, 10))
	q.Set("location_id", strconv.FormatInt(locationID, 10))
	var out struct {
		CurrentStock int `json:"current_stock"`
	}
	if err := c.do(ctx, http.MethodGet, "stock", q, nil, &out); err != nil {
		return 0, err
	}
	return out.CurrentStock, nil
}

type transferRequestBody struct {
	FromLocationID  int64  `json:"from_location_id"`
	ToLocationID    int64  `json:"to_location_id"`
	TransferDate    string `json:"transfer_date"`
	DemandID        int64  `json:"demand_id"`
	Remarks         string `json:"remarks"`
	InventoryItemID int64  `json:"inventory_item_id"`
	Quantity        int    `json:"quantity"`
}

// CreateTransfer submits a built transfer request.
func (c *Client) CreateTransfer(ctx context.Context, req transfer.Request) (transfer.Record, error) {
	body := transferRequestBody{
		FromLocationID:  req.FromLocationID,
		ToLocationID:    req.ToLocationID,
		TransferDate:    req.TransferDate.Format("2006-01-02"),
		DemandID:        req.DemandID,
		Remarks:         req.Remarks,
		InventoryItemID: req.InventoryItemID,
		Quantity:        req.Quantity,
	}
	var record transfer.Record
	if err := c.do(ctx, http.MethodPost, "inventory-transfers", nil, body, &record); err != nil {
		return transfer.Record{}, err
	}
	return record, nil
}

// UpdateDemand forwards an edit; the backend re-checks editability.
func (c *Client) UpdateDemand(ctx context.Context, id int64, input demand.EditInput) (demand.SiteDemand, error) {
	var updated demand.SiteDemand
	path := fmt.Sprintf("demands/%d", id)
	if err := c.do(ctx, http.MethodPut, path, nil, input, &updated); err != nil {
		return demand.SiteDemand{}, err
	}
	return updated, nil
}

// DeleteDemand forwards a delete; the backend re-checks editability.
func (c *Client) DeleteDemand(ctx context.Context, id int64) error {
	path := fmt.Sprintf("demands/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (err error) {
	if c.observe != nil {
		defer func() {
			c.observe(method+" "+path, err)
		}()
	}
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(query) > 0 {
		endpoint = fmt.Sprintf("%s?%s", endpoint, query.Encode())
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &shared.TransportError{Op: "backend " + path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return c.decodeError(path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

type errorEnvelope struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func (c *Client) decodeError(path string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var envelope errorEnvelope
	_ = json.Unmarshal(payload, &envelope)

	switch {
	case resp.StatusCode >= 500:
		return &shared.TransportError{Op: "backend " + path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusConflict:
		msg := envelope.Message
		if msg == "" {
			msg = "changed by another actor"
		}
		return &shared.StateConflictError{Entity: path, Message: msg}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &shared.ServerValidationError{Message: envelope.Message, Fields: envelope.Errors}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("backend %s: %w", path, shared.ErrNotFound)
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("backend %s: %w", path, shared.ErrForbidden)
	default:
		return fmt.Errorf("backend %s: unexpected status %d", path, resp.StatusCode)
	}
}
