package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/demandflow/demandflow/internal/demand"
	"github.com/demandflow/demandflow/internal/shared"
	"github.com/demandflow/demandflow/internal/transfer"
)

func TestListDemands(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("processing_status")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": 1, "demand_no": "SD-001", "quantity": 10, "processing_status": "Pending"},
				{"id": 2, "demand_no": "SD-002", "quantity": 5, "approved_quantity": 5, "processing_status": "Approved"},
			},
			"meta": map[string]any{"page": 1, "per_page": 20, "total": 2, "total_pages": 1},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token", time.Second)
	demands, meta, err := client.ListDemands(context.Background(), demand.ListFilter{Status: demand.StatusPending})
	require.NoError(t, err)
	require.Equal(t, "Bearer secret-token", gotAuth)
	require.Equal(t, "/demands", gotPath)
	require.Equal(t, "Pending", gotQuery)
	require.Len(t, demands, 2)
	require.Equal(t, "SD-001", demands[0].DemandNo)
	require.Nil(t, demands[0].ApprovedQuantity)
	require.NotNil(t, demands[1].ApprovedQuantity)
	require.Equal(t, 5, *demands[1].ApprovedQuantity)
	require.Equal(t, 2, meta.Total)
	require.Equal(t, 1, meta.TotalPages)
}

func TestApproveByInventoryManager(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/demands/approve-by-inventory-manager", r.URL.Path)
		var body struct {
			DemandIDs []int64 `json:"demand_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []int64{1, 2, 3}, body.DemandIDs)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "1 demand could not be approved",
			"data": map[string]any{
				"approved_count":   2,
				"already_approved": []int64{2},
				"errors":           []string{},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token", time.Second)
	outcome, err := client.ApproveByInventoryManager(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 2, outcome.ApprovedCount)
	require.Equal(t, []int64{2}, outcome.AlreadyApproved)
	require.Empty(t, outcome.Errors)
}

func TestGetStock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "42", r.URL.Query().Get("item_id"))
		require.Equal(t, "5", r.URL.Query().Get("location_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current_stock": 37}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token", time.Second)
	qty, err := client.GetStock(context.Background(), 42, 5)
	require.NoError(t, err)
	require.Equal(t, 37, qty)
}

func TestCreateTransferEncodesDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "2026-03-01", body["transfer_date"])
		require.Equal(t, float64(3), body["to_location_id"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 77, "transfer_no": "TR-077", "created_at": time.Now()})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token", time.Second)
	record, err := client.CreateTransfer(context.Background(), transfer.Request{
		CommandID:       uuid.New(),
		DemandID:        11,
		InventoryItemID: 42,
		FromLocationID:  5,
		ToLocationID:    3,
		Quantity:        4,
		TransferDate:    time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "TR-077", record.TransferNo)
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error is transport",
			status: http.StatusInternalServerError,
			body:   `{"message":"boom"}`,
			check: func(t *testing.T, err error) {
				require.True(t, shared.IsTransport(err))
			},
		},
		{
			name:   "conflict is state conflict",
			status: http.StatusConflict,
			body:   `{"message":"demand already approved"}`,
			check: func(t *testing.T, err error) {
				var conflict *shared.StateConflictError
				require.ErrorAs(t, err, &conflict)
				require.Equal(t, "demand already approved", conflict.Message)
			},
		},
		{
			name:   "unprocessable is server validation",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":"validation failed","errors":{"quantity":["must not exceed stock","must not exceed demand"]}}`,
			check: func(t *testing.T, err error) {
				var validation *shared.ServerValidationError
				require.ErrorAs(t, err, &validation)
				require.Len(t, validation.Fields["quantity"], 2)
				require.Len(t, validation.Messages(), 2)
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, shared.ErrNotFound)
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, shared.ErrForbidden)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "secret-token", time.Second)
			_, _, err := client.ListDemands(context.Background(), demand.ListFilter{})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestNetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "secret-token", time.Second)
	err := client.Ping(context.Background())
	require.True(t, shared.IsTransport(err))
}

func TestObserverSeesEveryCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var ops []string
	var failures int
	client := NewClient(srv.URL, "secret-token", time.Second)
	client.SetObserver(func(operation string, err error) {
		ops = append(ops, operation)
		if err != nil {
			failures++
		}
	})

	_ = client.Ping(context.Background())
	require.Equal(t, []string{"GET health"}, ops)
	require.Equal(t, 1, failures)
}
