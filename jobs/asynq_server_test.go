package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type mockEnqueuer struct {
	calls int
	err   error
}

func (m *mockEnqueuer) EnqueueDemandWarmup(ctx context.Context, payload DemandWarmupPayload) (*asynq.TaskInfo, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func newJobsServer(t *testing.T, enqueuer Enqueuer) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(nil, enqueuer, logger)
	r := chi.NewRouter()
	r.Route("/jobs", handler.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestWarmupTriggerEnqueues(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	srv := newJobsServer(t, enqueuer)

	resp, err := http.Post(srv.URL+"/jobs/warmup", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, 1, enqueuer.calls)

	var body struct {
		TaskID string `json:"task_id"`
		Queue  string `json:"queue"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "task-1", body.TaskID)
	require.Equal(t, QueueDefault, body.Queue)
}

func TestWarmupTriggerWithoutClient(t *testing.T) {
	srv := newJobsServer(t, nil)

	resp, err := http.Post(srv.URL+"/jobs/warmup", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthWithoutInspector(t *testing.T) {
	srv := newJobsServer(t, nil)

	resp, err := http.Get(srv.URL + "/jobs/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Queue   string `json:"queue"`
		Pending int    `json:"pending"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, QueueDefault, body.Queue)
}
