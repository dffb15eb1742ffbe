package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/demandflow/demandflow/internal/shared"
)

func newPermissionsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mw := Middleware{}
	handler := NewPermissionsHandler(mw)
	r := chi.NewRouter()
	r.Use(mw.WithActor)
	r.Route("/permissions", handler.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestListPermissions(t *testing.T) {
	srv := newPermissionsServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/permissions", nil)
	require.NoError(t, err)
	req.Header.Set("X-Actor-Id", "7")
	req.Header.Set("X-Actor-Permissions", shared.PermDemandsView+","+shared.PermStockView)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Permissions []string `json:"permissions"`
		Granted     []string `json:"granted"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, shared.WorkflowScopes(), body.Permissions)
	require.ElementsMatch(t, []string{shared.PermDemandsView, shared.PermStockView}, body.Granted)
}

func TestListPermissionsAnonymous(t *testing.T) {
	srv := newPermissionsServer(t)

	resp, err := http.Get(srv.URL + "/permissions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
