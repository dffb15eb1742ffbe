package demand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/demandflow/demandflow/internal/shared"
)

type mockEditorBackend struct {
	updated     SiteDemand
	err         error
	updateCalls int
	deleteCalls int
	gotInput    EditInput
}

func (m *mockEditorBackend) UpdateDemand(ctx context.Context, id int64, input EditInput) (SiteDemand, error) {
	m.updateCalls++
	m.gotInput = input
	return m.updated, m.err
}

func (m *mockEditorBackend) DeleteDemand(ctx context.Context, id int64) error {
	m.deleteCalls++
	return m.err
}

func TestEditorUpdatePending(t *testing.T) {
	backend := &mockEditorBackend{updated: SiteDemand{ID: 1, Quantity: 8}}
	repo := &mockRefresher{}
	audit := &mockAudit{}
	editor := NewEditor(backend, repo, audit, testLogger())

	snapshot := SiteDemand{ID: 1, DemandNo: "SD-001", ProcessingStatus: StatusPending}
	input := EditInput{Quantity: 8, Priority: PriorityHigh, FulfillmentType: FulfillmentSitePurchase}

	updated, err := editor.Update(context.Background(), snapshot, input, 7)
	require.NoError(t, err)
	require.Equal(t, 8, updated.Quantity)
	require.Equal(t, 1, backend.updateCalls)
	require.Equal(t, input, backend.gotInput)
	require.Equal(t, 1, repo.calls)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "demand:update", audit.logs[0].Action)
}

func TestEditorUpdateGatesBeforeNetwork(t *testing.T) {
	backend := &mockEditorBackend{}
	repo := &mockRefresher{}
	editor := NewEditor(backend, repo, nil, testLogger())

	for _, status := range []Status{StatusInProcess, StatusApproved, StatusCompleted, StatusRejected} {
		_, err := editor.Update(context.Background(), SiteDemand{ID: 1, ProcessingStatus: status}, EditInput{}, 7)
		require.Error(t, err)
	}
	require.Zero(t, backend.updateCalls)
	require.Zero(t, repo.calls)
}

func TestEditorUpdateStaleSnapshotRefreshes(t *testing.T) {
	backend := &mockEditorBackend{err: &shared.StateConflictError{Entity: "site_demand", EntityID: 1, Message: "no longer editable"}}
	repo := &mockRefresher{}
	editor := NewEditor(backend, repo, nil, testLogger())

	_, err := editor.Update(context.Background(), SiteDemand{ID: 1, ProcessingStatus: StatusPending}, EditInput{Quantity: 2}, 7)
	require.Error(t, err)
	// The conflict means local state was stale; the projection is refreshed
	// so the next listing shows the authoritative status.
	require.Equal(t, 1, repo.calls)
}

func TestEditorUpdateTransportFailureKeepsSnapshot(t *testing.T) {
	backend := &mockEditorBackend{err: &shared.TransportError{Op: "backend demands/1", Err: context.DeadlineExceeded}}
	repo := &mockRefresher{}
	editor := NewEditor(backend, repo, nil, testLogger())

	_, err := editor.Update(context.Background(), SiteDemand{ID: 1, ProcessingStatus: StatusPending}, EditInput{Quantity: 2}, 7)
	require.Error(t, err)
	require.True(t, shared.IsTransport(err))
	require.Zero(t, repo.calls)
}

func TestEditorDelete(t *testing.T) {
	backend := &mockEditorBackend{}
	repo := &mockRefresher{}
	audit := &mockAudit{}
	editor := NewEditor(backend, repo, audit, testLogger())

	err := editor.Delete(context.Background(), SiteDemand{ID: 1, ProcessingStatus: StatusPending}, 7)
	require.NoError(t, err)
	require.Equal(t, 1, backend.deleteCalls)
	require.Equal(t, 1, repo.calls)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "demand:delete", audit.logs[0].Action)

	err = editor.Delete(context.Background(), SiteDemand{ID: 2, ProcessingStatus: StatusCompleted}, 7)
	require.ErrorIs(t, err, ErrDemandLocked)
	require.Equal(t, 1, backend.deleteCalls)
}
