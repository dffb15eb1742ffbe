package transfer

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/demandflow/demandflow/internal/shared"
)

type mockSubmitter struct {
	record Record
	err    error
	calls  int
	gotReq Request
}

func (m *mockSubmitter) CreateTransfer(ctx context.Context, req Request) (Record, error) {
	m.calls++
	m.gotReq = req
	return m.record, m.err
}

type mockLocations struct {
	locations []Location
	calls     int
}

func (m *mockLocations) ListLocations(ctx context.Context) ([]Location, error) {
	m.calls++
	return m.locations, nil
}

type mockRefresher struct {
	calls int
}

func (m *mockRefresher) Refresh(ctx context.Context) error {
	m.calls++
	return nil
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func testRequest() Request {
	return Request{
		CommandID:       uuid.New(),
		DemandID:        11,
		InventoryItemID: 42,
		FromLocationID:  5,
		ToLocationID:    3,
		Quantity:        4,
		TransferDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSubmitSuccess(t *testing.T) {
	backend := &mockSubmitter{record: Record{ID: 77, TransferNo: "TR-077"}}
	demands := &mockRefresher{}
	audit := &mockAudit{}
	svc := NewService(backend, &mockLocations{}, nil, 0, nil, audit, demands, testLogger())

	req := testRequest()
	record, err := svc.Submit(context.Background(), req, 7)
	require.NoError(t, err)
	require.Equal(t, "TR-077", record.TransferNo)
	require.Equal(t, req, backend.gotReq)
	require.Equal(t, 1, demands.calls)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "transfer:create", audit.logs[0].Action)
}

func TestSubmitStateConflict(t *testing.T) {
	backend := &mockSubmitter{err: &shared.StateConflictError{Entity: "site_demand", EntityID: 11, Message: "already fulfilled"}}
	demands := &mockRefresher{}
	svc := NewService(backend, &mockLocations{}, nil, 0, nil, nil, demands, testLogger())

	_, err := svc.Submit(context.Background(), testRequest(), 7)
	require.Error(t, err)
	var conflict *shared.StateConflictError
	require.ErrorAs(t, err, &conflict)
	require.Zero(t, demands.calls)
}

func TestLocationsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locations := &mockLocations{locations: []Location{{ID: 1, Name: "Central"}, {ID: 2, Name: "North"}}}
	svc := NewService(&mockSubmitter{}, locations, client, time.Minute, nil, nil, nil, testLogger())
	ctx := context.Background()

	got, err := svc.Locations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, locations.calls)

	got, err = svc.Locations(ctx)
	require.NoError(t, err)
	require.Equal(t, "Central", got[0].Name)
	require.Equal(t, 1, locations.calls)

	mr.FastForward(2 * time.Minute)

	_, err = svc.Locations(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, locations.calls)
}

func TestLocationsWithoutCache(t *testing.T) {
	locations := &mockLocations{locations: []Location{{ID: 1, Name: "Central"}}}
	svc := NewService(&mockSubmitter{}, locations, nil, 0, nil, nil, nil, testLogger())

	_, err := svc.Locations(context.Background())
	require.NoError(t, err)
	_, err = svc.Locations(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, locations.calls)
}
