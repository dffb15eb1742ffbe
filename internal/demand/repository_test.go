package demand

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/demandflow/demandflow/internal/shared"
)

type mockLister struct {
	demands []SiteDemand
	meta    shared.Pagination
	err     error
	calls   int
}

func (m *mockLister) ListDemands(ctx context.Context, filter ListFilter) ([]SiteDemand, shared.Pagination, error) {
	m.calls++
	return m.demands, m.meta, m.err
}

func newTestRepo(t *testing.T, lister *mockLister) *Repository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRepository(lister, client, time.Minute, testLogger())
}

func TestRepositoryListCachesSnapshot(t *testing.T) {
	lister := &mockLister{
		demands: []SiteDemand{{ID: 1, DemandNo: "SD-001"}},
		meta:    shared.NewPagination(1, 20, 1),
	}
	repo := newTestRepo(t, lister)
	ctx := context.Background()

	filter := ListFilter{Status: StatusPending}
	page, err := repo.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, page.Demands, 1)
	require.Equal(t, 1, lister.calls)

	// Second listing with the same filter is served from the snapshot.
	page, err = repo.List(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, "SD-001", page.Demands[0].DemandNo)
	require.Equal(t, 1, lister.calls)

	// A different filter is a different snapshot.
	_, err = repo.List(ctx, ListFilter{Status: StatusApproved})
	require.NoError(t, err)
	require.Equal(t, 2, lister.calls)
}

func TestRepositoryRefreshDropsSnapshots(t *testing.T) {
	lister := &mockLister{meta: shared.NewPagination(1, 20, 0)}
	repo := newTestRepo(t, lister)
	ctx := context.Background()

	_, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, lister.calls)

	require.NoError(t, repo.Refresh(ctx))

	_, err = repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, lister.calls)
}

func TestRepositoryWithoutCache(t *testing.T) {
	lister := &mockLister{meta: shared.NewPagination(1, 20, 0)}
	repo := NewRepository(lister, nil, time.Minute, testLogger())
	ctx := context.Background()

	_, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	_, err = repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, lister.calls)
	require.NoError(t, repo.Refresh(ctx))
}

func TestRepositoryWarm(t *testing.T) {
	lister := &mockLister{
		demands: []SiteDemand{{ID: 2, DemandNo: "SD-002"}},
		meta:    shared.NewPagination(1, 20, 1),
	}
	repo := newTestRepo(t, lister)
	ctx := context.Background()

	filter := ListFilter{Status: StatusInProcess}
	require.NoError(t, repo.Warm(ctx, filter))
	require.Equal(t, 1, lister.calls)

	page, err := repo.List(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, "SD-002", page.Demands[0].DemandNo)
	require.Equal(t, 1, lister.calls)
}

func TestListFilterValues(t *testing.T) {
	f := ListFilter{
		Search:          "cement",
		Status:          StatusPending,
		Priority:        PriorityHigh,
		FulfillmentType: FulfillmentInterStoreTransfer,
		LocationID:      3,
		SortBy:          "created_at",
		SortDesc:        true,
		Page:            2,
		PerPage:         50,
	}
	q := f.Values()
	require.Equal(t, "cement", q.Get("search"))
	require.Equal(t, "Pending", q.Get("processing_status"))
	require.Equal(t, "High", q.Get("priority"))
	require.Equal(t, "inter_store_transfer", q.Get("fulfillment_type"))
	require.Equal(t, "3", q.Get("location_id"))
	require.Equal(t, "created_at", q.Get("sort_by"))
	require.Equal(t, "desc", q.Get("sort_dir"))
	require.Equal(t, "2", q.Get("page"))
	require.Equal(t, "50", q.Get("per_page"))

	defaults := ListFilter{}.Values()
	require.Equal(t, "1", defaults.Get("page"))
	require.Equal(t, "20", defaults.Get("per_page"))
	require.Empty(t, defaults.Get("processing_status"))
}
