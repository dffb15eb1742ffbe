package transfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockStock struct {
	mu     sync.Mutex
	levels map[int64]int
	errs   map[int64]error
	block  map[int64]chan struct{}
	calls  int
}

func newMockStock() *mockStock {
	return &mockStock{
		levels: make(map[int64]int),
		errs:   make(map[int64]error),
		block:  make(map[int64]chan struct{}),
	}
}

func (m *mockStock) GetStock(ctx context.Context, itemID, locationID int64) (int, error) {
	m.mu.Lock()
	gate := m.block[locationID]
	m.calls++
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[locationID]; err != nil {
		return 0, err
	}
	return m.levels[locationID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveReturnsStock(t *testing.T) {
	stock := newMockStock()
	stock.levels[5] = 37
	r := NewResolver(stock, testLogger())

	res, err := r.Resolve(context.Background(), 11, 42, 5)
	require.NoError(t, err)
	require.Equal(t, Resolution{InventoryItemID: 42, LocationID: 5, Available: 37}, res)
}

func TestResolveZeroStockIsValid(t *testing.T) {
	stock := newMockStock()
	r := NewResolver(stock, testLogger())

	res, err := r.Resolve(context.Background(), 11, 42, 6)
	require.NoError(t, err)
	require.Zero(t, res.Available)
}

func TestResolveFailureIsNotZeroStock(t *testing.T) {
	stock := newMockStock()
	stock.errs[5] = errors.New("boom")
	r := NewResolver(stock, testLogger())

	_, err := r.Resolve(context.Background(), 11, 42, 5)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSuperseded)
}

func TestResolveLastSelectionWins(t *testing.T) {
	stock := newMockStock()
	stock.levels[5] = 50
	stock.levels[6] = 0
	gate := make(chan struct{})
	stock.block[5] = gate
	r := NewResolver(stock, testLogger())

	// A lookup for the first selected source stalls in flight.
	slowErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), 11, 42, 5)
		slowErr <- err
	}()

	// Wait until the slow lookup has taken its token.
	require.Eventually(t, func() bool {
		stock.mu.Lock()
		defer stock.mu.Unlock()
		return stock.calls == 1
	}, time.Second, time.Millisecond)

	// The user picks another source; its lookup completes first.
	res, err := r.Resolve(context.Background(), 11, 42, 6)
	require.NoError(t, err)
	require.Zero(t, res.Available)

	// The slow response arrives afterwards and is discarded, so the stale
	// availability of 50 never surfaces.
	close(gate)
	require.ErrorIs(t, <-slowErr, ErrSuperseded)
}

func TestResolveScopesAreIndependent(t *testing.T) {
	stock := newMockStock()
	stock.levels[5] = 50
	r := NewResolver(stock, testLogger())

	_, err := r.Resolve(context.Background(), 11, 42, 5)
	require.NoError(t, err)

	// A resolution for another demand does not supersede this one.
	res, err := r.Resolve(context.Background(), 12, 42, 5)
	require.NoError(t, err)
	require.Equal(t, 50, res.Available)
}

func TestAbandonDiscardsInFlight(t *testing.T) {
	stock := newMockStock()
	stock.levels[5] = 50
	gate := make(chan struct{})
	stock.block[5] = gate
	r := NewResolver(stock, testLogger())

	resErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), 11, 42, 5)
		resErr <- err
	}()
	require.Eventually(t, func() bool {
		stock.mu.Lock()
		defer stock.mu.Unlock()
		return stock.calls == 1
	}, time.Second, time.Millisecond)

	r.Abandon(11, 42)
	close(gate)
	require.ErrorIs(t, <-resErr, ErrSuperseded)
}

func TestResolveContextCancelled(t *testing.T) {
	stock := newMockStock()
	gate := make(chan struct{})
	stock.block[5] = gate
	defer close(gate)
	r := NewResolver(stock, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, 11, 42, 5)
	require.ErrorIs(t, err, context.Canceled)
}
