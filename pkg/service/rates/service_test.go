package rates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	infracache "github.com/subsy/fx/infra/cache"
	"github.com/subsy/fx/internal/fixtures/mocks"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/provider/exchange"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *infracache.MemoryCache {
	t.Helper()
	store := infracache.NewMemoryCache()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// blockingFetcher holds every fetch until release is closed.
type blockingFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	rates   core.RateTable
	err     error
}

func newBlockingFetcher(rates core.RateTable) *blockingFetcher {
	return &blockingFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		rates:   rates,
	}
}

func (f *blockingFetcher) Name() string { return "blocking" }

func (f *blockingFetcher) FetchRates(
	ctx context.Context,
	base money.Code,
	_ []money.Code,
) (*exchange.RatesResponse, error) {
	f.calls.Add(1)
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &exchange.RatesResponse{Base: base, Rates: f.rates.Clone()}, nil
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (*core.RateSnapshot, error) {
	return nil, errors.New("store down")
}

func (failingStore) Set(context.Context, string, *core.RateSnapshot, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) Delete(context.Context, string) error { return nil }
func (failingStore) Clear(context.Context) error          { return nil }

func TestKey(t *testing.T) {
	tests := []struct {
		name    string
		base    money.Code
		targets []money.Code
		want    string
	}{
		{"all targets", money.USD, nil, "USD|*"},
		{"empty targets", money.USD, []money.Code{}, "USD|*"},
		{"sorted", money.USD, []money.Code{money.GBP, money.EUR}, "USD|EUR,GBP"},
		{"deduplicated", money.EUR, []money.Code{money.USD, money.GBP, money.USD}, "EUR|GBP,USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.base, tt.targets))
		})
	}
}

func TestGetRates_EmptyBaseIsDisabled(t *testing.T) {
	provider := mocks.NewMockExchange(t)
	svc := New(provider, newStore(t), Options{}, testLogger())

	snap, err := svc.GetRates(context.Background(), "", []money.Code{money.EUR})

	require.NoError(t, err)
	assert.Nil(t, snap)
	provider.AssertNotCalled(t, "FetchRates", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetRates_InvalidBase(t *testing.T) {
	svc := New(mocks.NewMockExchange(t), newStore(t), Options{}, testLogger())

	_, err := svc.GetRates(context.Background(), "usd", nil)
	assert.ErrorIs(t, err, money.ErrInvalidCurrency)
}

func TestGetRates_CachesFetchedTable(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	provider := mocks.NewMockExchange(t)
	provider.On("Name").Return("mock").Maybe()
	provider.On("FetchRates", mock.Anything, money.USD, []money.Code{money.EUR, money.GBP}).
		Return(&exchange.RatesResponse{
			Base:      money.USD,
			Rates:     core.RateTable{money.EUR: 0.92, money.GBP: 0.79},
			Timestamp: ts,
		}, nil).Once()

	store := newStore(t)
	svc := New(provider, store, Options{}, testLogger())

	first, err := svc.GetRates(ctx, money.USD, []money.Code{money.GBP, money.EUR, money.GBP})
	require.NoError(t, err)
	assert.Equal(t, money.USD, first.Base)
	assert.Equal(t, 0.92, first.Rates[money.EUR])
	assert.Equal(t, ts, first.Timestamp)
	assert.Equal(t, "mock", first.Source)

	first.Rates[money.EUR] = 100

	second, err := svc.GetRates(ctx, money.USD, []money.Code{money.EUR, money.GBP})
	require.NoError(t, err)
	assert.Equal(t, 0.92, second.Rates[money.EUR], "cached table is not affected by caller mutation")

	cached, err := store.Get(ctx, "USD|EUR,GBP")
	require.NoError(t, err)
	assert.NotNil(t, cached)
}

func TestGetRates_CoalescesConcurrentRequests(t *testing.T) {
	fetcher := newBlockingFetcher(core.RateTable{money.EUR: 0.9})
	svc := New(fetcher, newStore(t), Options{}, testLogger())

	const callers = 25
	var wg sync.WaitGroup
	results := make([]*core.RateSnapshot, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetRates(context.Background(), money.USD, nil)
		}(i)
	}

	<-fetcher.started
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, 0.9, results[i].Rates[money.EUR])
	}
}

func TestGetRates_ProviderFailurePropagates(t *testing.T) {
	ctx := context.Background()
	cause := &core.ProviderError{Provider: "mock", Op: "rates", Err: core.ErrProviderUnavailable}
	provider := mocks.NewMockExchange(t)
	provider.On("Name").Return("mock").Maybe()
	provider.On("FetchRates", mock.Anything, money.USD, []money.Code(nil)).
		Return(nil, cause).Twice()

	store := newStore(t)
	svc := New(provider, store, Options{}, testLogger())

	_, err := svc.GetRates(ctx, money.USD, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
	assert.True(t, core.IsProviderError(err))
	assert.Equal(t, 0, store.Len(), "failures are not cached")

	_, err = svc.GetRates(ctx, money.USD, nil)
	assert.Error(t, err, "failure is not memoised")
}

func TestGetRates_DropsUnusableRates(t *testing.T) {
	provider := mocks.NewMockExchange(t)
	provider.On("Name").Return("mock").Maybe()
	provider.On("FetchRates", mock.Anything, money.USD, []money.Code(nil)).
		Return(&exchange.RatesResponse{Rates: core.RateTable{
			money.EUR: 0.92,
			money.GBP: 0,
			money.JPY: -3,
			money.CHF: math.NaN(),
			money.CAD: math.Inf(1),
		}}, nil).Once()

	svc := New(provider, newStore(t), Options{}, testLogger())
	snap, err := svc.GetRates(context.Background(), money.USD, nil)

	require.NoError(t, err)
	assert.Equal(t, core.RateTable{money.EUR: 0.92}, snap.Rates)
	assert.False(t, snap.Timestamp.IsZero(), "missing timestamp falls back to fetch time")
}

func TestGetRates_InvalidationDuringFetchIsNotCached(t *testing.T) {
	ctx := context.Background()
	fetcher := newBlockingFetcher(core.RateTable{money.EUR: 0.9})
	store := newStore(t)
	svc := New(fetcher, store, Options{}, testLogger())

	done := make(chan *core.RateSnapshot, 1)
	go func() {
		snap, err := svc.GetRates(ctx, money.USD, nil)
		assert.NoError(t, err)
		done <- snap
	}()

	<-fetcher.started
	require.NoError(t, svc.Invalidate(ctx, money.USD, nil))
	close(fetcher.release)

	snap := <-done
	require.NotNil(t, snap, "waiters still receive the response")

	cached, err := store.Get(ctx, "USD|*")
	require.NoError(t, err)
	assert.Nil(t, cached, "stale response must not be cached")

	_, err = svc.GetRates(ctx, money.USD, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	ctx := context.Background()
	provider := mocks.NewMockExchange(t)
	provider.On("Name").Return("mock").Maybe()
	provider.On("FetchRates", mock.Anything, money.USD, []money.Code{money.EUR}).
		Return(&exchange.RatesResponse{Rates: core.RateTable{money.EUR: 0.9}}, nil).Twice()
	provider.On("FetchRates", mock.Anything, money.EUR, []money.Code(nil)).
		Return(&exchange.RatesResponse{Rates: core.RateTable{money.USD: 1.1}}, nil).Twice()

	svc := New(provider, newStore(t), Options{}, testLogger())

	for range 2 {
		_, err := svc.GetRates(ctx, money.USD, []money.Code{money.EUR})
		require.NoError(t, err)
	}
	require.NoError(t, svc.Invalidate(ctx, money.USD, []money.Code{money.EUR}))
	_, err := svc.GetRates(ctx, money.USD, []money.Code{money.EUR})
	require.NoError(t, err)

	_, err = svc.GetRates(ctx, money.EUR, nil)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateAll(ctx))
	_, err = svc.GetRates(ctx, money.EUR, nil)
	require.NoError(t, err)
}

func TestGetRates_CancelledCallerAbandonsSharedFetch(t *testing.T) {
	fetcher := newBlockingFetcher(core.RateTable{money.EUR: 0.9})
	svc := New(fetcher, newStore(t), Options{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, err := svc.GetRates(ctx, money.USD, nil)
		abandoned <- err
	}()
	<-fetcher.started

	waiter := make(chan *core.RateSnapshot, 1)
	go func() {
		snap, _ := svc.GetRates(context.Background(), money.USD, nil)
		waiter <- snap
	}()

	cancel()
	assert.ErrorIs(t, <-abandoned, context.Canceled)

	close(fetcher.release)
	snap := <-waiter
	require.NotNil(t, snap, "shared fetch survives the first caller's cancellation")
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestGetRates_StoreErrorsAreMisses(t *testing.T) {
	provider := mocks.NewMockExchange(t)
	provider.On("Name").Return("mock").Maybe()
	provider.On("FetchRates", mock.Anything, money.USD, []money.Code(nil)).
		Return(&exchange.RatesResponse{Rates: core.RateTable{money.EUR: 0.9}}, nil).Once()

	svc := New(provider, failingStore{}, Options{}, testLogger())
	snap, err := svc.GetRates(context.Background(), money.USD, nil)

	require.NoError(t, err)
	assert.Equal(t, 0.9, snap.Rates[money.EUR])
}

func TestGetRates_ExpiredEntryIsRefetched(t *testing.T) {
	ctx := context.Background()
	provider := mocks.NewMockExchange(t)
	provider.On("Name").Return("mock").Maybe()
	provider.On("FetchRates", mock.Anything, money.USD, []money.Code(nil)).
		Return(&exchange.RatesResponse{Rates: core.RateTable{money.EUR: 0.9}}, nil).Twice()

	svc := New(provider, newStore(t), Options{TTL: time.Millisecond}, testLogger())

	_, err := svc.GetRates(ctx, money.USD, nil)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = svc.GetRates(ctx, money.USD, nil)
	require.NoError(t, err)
}

func inflightLen(svc *Service) int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.inflight)
}

func TestGetRates_FinishedFetchesLeaveNoState(t *testing.T) {
	ctx := context.Background()
	provider := mocks.NewMockExchange(t)
	provider.On("Name").Return("mock").Maybe()
	provider.On("FetchRates", mock.Anything, money.USD, mock.Anything).
		Return(&exchange.RatesResponse{Rates: core.RateTable{money.EUR: 0.9}}, nil)

	svc := New(provider, newStore(t), Options{}, testLogger())
	targets := [][]money.Code{
		nil,
		{money.EUR},
		{money.GBP},
		{money.EUR, money.GBP},
		{money.JPY, money.CHF, money.INR},
	}
	for _, tt := range targets {
		_, err := svc.GetRates(ctx, money.USD, tt)
		require.NoError(t, err)
		require.NoError(t, svc.Invalidate(ctx, money.USD, tt))
	}
	assert.Equal(t, 0, inflightLen(svc))
}

func TestGetRates_InvalidatedFetchReleasesState(t *testing.T) {
	ctx := context.Background()
	fetcher := newBlockingFetcher(core.RateTable{money.EUR: 0.9})
	svc := New(fetcher, newStore(t), Options{}, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.GetRates(ctx, money.USD, nil)
		assert.NoError(t, err)
	}()

	<-fetcher.started
	assert.Equal(t, 1, inflightLen(svc))
	require.NoError(t, svc.InvalidateAll(ctx))
	close(fetcher.release)
	<-done

	assert.Equal(t, 0, inflightLen(svc))
}
