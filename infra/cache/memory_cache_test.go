package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func snapshot() *core.RateSnapshot {
	return &core.RateSnapshot{
		Base:  money.USD,
		Rates: core.RateTable{money.EUR: 0.92, money.GBP: 0.79},
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	got, err := c.Get(ctx, "USD|*")
	require.NoError(t, err)
	assert.Nil(t, got, "miss returns nil")

	require.NoError(t, c.Set(ctx, "USD|*", snapshot(), time.Minute))

	got, err = c.Get(ctx, "USD|*")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.92, got.Rates[money.EUR])

	got.Rates[money.EUR] = 5
	again, _ := c.Get(ctx, "USD|*")
	assert.Equal(t, 0.92, again.Rates[money.EUR], "callers receive copies")
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newMemoryCache(clock.Now, time.Hour)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Set(ctx, "short", snapshot(), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", snapshot(), 0))

	clock.Advance(2 * time.Minute)

	got, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.NotNil(t, got)

	c.evictExpired()
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Set(ctx, "a", snapshot(), 0))
	require.NoError(t, c.Set(ctx, "b", snapshot(), 0))

	require.NoError(t, c.Delete(ctx, "a"))
	got, _ := c.Get(ctx, "a")
	assert.Nil(t, got)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
