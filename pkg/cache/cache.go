package cache

import (
	"context"
	"time"

	"github.com/subsy/fx/pkg/exchange/core"
)

// RateStore defines the interface for caching rate snapshots.
// Get returns (nil, nil) on a miss. A zero ttl keeps the entry until it is
// deleted.
type RateStore interface {
	Get(ctx context.Context, key string) (*core.RateSnapshot, error)
	Set(ctx context.Context, key string, snap *core.RateSnapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
