package cache

import (
	"context"
	"sync"
	"time"

	"github.com/subsy/fx/pkg/exchange/core"
)

const defaultCleanupInterval = 5 * time.Minute

// MemoryCache implements cache.RateStore using in-memory storage
type MemoryCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	now     func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

type cacheEntry struct {
	snap      *core.RateSnapshot
	expiresAt time.Time // zero means no expiry
}

// NewMemoryCache creates a new in-memory cache and starts its cleanup loop.
func NewMemoryCache() *MemoryCache {
	return newMemoryCache(time.Now, defaultCleanupInterval)
}

func newMemoryCache(now func() time.Time, cleanupEvery time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*cacheEntry),
		now:     now,
		stop:    make(chan struct{}),
	}

	go c.cleanup(cleanupEvery)

	return c
}

// Get retrieves a snapshot from cache
func (c *MemoryCache) Get(_ context.Context, key string) (*core.RateSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || entry.expired(c.now()) {
		return nil, nil
	}

	return entry.snap.Clone(), nil
}

// Set stores a snapshot in cache with TTL
func (c *MemoryCache) Set(
	_ context.Context,
	key string,
	snap *core.RateSnapshot,
	ttl time.Duration,
) error {
	entry := &cacheEntry{snap: snap.Clone()}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

// Delete removes a snapshot from cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Clear removes every snapshot
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup loop.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	return nil
}

// cleanup removes expired entries from cache
func (c *MemoryCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *MemoryCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
