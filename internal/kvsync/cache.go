package kvsync

import (
	"context"
	"sync"
	"time"

	"github.com/tallyvault/tallyvault/internal/snapshot"
)

type cacheEntry struct {
	snap      snapshot.Snapshot
	fetchedAt time.Time
}

// TTLCache memoizes whole-snapshot reads for a short window to bound remote
// round trips. One slot per key, no eviction beyond TTL expiry.
type TTLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewTTLCache creates a cache whose entries expire after ttl.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// GetOrFetch returns the cached snapshot for key when it is younger than the
// TTL, otherwise invokes fetch and caches the result. A fetch failure is not
// cached and propagates to the caller.
func (c *TTLCache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (snapshot.Snapshot, error)) (snapshot.Snapshot, error) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.snap, nil
	}
	c.mu.Unlock()

	snap, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{snap: snap, fetchedAt: c.now()}
	c.mu.Unlock()
	return snap, nil
}

// Invalidate forcibly expires the entry for key so the next read is fresh.
// Called after every successful write.
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
