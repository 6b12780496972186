package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/evermind-ai/evermind/memory"
)

// Cached decorates a KeyValue with an in-process ristretto read cache.
// Penalty lookups happen on every retrieval pass while penalty writes are
// rare, so reads are served from cache and every Set writes through and
// invalidates. The durable store stays the source of truth; the cache is
// never the only copy of a record.
type Cached struct {
	inner memory.KeyValue
	cache *ristretto.Cache
	ttl   time.Duration
}

type cachedEntry struct {
	value []byte
	found bool
}

// NewCached wraps inner with a read cache holding up to maxEntries values
// for ttl. A ttl of 0 keeps entries until evicted.
//
// The cache stores misses as well as hits and only invalidates on its own
// Set calls, so writes made by another process against the same inner store
// stay invisible here for up to ttl. Keep ttl short, or skip the cache,
// when several processes share one database.
func NewCached(inner memory.KeyValue, maxEntries int64, ttl time.Duration) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache, ttl: ttl}, nil
}

func cacheKey(scopeID, tenantID, key string) string {
	return scopeID + "\x00" + tenantID + "\x00" + key
}

// Set writes through to the durable store and drops any cached copy.
func (c *Cached) Set(ctx context.Context, scopeID, tenantID, key string, value []byte) error {
	if err := c.inner.Set(ctx, scopeID, tenantID, key, value); err != nil {
		return err
	}
	c.cache.Del(cacheKey(scopeID, tenantID, key))
	return nil
}

// Get serves from cache when possible, falling back to the durable store.
// Absence is cached too: a missing penalty record is the common case.
func (c *Cached) Get(ctx context.Context, scopeID, tenantID, key string) ([]byte, bool, error) {
	ck := cacheKey(scopeID, tenantID, key)
	if cached, ok := c.cache.Get(ck); ok {
		entry := cached.(cachedEntry)
		return entry.value, entry.found, nil
	}

	value, found, err := c.inner.Get(ctx, scopeID, tenantID, key)
	if err != nil {
		return nil, false, err
	}
	c.cache.SetWithTTL(ck, cachedEntry{value: value, found: found}, 1, c.ttl)
	return value, found, nil
}

// Close releases the cache and the underlying store.
func (c *Cached) Close() error {
	c.cache.Close()
	return c.inner.Close()
}
