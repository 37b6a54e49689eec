// Package cache provides a bounded TTL cache whose loads are coalesced per
// key, so concurrent callers for the same key share one computation.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Stats are cumulative counters for a cache.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Loads     int64 `json:"loads"`
	Coalesced int64 `json:"coalesced"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache with a max-entry cap. Expired entries are pruned
// first when the cap is exceeded, then entries closest to expiry.
type Cache[V any] struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
	group   singleflight.Group

	hits, misses, loads, coalesced, evictions atomic.Int64
}

// New creates a cache. A non-positive max disables the cap.
func New[V any](ttl time.Duration, max int) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns a live value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.pruneLocked()
}

func (c *Cache[V]) pruneLocked() {
	if c.max <= 0 || len(c.entries) <= c.max {
		return
	}
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			c.evictions.Add(1)
		}
	}
	over := len(c.entries) - c.max
	if over <= 0 {
		return
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].expiresAt.Before(c.entries[keys[j]].expiresAt)
	})
	for _, k := range keys[:over] {
		delete(c.entries, k)
		c.evictions.Add(1)
	}
}

// Do returns the cached value for key or computes it with load. Concurrent
// callers for a key share the in-flight load. The load runs detached from
// the caller's cancellation so an abandoned waiter does not fail the others;
// each caller still returns early when its own ctx is done.
func (c *Cache[V]) Do(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		c.loads.Add(1)
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.coalesced.Add(1)
		}
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Len returns the number of stored entries, live or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Loads:     c.loads.Load(),
		Coalesced: c.coalesced.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
	}
}
