// Package cache implements the two coordinated stores of §4.6: a
// TTL-indexed record cache keyed by (name, type, class) and a
// nameserver-by-zone cache used by the recursive resolver to pick the next
// hop. Both are backed by github.com/hashicorp/golang-lru/v2, which gives
// an approximate-LRU, size-bounded eviction policy without a hand-rolled
// clock algorithm.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quilldns/rr-dns/internal/dns/common/clock"
	"github.com/quilldns/rr-dns/internal/dns/domain"
)

// RecordCache stores resolved RRsets keyed by (name, type, class). A read
// that finds an expired entry evicts it lazily; Sweep additionally walks
// the whole cache to catch entries nobody has read since they expired.
type RecordCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, []domain.ResourceRecord]
	clock clock.Clock
}

// NewRecordCache creates a record cache bounded at maxEntries.
func NewRecordCache(maxEntries int, clk clock.Clock) (*RecordCache, error) {
	c, err := lru.New[string, []domain.ResourceRecord](maxEntries)
	if err != nil {
		return nil, err
	}
	return &RecordCache{lru: c, clock: clk}, nil
}

// Get returns the cached RRset for (name, type, class) if present and not
// expired. A zero-length but present entry (a cached negative answer) is
// returned with ok=true and a nil slice.
func (c *RecordCache) Get(name string, t domain.RRType, class domain.RRClass) ([]domain.ResourceRecord, bool) {
	key := domain.GenerateCacheKey(name, t, class)
	c.mu.Lock()
	defer c.mu.Unlock()
	records, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	now := c.clock.Now()
	if len(records) > 0 && records[0].IsExpired(now) {
		c.lru.Remove(key)
		return nil, false
	}
	return records, true
}

// Set installs records under (name, type, class), replacing any existing
// entry. A zero-TTL record set (records expire the instant they're
// inserted) is not cached, per §4.6 "Zero TTL -> do not cache". Per-record
// Set calls (one RRset per key) keep writes for a given key totally
// ordered: the mutex serializes them and the LRU swap is atomic from a
// reader's point of view.
func (c *RecordCache) Set(name string, t domain.RRType, class domain.RRClass, records []domain.ResourceRecord) {
	if len(records) > 0 && records[0].IsExpired(c.clock.Now()) {
		return
	}
	key := domain.GenerateCacheKey(name, t, class)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, records)
}

// Delete removes any cached entry for (name, type, class).
func (c *RecordCache) Delete(name string, t domain.RRType, class domain.RRClass) {
	key := domain.GenerateCacheKey(name, t, class)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Len returns the number of entries currently held, expired or not.
func (c *RecordCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Sweep evicts every expired entry. Intended to be called periodically
// (config.ResolverConfig.Cache.SweepInterval) from a background goroutine
// so cold keys that are never read again still get reclaimed.
func (c *RecordCache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	var evicted int
	for _, key := range c.lru.Keys() {
		records, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if len(records) > 0 && records[0].IsExpired(now) {
			c.lru.Remove(key)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep on interval until stop is closed.
func (c *RecordCache) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
