package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quilldns/rr-dns/internal/dns/common/clock"
	"github.com/quilldns/rr-dns/internal/dns/common/utils"
)

// MaxNegativeTTL caps how long an NXDOMAIN is remembered, per §7 ("the
// resolver caches with TTL = min(SOA.minimum, 1 h)").
const MaxNegativeTTL = time.Hour

// NegativeCache remembers names the resolver has confirmed don't exist, so
// a repeated query for any type under that name doesn't repeat the full
// descent. Keyed by name alone (not type), matching how NXDOMAIN applies
// to the whole name, not a single RRset.
type NegativeCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, time.Time] // name -> expiry
	clock clock.Clock
}

// NewNegativeCache creates a negative-answer cache bounded at maxEntries.
func NewNegativeCache(maxEntries int, clk clock.Clock) (*NegativeCache, error) {
	c, err := lru.New[string, time.Time](maxEntries)
	if err != nil {
		return nil, err
	}
	return &NegativeCache{lru: c, clock: clk}, nil
}

// Set records name as nonexistent for ttl seconds, clamped to
// MaxNegativeTTL.
func (c *NegativeCache) Set(name string, ttl uint32) {
	d := time.Duration(ttl) * time.Second
	if d > MaxNegativeTTL {
		d = MaxNegativeTTL
	}
	if d <= 0 {
		return
	}
	name = utils.CanonicalName(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(name, c.clock.Now().Add(d))
}

// Hit reports whether name is currently cached as nonexistent.
func (c *NegativeCache) Hit(name string) bool {
	name = utils.CanonicalName(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.lru.Get(name)
	if !ok {
		return false
	}
	if !c.clock.Now().Before(expiry) {
		c.lru.Remove(name)
		return false
	}
	return true
}

// Len returns the number of names currently cached, expired or not.
func (c *NegativeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
