package cache

import (
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quilldns/rr-dns/internal/dns/common/clock"
	"github.com/quilldns/rr-dns/internal/dns/common/utils"
)

// NSRecord is one nameserver known for a zone, with its glue address if the
// resolver has learned one (from a referral's Additional section or from a
// root hint), per §3's NSEntry shape.
type NSRecord struct {
	Name string // canonical, absolute
	Addr net.IP // nil if not yet known
}

// nsEntry is the cached value for one zone: the set of nameservers known to
// be authoritative for it, TTL-bounded like any other cached data.
type nsEntry struct {
	zone       string
	servers    []NSRecord
	insertedAt time.Time
	ttl        uint32
}

func (e nsEntry) isExpired(now time.Time) bool {
	return !now.Before(e.insertedAt.Add(time.Duration(e.ttl) * time.Second))
}

// NSCache maps a zone name to the nameservers known to host it. Lookup
// returns the longest zone suffix of a query name present in the cache,
// implementing the "best known zone" search of §4.7 step 2.
type NSCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, nsEntry]
	clock clock.Clock
}

// NewNSCache creates a nameserver cache bounded at maxEntries.
func NewNSCache(maxEntries int, clk clock.Clock) (*NSCache, error) {
	c, err := lru.New[string, nsEntry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &NSCache{lru: c, clock: clk}, nil
}

// Set records the nameservers for zone, replacing any prior entry. ttl=0
// entries are not cached (mirrors RecordCache's zero-TTL rule).
func (c *NSCache) Set(zone string, servers []NSRecord, ttl uint32) {
	if ttl == 0 {
		return
	}
	zone = utils.CanonicalName(zone)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(zone, nsEntry{zone: zone, servers: servers, insertedAt: c.clock.Now(), ttl: ttl})
}

// Seed installs a non-expiring entry for zone (used to load root hints at
// startup, which have no TTL of their own and should never be evicted by
// time, only by capacity pressure).
func (c *NSCache) Seed(zone string, servers []NSRecord) {
	zone = utils.CanonicalName(zone)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(zone, nsEntry{zone: zone, servers: servers, insertedAt: c.clock.Now(), ttl: ^uint32(0)})
}

// Get returns the cached nameserver set for exactly zone.
func (c *NSCache) Get(zone string) ([]NSRecord, bool) {
	zone = utils.CanonicalName(zone)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(zone)
	if !ok {
		return nil, false
	}
	if e.isExpired(c.clock.Now()) {
		c.lru.Remove(zone)
		return nil, false
	}
	return e.servers, true
}

// Lookup returns the nameservers for the longest suffix of name present in
// the cache, plus that suffix's zone name. It never returns the root zone
// unless name's hierarchy bottoms out there with no closer match, letting
// the caller fall back to root hints itself when Lookup reports !ok.
func (c *NSCache) Lookup(name string) (zone string, servers []NSRecord, ok bool) {
	for _, candidate := range utils.DomainHierarchy(name) {
		if servers, found := c.Get(candidate); found {
			return candidate, servers, true
		}
	}
	return "", nil, false
}

// PromoteGlue updates the cached address for ns within zone's entry, as
// happens when a referral's Additional section supplies glue for a
// nameserver the cache already knows by name but not by address.
func (c *NSCache) PromoteGlue(zone, ns string, addr net.IP) {
	zone = utils.CanonicalName(zone)
	ns = utils.CanonicalName(ns)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(zone)
	if !ok {
		return
	}
	for i := range e.servers {
		if e.servers[i].Name == ns {
			e.servers[i].Addr = addr
		}
	}
	c.lru.Add(zone, e)
}

// Len returns the number of zones currently cached, expired or not.
func (c *NSCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
