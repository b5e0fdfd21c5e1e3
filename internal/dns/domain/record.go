package domain

import (
	"fmt"
	"time"

	"github.com/quilldns/rr-dns/internal/dns/common/utils"
)

// ResourceRecord is the DNS resource record tuple of §3: (name, class,
// type, ttl, rdata). A record produced by the zone loader is authoritative
// and never expires; a record produced by the recursive resolver is
// time-stamped against a TTL and expires accordingly. The two are the same
// struct with different expiresAt treatment so that the wire codec,
// caches, and responder can all operate on one type.
type ResourceRecord struct {
	Name  string // canonical, absolute
	Class RRClass
	Type  RRType
	Data  RData

	ttl          uint32
	expiresAt    time.Time
	authoritative bool
}

// NewAuthoritativeRecord builds a non-expiring record loaded from a zone.
func NewAuthoritativeRecord(name string, class RRClass, ttl uint32, data RData) (ResourceRecord, error) {
	rr := ResourceRecord{
		Name:          utils.CanonicalName(name),
		Class:         class,
		Type:          data.Type(),
		Data:          data,
		ttl:           ttl,
		authoritative: true,
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// NewCachedRecord builds a record with an expiration computed from now+ttl,
// as produced by the recursive resolver when it ingests an upstream answer.
func NewCachedRecord(name string, class RRClass, ttl uint32, data RData, now time.Time) (ResourceRecord, error) {
	rr := ResourceRecord{
		Name:      utils.CanonicalName(name),
		Class:     class,
		Type:      data.Type(),
		Data:      data,
		ttl:       ttl,
		expiresAt: now.Add(time.Duration(ttl) * time.Second),
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks the record's structural invariants.
func (rr ResourceRecord) Validate() error {
	if rr.Name == "" {
		return fmt.Errorf("record name must not be empty")
	}
	if !rr.Class.IsValid() {
		return fmt.Errorf("invalid RRClass: %d", rr.Class)
	}
	if rr.Data == nil {
		return fmt.Errorf("record rdata must not be nil")
	}
	if rr.Data.Type() != rr.Type {
		return fmt.Errorf("rdata type %s does not match record type %s", rr.Data.Type(), rr.Type)
	}
	return nil
}

// IsAuthoritative reports whether the record came from zone data (and thus
// never expires from the zone store's perspective).
func (rr ResourceRecord) IsAuthoritative() bool {
	return rr.authoritative
}

// TTL returns the effective TTL, in seconds, for wire encoding: the
// original TTL for authoritative records, or the remaining time-to-live
// for cached ones (clamped to zero once expired).
func (rr ResourceRecord) TTL() uint32 {
	if rr.authoritative {
		return rr.ttl
	}
	remaining := rr.TTLRemaining()
	if remaining <= 0 {
		return 0
	}
	return uint32(remaining.Seconds())
}

// TTLRemaining returns the remaining lifetime of a cached record. For
// authoritative records it always returns the full configured TTL.
func (rr ResourceRecord) TTLRemaining() time.Duration {
	if rr.authoritative {
		return time.Duration(rr.ttl) * time.Second
	}
	return time.Until(rr.expiresAt)
}

// IsExpired reports whether a cached record's TTL has elapsed as of now.
// Authoritative records are never expired.
func (rr ResourceRecord) IsExpired(now time.Time) bool {
	if rr.authoritative {
		return false
	}
	return !now.Before(rr.expiresAt)
}

// CacheKey returns the cache key for this record's (name, type, class).
func (rr ResourceRecord) CacheKey() string {
	return GenerateCacheKey(rr.Name, rr.Type, rr.Class)
}

// GenerateCacheKey builds a zone-sharded cache key in the form
// "apex|name|type|class", letting the cache bucket by apex domain for
// cheap zone-scoped eviction/inspection while keeping full (name,type,class)
// specificity for lookups.
func GenerateCacheKey(name string, t RRType, c RRClass) string {
	name = utils.CanonicalName(name)
	apex := utils.GetApexDomain(name)
	return apex + "|" + name + "|" + t.String() + "|" + c.String()
}
