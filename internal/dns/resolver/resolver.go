// Package resolver implements the iterative recursive resolution algorithm
// of §4.7: starting from the best known zone (cache, then root hints), it
// follows referrals down the delegation chain, chases CNAMEs, and caches
// both positive and negative answers, bounded by depth/attempt/time guards.
package resolver

import (
	"context"
	"net"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quilldns/rr-dns/internal/dns/cache"
	"github.com/quilldns/rr-dns/internal/dns/common/clock"
	"github.com/quilldns/rr-dns/internal/dns/common/log"
	"github.com/quilldns/rr-dns/internal/dns/common/utils"
	"github.com/quilldns/rr-dns/internal/dns/domain"
)

// Config bounds one resolution per §4.7 and §5's resource limits.
type Config struct {
	QueryTimeout time.Duration // per-upstream-query deadline
	TotalTimeout time.Duration // whole-resolution deadline
	MaxAttempts  int           // total upstream queries issued, across referrals and sideways lookups
	MaxDepth     int           // recursion depth, referrals + sideways NS-address lookups + CNAME hops combined
	MaxCNAMEHops int
	SingleFlight bool // collapse concurrent identical queries via singleflight
}

// DefaultConfig returns conservative bounds suitable for a resolver with no
// other guidance, matching the magnitudes named in §5.
func DefaultConfig() Config {
	return Config{
		QueryTimeout: 3 * time.Second,
		TotalTimeout: 20 * time.Second,
		MaxAttempts:  16,
		MaxDepth:     32,
		MaxCNAMEHops: 8,
		SingleFlight: true,
	}
}

// Result is the outcome of one Resolve call.
type Result struct {
	RCode  domain.RCode
	Answer []domain.ResourceRecord
	Trace  *Trace
}

// Resolver answers queries by iterative descent from the best known zone,
// consulting and populating the shared record/nameserver/negative caches as
// it goes. Safe for concurrent use.
type Resolver struct {
	records  *cache.RecordCache
	nsCache  *cache.NSCache
	negative *cache.NegativeCache
	client   QueryClient
	clock    clock.Clock
	logger   log.Logger
	cfg      Config
	group    singleflight.Group
}

// New builds a Resolver. A nil logger falls back to a no-op logger.
func New(records *cache.RecordCache, ns *cache.NSCache, negative *cache.NegativeCache, client QueryClient, clk clock.Clock, logger log.Logger, cfg Config) *Resolver {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Resolver{records: records, nsCache: ns, negative: negative, client: client, clock: clk, logger: logger, cfg: cfg}
}

// resolveState tracks the shared budgets for one top-level Resolve call:
// referrals, sideways NS-address lookups, and CNAME hops all draw against
// the same depth, attempt, and hop counters so a pathological chain can't
// bypass the guards by switching which kind of step it takes next.
type resolveState struct {
	depth    int
	hops     int
	attempts int
}

// Resolve answers one question, optionally collapsing concurrent identical
// requests via singleflight. The returned Trace is always non-nil; its
// Events are empty unless trace is true.
func (r *Resolver) Resolve(ctx context.Context, qname string, qtype domain.RRType, qclass domain.RRClass, trace bool) Result {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TotalTimeout)
	defer cancel()

	tr := NewTrace(trace)
	key := domain.GenerateCacheKey(qname, qtype, qclass)

	resolve := func() (any, error) {
		st := &resolveState{}
		return r.resolveIterative(ctx, qname, qtype, qclass, st, tr), nil
	}

	if !r.cfg.SingleFlight {
		v, _ := resolve()
		res := v.(Result)
		res.Trace = tr
		return res
	}

	v, _, _ := r.group.Do(key, resolve)
	res := v.(Result)
	res.Trace = tr
	return res
}

func (r *Resolver) resolveIterative(ctx context.Context, qname string, qtype domain.RRType, qclass domain.RRClass, st *resolveState, tr *Trace) Result {
	st.depth++
	now := r.clock.Now()
	if st.depth > r.cfg.MaxDepth {
		tr.Log(now, "depth_exceeded", "%s %s", qname, qtype)
		return Result{RCode: domain.RCodeServFail}
	}
	if ctx.Err() != nil {
		tr.Log(now, "deadline_exceeded", "%s %s", qname, qtype)
		return Result{RCode: domain.RCodeServFail}
	}

	name := utils.CanonicalName(qname)

	if records, ok := r.records.Get(name, qtype, qclass); ok {
		tr.Log(now, "cache_hit", "%s %s", name, qtype)
		return Result{RCode: domain.RCodeNoError, Answer: records}
	}

	if qtype != domain.RRTypeCNAME {
		if cnames, ok := r.records.Get(name, domain.RRTypeCNAME, qclass); ok && len(cnames) > 0 {
			tr.Log(now, "cache_hit_cname", "%s", name)
			return r.followCNAME(ctx, cnames, qtype, qclass, st, tr)
		}
	}

	if r.negative.Hit(name) {
		tr.Log(now, "cache_hit_negative", "%s", name)
		return Result{RCode: domain.RCodeNXDomain}
	}

	zone, servers, ok := r.nsCache.Lookup(name)
	if !ok {
		zone = "."
		servers, _ = r.nsCache.Get(".")
	}
	tr.Log(now, "best_zone", "%s", zone)

	return r.iterateServers(ctx, zone, servers, name, qtype, qclass, st, tr)
}

// iterateServers queries candidate servers for zone in turn, following
// referrals to a closer zone as they arrive, until it gets a usable answer
// or exhausts the attempt budget.
func (r *Resolver) iterateServers(ctx context.Context, zone string, servers []cache.NSRecord, name string, qtype domain.RRType, qclass domain.RRClass, st *resolveState, tr *Trace) Result {
	for {
		now := r.clock.Now()
		if st.attempts >= r.cfg.MaxAttempts {
			tr.Log(now, "attempts_exhausted", "%s", name)
			r.logger.Warn(map[string]any{"name": name, "zone": zone, "attempts": st.attempts}, "resolver attempt budget exhausted")
			return Result{RCode: domain.RCodeServFail}
		}
		if len(servers) == 0 {
			tr.Log(now, "no_servers", "%s", zone)
			r.logger.Warn(map[string]any{"name": name, "zone": zone}, "no candidate nameservers left")
			return Result{RCode: domain.RCodeServFail}
		}

		ns := servers[0]
		servers = servers[1:]

		addr, ok := r.resolveServerAddr(ctx, ns, qclass, st, tr)
		if !ok {
			continue
		}

		st.attempts++
		st.depth++
		if st.depth > r.cfg.MaxDepth {
			tr.Log(now, "depth_exceeded", "%s", name)
			return Result{RCode: domain.RCodeServFail}
		}

		query, err := domain.NewQueryMessage(uint16(st.attempts), name, qtype, qclass, false)
		if err != nil {
			return Result{RCode: domain.RCodeServFail}
		}

		qctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
		tr.Log(now, "query", "%s %s @%s", name, qtype, addr)
		resp, err := r.client.Query(qctx, net.JoinHostPort(addr.String(), "53"), query)
		cancel()
		if err != nil {
			tr.Log(r.clock.Now(), "query_failed", "@%s: %v", addr, err)
			continue
		}
		tr.Log(r.clock.Now(), "response", "rcode=%s ancount=%d nscount=%d", resp.Flags.RCode, len(resp.Answer), len(resp.Authority))

		switch {
		case resp.Flags.RCode == domain.RCodeNoError && hasType(resp.Answer, qtype):
			answer := filterType(resp.Answer, qtype)
			r.records.Set(name, qtype, qclass, answer)
			return Result{RCode: domain.RCodeNoError, Answer: answer}

		case resp.Flags.RCode == domain.RCodeNoError && qtype != domain.RRTypeCNAME && hasType(resp.Answer, domain.RRTypeCNAME):
			cnames := filterType(resp.Answer, domain.RRTypeCNAME)
			r.records.Set(name, domain.RRTypeCNAME, qclass, cnames)
			return r.followCNAME(ctx, cnames, qtype, qclass, st, tr)

		case resp.Flags.RCode == domain.RCodeNoError && len(resp.Answer) == 0 && hasType(resp.Authority, domain.RRTypeNS):
			newZone, newServers, ok := r.processReferral(resp)
			if !ok || newZone == zone {
				// no usable delegation, or the server just handed back the
				// zone we already queried it for: treat as empty answer.
				return Result{RCode: domain.RCodeNoError}
			}
			tr.Log(r.clock.Now(), "referral", "%s", newZone)
			zone, servers = newZone, newServers
			continue

		case resp.Flags.RCode == domain.RCodeNoError:
			// NOERROR with nothing usable: authoritative "no data" for this type.
			return Result{RCode: domain.RCodeNoError}

		case resp.Flags.RCode == domain.RCodeNXDomain:
			ttl := negativeTTL(resp.Authority)
			r.negative.Set(name, ttl)
			return Result{RCode: domain.RCodeNXDomain}

		default:
			continue
		}
	}
}

// followCNAME resolves a CNAME chain's target and prepends chain to
// whatever final answer it finds, bounded by MaxCNAMEHops.
func (r *Resolver) followCNAME(ctx context.Context, chain []domain.ResourceRecord, qtype domain.RRType, qclass domain.RRClass, st *resolveState, tr *Trace) Result {
	if st.hops >= r.cfg.MaxCNAMEHops {
		tr.Log(r.clock.Now(), "cname_hops_exceeded", "%d", st.hops)
		return Result{RCode: domain.RCodeServFail}
	}
	st.hops++

	last := chain[len(chain)-1]
	target, ok := last.Data.(domain.CNAMEData)
	if !ok {
		return Result{RCode: domain.RCodeServFail}
	}

	res := r.resolveIterative(ctx, target.Target, qtype, qclass, st, tr)
	if res.RCode != domain.RCodeNoError {
		return res
	}
	combined := make([]domain.ResourceRecord, 0, len(chain)+len(res.Answer))
	combined = append(combined, chain...)
	combined = append(combined, res.Answer...)
	return Result{RCode: domain.RCodeNoError, Answer: combined}
}

func hasType(rrs []domain.ResourceRecord, t domain.RRType) bool {
	for _, rr := range rrs {
		if rr.Type == t {
			return true
		}
	}
	return false
}

func filterType(rrs []domain.ResourceRecord, t domain.RRType) []domain.ResourceRecord {
	var out []domain.ResourceRecord
	for _, rr := range rrs {
		if rr.Type == t {
			out = append(out, rr)
		}
	}
	return out
}

func minTTL(rrs []domain.ResourceRecord) uint32 {
	min := ^uint32(0)
	for _, rr := range rrs {
		if t := rr.TTL(); t < min {
			min = t
		}
	}
	if min == ^uint32(0) {
		return 0
	}
	return min
}

// negativeTTL derives the TTL for a cached NXDOMAIN from the SOA's MINIMUM
// field in the Authority section (RFC 1035 §3.3.13 negative-caching use),
// clamped by cache.MaxNegativeTTL.
func negativeTTL(authority []domain.ResourceRecord) uint32 {
	for _, rr := range authority {
		if soa, ok := rr.Data.(domain.SOAData); ok {
			return soa.Minimum
		}
	}
	return uint32(cache.MaxNegativeTTL.Seconds())
}

// processReferral extracts the delegated zone and nameserver set from a
// referral response's Authority/Additional sections, promoting any glue it
// carries and caching the result.
func (r *Resolver) processReferral(resp domain.Message) (zone string, servers []cache.NSRecord, ok bool) {
	nsRecords := filterType(resp.Authority, domain.RRTypeNS)
	if len(nsRecords) == 0 {
		return "", nil, false
	}
	zone = nsRecords[0].Name

	seen := make(map[string]bool)
	for _, rr := range nsRecords {
		nsd, ok := rr.Data.(domain.NSData)
		if !ok || seen[nsd.NSDName] {
			continue
		}
		seen[nsd.NSDName] = true
		servers = append(servers, cache.NSRecord{Name: nsd.NSDName})
	}

	for _, rr := range resp.Additional {
		adata, ok := rr.Data.(domain.AData)
		if !ok {
			continue
		}
		for i := range servers {
			if servers[i].Name == rr.Name {
				servers[i].Addr = adata.Addr
			}
		}
		r.records.Set(rr.Name, domain.RRTypeA, domain.RRClassIN, []domain.ResourceRecord{rr})
	}

	r.nsCache.Set(zone, servers, minTTL(nsRecords))
	return zone, servers, true
}

// resolveServerAddr returns an address to dial for ns, resolving its A
// record (cached, then via a bounded sideways recursive lookup sharing the
// same attempt/depth budget) if no glue address is already known.
func (r *Resolver) resolveServerAddr(ctx context.Context, ns cache.NSRecord, qclass domain.RRClass, st *resolveState, tr *Trace) (net.IP, bool) {
	if ns.Addr != nil {
		return ns.Addr, true
	}
	if records, ok := r.records.Get(ns.Name, domain.RRTypeA, qclass); ok && len(records) > 0 {
		if a, ok := records[0].Data.(domain.AData); ok {
			return a.Addr, true
		}
	}
	if st.depth >= r.cfg.MaxDepth {
		return nil, false
	}
	tr.Log(r.clock.Now(), "sideways_lookup", "%s", ns.Name)
	res := r.resolveIterative(ctx, ns.Name, domain.RRTypeA, qclass, st, tr)
	if res.RCode != domain.RCodeNoError || len(res.Answer) == 0 {
		return nil, false
	}
	a, ok := res.Answer[0].Data.(domain.AData)
	if !ok {
		return nil, false
	}
	return a.Addr, true
}

