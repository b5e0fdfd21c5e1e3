package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quilldns/rr-dns/internal/dns/cache"
	"github.com/quilldns/rr-dns/internal/dns/common/clock"
	"github.com/quilldns/rr-dns/internal/dns/domain"
)

// fakeClient answers Query deterministically from a table keyed by
// "addr|qname|qtype", so a multi-hop resolution can be scripted without any
// real network I/O.
type fakeClient struct {
	now      time.Time
	handlers map[string]func(domain.Message) domain.Message
}

func newFakeClient(now time.Time) *fakeClient {
	return &fakeClient{now: now, handlers: make(map[string]func(domain.Message) domain.Message)}
}

func (f *fakeClient) on(addr, qname string, qtype domain.RRType, fn func(domain.Message) domain.Message) {
	f.handlers[addr+"|"+qname+"|"+qtype.String()] = fn
}

func (f *fakeClient) Query(ctx context.Context, addr string, query domain.Message) (domain.Message, error) {
	key := addr + "|" + query.Question.Name + "|" + query.Question.Type.String()
	fn, ok := f.handlers[key]
	if !ok {
		return domain.Message{}, net.ErrClosed
	}
	return fn(query), nil
}

func mustA(t *testing.T, name string, ip string, ttl uint32, now time.Time) domain.ResourceRecord {
	t.Helper()
	rr, err := domain.NewCachedRecord(name, domain.RRClassIN, ttl, domain.AData{Addr: net.ParseIP(ip)}, now)
	require.NoError(t, err)
	return rr
}

func mustNS(t *testing.T, zone string, ns string, ttl uint32, now time.Time) domain.ResourceRecord {
	t.Helper()
	rr, err := domain.NewCachedRecord(zone, domain.RRClassIN, ttl, domain.NSData{NSDName: ns}, now)
	require.NoError(t, err)
	return rr
}

func mustCNAME(t *testing.T, name, target string, ttl uint32, now time.Time) domain.ResourceRecord {
	t.Helper()
	rr, err := domain.NewCachedRecord(name, domain.RRClassIN, ttl, domain.CNAMEData{Target: target}, now)
	require.NoError(t, err)
	return rr
}

func newTestResolver(t *testing.T, now time.Time, client QueryClient) *Resolver {
	t.Helper()
	mc := clock.NewMockClock(now)
	records, err := cache.NewRecordCache(128, mc)
	require.NoError(t, err)
	ns, err := cache.NewNSCache(128, mc)
	require.NoError(t, err)
	neg, err := cache.NewNegativeCache(128, mc)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.SingleFlight = false
	return New(records, ns, neg, client, mc, nil, cfg)
}

// seedRoot installs a single root hint server at ip on r's nameserver
// cache, matching how cmd/rr-resolverd seeds config.ResolverConfig's
// root_hints at startup (resolver.SeedRootHints).
func seedRoot(r *Resolver, ip string) {
	SeedRootHints(r.nsCache, []RootHint{{Name: ".", Addr: net.ParseIP(ip)}})
}

// TestResolverFollowsReferralChain walks root -> "com." -> "example.com."
// exactly as described in §4.7's worked example, with one server per zone.
func TestResolverFollowsReferralChain(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newFakeClient(now)

	client.on("198.41.0.4:53", "www.example.com.", domain.RRTypeA, func(q domain.Message) domain.Message {
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Authority = []domain.ResourceRecord{mustNS(t, "com.", "a.gtld-servers.net.", 172800, now)}
		resp.Additional = []domain.ResourceRecord{mustA(t, "a.gtld-servers.net.", "192.5.6.30", 172800, now)}
		return resp
	})
	client.on("192.5.6.30:53", "www.example.com.", domain.RRTypeA, func(q domain.Message) domain.Message {
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Authority = []domain.ResourceRecord{mustNS(t, "example.com.", "ns1.example.com.", 86400, now)}
		resp.Additional = []domain.ResourceRecord{mustA(t, "ns1.example.com.", "203.0.113.53", 86400, now)}
		return resp
	})
	client.on("203.0.113.53:53", "www.example.com.", domain.RRTypeA, func(q domain.Message) domain.Message {
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Flags.AA = true
		resp.Answer = []domain.ResourceRecord{mustA(t, "www.example.com.", "203.0.113.10", 300, now)}
		return resp
	})

	r := newTestResolver(t, now, client)
	seedRoot(r, "198.41.0.4")

	res := r.Resolve(context.Background(), "www.example.com.", domain.RRTypeA, domain.RRClassIN, true)
	require.Equal(t, domain.RCodeNoError, res.RCode)
	require.Len(t, res.Answer, 1)
	a, ok := res.Answer[0].Data.(domain.AData)
	require.True(t, ok)
	require.Equal(t, "203.0.113.10", a.Addr.String())
	require.NotEmpty(t, res.Trace.Events())
}

func TestResolverCachesAnswer(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newFakeClient(now)
	calls := 0
	client.on("198.41.0.4:53", "example.net.", domain.RRTypeA, func(q domain.Message) domain.Message {
		calls++
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Flags.AA = true
		resp.Answer = []domain.ResourceRecord{mustA(t, "example.net.", "198.51.100.9", 300, now)}
		return resp
	})

	r := newTestResolver(t, now, client)
	seedRoot(r, "198.41.0.4")

	first := r.Resolve(context.Background(), "example.net.", domain.RRTypeA, domain.RRClassIN, false)
	require.Equal(t, domain.RCodeNoError, first.RCode)

	second := r.Resolve(context.Background(), "example.net.", domain.RRTypeA, domain.RRClassIN, false)
	require.Equal(t, domain.RCodeNoError, second.RCode)
	require.Equal(t, 1, calls, "second call should be served from cache, not reissued upstream")
}

func TestResolverCachesNXDomain(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newFakeClient(now)
	calls := 0
	client.on("198.41.0.4:53", "nosuch.test.", domain.RRTypeA, func(q domain.Message) domain.Message {
		calls++
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Flags.RCode = domain.RCodeNXDomain
		soa, err := domain.NewCachedRecord("test.", domain.RRClassIN, 3600,
			domain.SOAData{MName: "ns1.test.", RName: "hostmaster.test.", Serial: 1, Refresh: 3600, Retry: 600, Expire: 86400, Minimum: 300}, now)
		require.NoError(t, err)
		resp.Authority = []domain.ResourceRecord{soa}
		return resp
	})

	r := newTestResolver(t, now, client)
	seedRoot(r, "198.41.0.4")

	first := r.Resolve(context.Background(), "nosuch.test.", domain.RRTypeA, domain.RRClassIN, false)
	require.Equal(t, domain.RCodeNXDomain, first.RCode)

	second := r.Resolve(context.Background(), "nosuch.test.", domain.RRTypeA, domain.RRClassIN, false)
	require.Equal(t, domain.RCodeNXDomain, second.RCode)
	require.Equal(t, 1, calls, "second call should be served from the negative cache")
}

// TestResolverMaxAttemptsIsGlobalAcrossCNAMEChase proves the MaxAttempts
// budget in resolveState is shared across nested resolveIterative calls:
// a CNAME chase must not get a fresh attempt budget for the target name
// once the alias lookup has already spent the whole budget (§4.7 step 3/4,
// §8's "in no case does it make more than max_attempts upstream queries").
func TestResolverMaxAttemptsIsGlobalAcrossCNAMEChase(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newFakeClient(now)
	aliasCalls, targetCalls := 0, 0
	client.on("198.41.0.4:53", "alias.example.org.", domain.RRTypeA, func(q domain.Message) domain.Message {
		aliasCalls++
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Flags.AA = true
		resp.Answer = []domain.ResourceRecord{mustCNAME(t, "alias.example.org.", "target.example.org.", 300, now)}
		return resp
	})
	client.on("198.41.0.4:53", "target.example.org.", domain.RRTypeA, func(q domain.Message) domain.Message {
		targetCalls++
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Flags.AA = true
		resp.Answer = []domain.ResourceRecord{mustA(t, "target.example.org.", "203.0.113.20", 300, now)}
		return resp
	})

	r := newTestResolver(t, now, client)
	r.cfg.MaxAttempts = 1
	seedRoot(r, "198.41.0.4")

	res := r.Resolve(context.Background(), "alias.example.org.", domain.RRTypeA, domain.RRClassIN, false)
	require.Equal(t, domain.RCodeServFail, res.RCode)
	require.Equal(t, 1, aliasCalls, "the alias query should have spent the whole attempt budget")
	require.Equal(t, 0, targetCalls, "the CNAME chase must not get a fresh attempt budget for the target")
}

func TestResolverFollowsCNAME(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newFakeClient(now)
	client.on("198.41.0.4:53", "alias.example.org.", domain.RRTypeA, func(q domain.Message) domain.Message {
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Flags.AA = true
		resp.Answer = []domain.ResourceRecord{mustCNAME(t, "alias.example.org.", "target.example.org.", 300, now)}
		return resp
	})
	client.on("198.41.0.4:53", "target.example.org.", domain.RRTypeA, func(q domain.Message) domain.Message {
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Flags.AA = true
		resp.Answer = []domain.ResourceRecord{mustA(t, "target.example.org.", "203.0.113.20", 300, now)}
		return resp
	})

	r := newTestResolver(t, now, client)
	seedRoot(r, "198.41.0.4")

	res := r.Resolve(context.Background(), "alias.example.org.", domain.RRTypeA, domain.RRClassIN, false)
	require.Equal(t, domain.RCodeNoError, res.RCode)
	require.Len(t, res.Answer, 2)
	require.Equal(t, domain.RRTypeCNAME, res.Answer[0].Type)
	require.Equal(t, domain.RRTypeA, res.Answer[1].Type)
}
