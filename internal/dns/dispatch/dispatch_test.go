package dispatch

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilldns/rr-dns/internal/dns/authoritative"
	"github.com/quilldns/rr-dns/internal/dns/cache"
	"github.com/quilldns/rr-dns/internal/dns/common/clock"
	"github.com/quilldns/rr-dns/internal/dns/domain"
	"github.com/quilldns/rr-dns/internal/dns/resolver"
	"github.com/quilldns/rr-dns/internal/dns/wire"
	"github.com/quilldns/rr-dns/internal/dns/zonestore"
)

// fakeClient answers every upstream query the same way, enough to exercise
// the dispatcher's recursive path without a real network.
type fakeClient struct {
	fn func(domain.Message) domain.Message
}

func (f fakeClient) Query(_ context.Context, _ string, q domain.Message) (domain.Message, error) {
	return f.fn(q), nil
}

func buildDispatcher(t *testing.T, recurse bool) *Dispatcher {
	t.Helper()
	records := []domain.ResourceRecord{
		mustAuth(t, "example.com.", domain.SOAData{MName: "ns1.example.com.", RName: "admin.example.com.", Serial: 1, Refresh: 7200, Retry: 600, Expire: 3600000, Minimum: 60}, 3600),
		mustAuth(t, "example.com.", domain.NSData{NSDName: "ns1.example.com."}, 3600),
		mustAuth(t, "ns1.example.com.", domain.AData{Addr: net.ParseIP("127.0.0.1")}, 3600),
		mustAuth(t, "portal.example.com.", domain.AData{Addr: net.ParseIP("194.45.65.31")}, 300),
	}
	store := zonestore.New()
	require.NoError(t, store.LoadZone("example.com.", records))
	responder := authoritative.New(store, nil)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := clock.NewMockClock(now)
	rc, err := cache.NewRecordCache(64, mc)
	require.NoError(t, err)
	nsc, err := cache.NewNSCache(64, mc)
	require.NoError(t, err)
	neg, err := cache.NewNegativeCache(64, mc)
	require.NoError(t, err)

	client := fakeClient{fn: func(q domain.Message) domain.Message {
		resp := domain.Message{ID: q.ID, Question: q.Question}
		resp.Flags.QR = true
		resp.Flags.AA = true
		rr, _ := domain.NewCachedRecord(q.Question.Name, domain.RRClassIN, 60, domain.AData{Addr: net.ParseIP("203.0.113.9")}, now)
		resp.Answer = []domain.ResourceRecord{rr}
		return resp
	}}
	cfg := resolver.DefaultConfig()
	cfg.SingleFlight = false
	res := resolver.New(rc, nsc, neg, client, mc, nil, cfg)
	resolver.SeedRootHints(nsc, []resolver.RootHint{{Name: ".", Addr: net.ParseIP("198.41.0.4")}})

	return New(responder, res, recurse, false, nil)
}

func mustAuth(t *testing.T, name string, data domain.RData, ttl uint32) domain.ResourceRecord {
	t.Helper()
	rr, err := domain.NewAuthoritativeRecord(name, domain.RRClassIN, ttl, data)
	require.NoError(t, err)
	return rr
}

func encodeQuery(t *testing.T, name string, qtype domain.RRType, rd bool) []byte {
	t.Helper()
	msg, err := domain.NewQueryMessage(7, name, qtype, domain.RRClassIN, rd)
	require.NoError(t, err)
	data, err := wire.EncodeMessage(msg)
	require.NoError(t, err)
	return data
}

func TestDispatchRoutesToAuthoritative(t *testing.T) {
	d := buildDispatcher(t, true)
	raw := encodeQuery(t, "portal.example.com.", domain.RRTypeA, false)

	out := d.HandleUDP(context.Background(), raw)
	require.NotNil(t, out)
	resp, err := wire.DecodeMessage(out, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.RCodeNoError, resp.Flags.RCode)
	assert.True(t, resp.Flags.AA)
	require.Len(t, resp.Answer, 1)
}

func TestDispatchRoutesToResolverWhenRecursionRequested(t *testing.T) {
	d := buildDispatcher(t, true)
	raw := encodeQuery(t, "other.example.org.", domain.RRTypeA, true)

	out := d.HandleUDP(context.Background(), raw)
	require.NotNil(t, out)
	resp, err := wire.DecodeMessage(out, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.RCodeNoError, resp.Flags.RCode)
	assert.True(t, resp.Flags.RA)
	require.Len(t, resp.Answer, 1)
}

func TestDispatchRefusesWhenRecursionNotOfferedAndOutsideZone(t *testing.T) {
	d := buildDispatcher(t, false)
	raw := encodeQuery(t, "other.example.org.", domain.RRTypeA, true)

	out := d.HandleUDP(context.Background(), raw)
	require.NotNil(t, out)
	resp, err := wire.DecodeMessage(out, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.RCodeRefused, resp.Flags.RCode)
}

func TestDispatchRefusesWhenRDNotSet(t *testing.T) {
	d := buildDispatcher(t, true)
	raw := encodeQuery(t, "other.example.org.", domain.RRTypeA, false)

	out := d.HandleUDP(context.Background(), raw)
	require.NotNil(t, out)
	resp, err := wire.DecodeMessage(out, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.RCodeRefused, resp.Flags.RCode)
}

func TestDispatchFormatErrorEchoesID(t *testing.T) {
	d := buildDispatcher(t, true)
	garbage := []byte{0x12, 0x34, 0xFF, 0xFF} // decodable ID, unparsable rest

	out := d.HandleUDP(context.Background(), garbage)
	require.NotNil(t, out)
	id := uint16(out[0])<<8 | uint16(out[1])
	assert.Equal(t, uint16(0x1234), id)
}

func TestDispatchDropsUndecodablePacket(t *testing.T) {
	d := buildDispatcher(t, true)
	out := d.HandleUDP(context.Background(), []byte{0x01})
	assert.Nil(t, out)
}

func TestDispatchTCP(t *testing.T) {
	d := buildDispatcher(t, true)
	raw := encodeQuery(t, "portal.example.com.", domain.RRTypeA, false)

	out := d.HandleTCP(context.Background(), raw)
	require.NotNil(t, out)
	resp, err := wire.DecodeMessage(out, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.RCodeNoError, resp.Flags.RCode)
}
