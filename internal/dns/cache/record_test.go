package cache

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilldns/rr-dns/internal/dns/common/clock"
	"github.com/quilldns/rr-dns/internal/dns/domain"
)

func aRecord(t *testing.T, name string, ttl uint32, now time.Time) domain.ResourceRecord {
	t.Helper()
	rr, err := domain.NewCachedRecord(name, domain.RRClassIN, ttl, domain.AData{Addr: net.ParseIP("127.0.0.1")}, now)
	require.NoError(t, err)
	return rr
}

func TestRecordCacheSetGet(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewRecordCache(10, mc)
	require.NoError(t, err)

	rr := aRecord(t, "api.example.com.", 30, mc.Now())
	c.Set("api.example.com.", domain.RRTypeA, domain.RRClassIN, []domain.ResourceRecord{rr})

	got, ok := c.Get("api.example.com.", domain.RRTypeA, domain.RRClassIN)
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestRecordCacheExpiresLazily(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewRecordCache(10, mc)
	require.NoError(t, err)

	rr := aRecord(t, "api.example.com.", 5, mc.Now())
	c.Set("api.example.com.", domain.RRTypeA, domain.RRClassIN, []domain.ResourceRecord{rr})

	mc.Advance(6 * time.Second)
	_, ok := c.Get("api.example.com.", domain.RRTypeA, domain.RRClassIN)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestRecordCacheZeroTTLNotCached(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewRecordCache(10, mc)
	require.NoError(t, err)

	rr := aRecord(t, "api.example.com.", 0, mc.Now())
	c.Set("api.example.com.", domain.RRTypeA, domain.RRClassIN, []domain.ResourceRecord{rr})

	_, ok := c.Get("api.example.com.", domain.RRTypeA, domain.RRClassIN)
	assert.False(t, ok)
}

func TestRecordCacheSweepEvictsExpired(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewRecordCache(10, mc)
	require.NoError(t, err)

	rr := aRecord(t, "api.example.com.", 5, mc.Now())
	c.Set("api.example.com.", domain.RRTypeA, domain.RRClassIN, []domain.ResourceRecord{rr})
	mc.Advance(10 * time.Second)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 0, c.Len())
}
