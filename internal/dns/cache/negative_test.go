package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilldns/rr-dns/internal/dns/common/clock"
)

func TestNegativeCacheSetHit(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewNegativeCache(10, mc)
	require.NoError(t, err)

	c.Set("nosuch.example.com.", 30)
	assert.True(t, c.Hit("nosuch.example.com."))
	assert.Equal(t, 1, c.Len())
}

func TestNegativeCacheExpires(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewNegativeCache(10, mc)
	require.NoError(t, err)

	c.Set("nosuch.example.com.", 5)
	mc.Advance(6 * time.Second)

	assert.False(t, c.Hit("nosuch.example.com."))
}

func TestNegativeCacheZeroTTLNotCached(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewNegativeCache(10, mc)
	require.NoError(t, err)

	c.Set("nosuch.example.com.", 0)
	assert.False(t, c.Hit("nosuch.example.com."))
	assert.Equal(t, 0, c.Len())
}

func TestNegativeCacheClampsToMaxTTL(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewNegativeCache(10, mc)
	require.NoError(t, err)

	c.Set("nosuch.example.com.", uint32(2*MaxNegativeTTL/time.Second))
	mc.Advance(MaxNegativeTTL + time.Second)

	assert.False(t, c.Hit("nosuch.example.com."), "TTL should have been clamped to MaxNegativeTTL")
}

func TestNegativeCacheMissReturnsFalse(t *testing.T) {
	mc := &clock.MockClock{}
	c, err := NewNegativeCache(10, mc)
	require.NoError(t, err)

	assert.False(t, c.Hit("never-set.example.com."))
}
