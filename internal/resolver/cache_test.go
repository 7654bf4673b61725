package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testClock is an adjustable time source for expiry tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClock() *testClock { return &testClock{now: time.Unix(1_700_000_000, 0)} }

func newClockedCache(c *testClock) *ResolverCache {
	cache := NewResolverCache()
	cache.now = c.Now
	return cache
}

func resolvedAttribute(name string, lifetime int64, values ...string) *ResolverAttribute {
	attr := NewResolverAttribute(name)
	for _, v := range values {
		attr.AddValue(v)
	}
	attr.SetLifetime(lifetime)
	attr.SetResolved()
	return attr
}

func TestCacheAttributeRoundTrip(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	cache := newClockedCache(clock)

	cache.CacheAttributeResolution("alice", resolvedAttribute("cn", 60, "Alice"))

	got := cache.ResolvedAttribute("alice", "cn")
	require.NotNil(t, got)
	require.Equal(t, []string{"Alice"}, got.Values())

	// Scoped to the principal and the plug-in id.
	require.Nil(t, cache.ResolvedAttribute("bob", "cn"))
	require.Nil(t, cache.ResolvedAttribute("alice", "mail"))
}

func TestCacheAttributeExpires(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	cache := newClockedCache(clock)

	cache.CacheAttributeResolution("alice", resolvedAttribute("cn", 60, "Alice"))

	clock.Advance(59 * time.Second)
	require.NotNil(t, cache.ResolvedAttribute("alice", "cn"))

	clock.Advance(2 * time.Second)
	require.Nil(t, cache.ResolvedAttribute("alice", "cn"))
}

func TestCacheRejectsUnresolvedAttribute(t *testing.T) {
	t.Parallel()

	cache := NewResolverCache()
	cache.CacheAttributeResolution("alice", NewResolverAttribute("cn"))
	require.Nil(t, cache.ResolvedAttribute("alice", "cn"))
}

func TestCacheSkipsNonPositiveLifetime(t *testing.T) {
	t.Parallel()

	cache := NewResolverCache()
	cache.CacheAttributeResolution("alice", resolvedAttribute("cn", 0, "Alice"))
	require.Nil(t, cache.ResolvedAttribute("alice", "cn"))
}

func TestCacheConnectorRoundTripAndExpiry(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	cache := newClockedCache(clock)

	raw := RawAttributes{"eduPersonAffiliation": {"member"}}
	cache.CacheConnectorResolution("alice", "directory", 300, raw)

	got := cache.ResolvedConnector("alice", "directory")
	require.Equal(t, raw, got)

	clock.Advance(301 * time.Second)
	require.Nil(t, cache.ResolvedConnector("alice", "directory"))
}

func TestCacheConnectorSkipsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	cache := NewResolverCache()
	cache.CacheConnectorResolution("alice", "directory", 0, RawAttributes{"cn": {"Alice"}})
	require.Nil(t, cache.ResolvedConnector("alice", "directory"))
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	cache := newClockedCache(clock)

	cache.CacheAttributeResolution("alice", resolvedAttribute("cn", 60, "Alice"))
	cache.CacheAttributeResolution("alice", resolvedAttribute("mail", 3600, "alice@example.edu"))
	cache.CacheConnectorResolution("alice", "directory", 60, RawAttributes{})

	clock.Advance(61 * time.Second)
	cache.sweep()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	require.Len(t, cache.attributes, 1)
	require.Empty(t, cache.connectors)
}

func TestStartStopAreIdempotent(t *testing.T) {
	t.Parallel()

	cache := NewResolverCache()
	cache.Start()
	cache.Start()
	cache.Stop()
	cache.Stop()
}
