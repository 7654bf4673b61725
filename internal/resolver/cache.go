package resolver

import (
	"log"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// cacheKey scopes a cached resolution to one principal and one plug-in.
type cacheKey struct {
	principal string
	plugInID  string
}

type cachedAttribute struct {
	attribute *ResolverAttribute
	expires   time.Time
}

type cachedConnector struct {
	raw     RawAttributes
	expires time.Time
}

// ResolverCache holds plug-in results across requests, keyed by principal
// and plug-in id, each entry with its own TTL. Expired entries are dropped
// lazily on read and swept periodically once Start has been called.
type ResolverCache struct {
	mu         sync.Mutex
	attributes map[cacheKey]cachedAttribute
	connectors map[cacheKey]cachedConnector

	// now is replaceable so tests can control expiry.
	now func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewResolverCache creates an empty cache. The sweeper is not running until
// Start is called.
func NewResolverCache() *ResolverCache {
	return &ResolverCache{
		attributes: make(map[cacheKey]cachedAttribute),
		connectors: make(map[cacheKey]cachedConnector),
		now:        time.Now,
	}
}

// Start launches the background sweeper that removes expired entries every
// five minutes. Starting an already started cache is a no-op.
func (c *ResolverCache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.sweepLoop(c.stop, c.done)
}

// Stop terminates the sweeper and waits for it to exit. Stopping a cache
// that was never started is a no-op.
func (c *ResolverCache) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *ResolverCache) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *ResolverCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.attributes {
		if !entry.expires.After(now) {
			delete(c.attributes, key)
		}
	}
	for key, entry := range c.connectors {
		if !entry.expires.After(now) {
			delete(c.connectors, key)
		}
	}
}

// CacheAttributeResolution stores a resolved attribute for the principal
// under the attribute's name, expiring after the attribute's lifetime. An
// unresolved attribute or a non-positive lifetime makes the call a no-op.
func (c *ResolverCache) CacheAttributeResolution(principal string, attribute *ResolverAttribute) {
	if attribute == nil || !attribute.Resolved() {
		log.Printf("🧰 [ResolverCache] Error: refusing to cache unresolved attribute for principal (%s)", principal)
		return
	}
	if attribute.Lifetime() <= 0 {
		return
	}
	key := cacheKey{principal: principal, plugInID: attribute.Name()}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[key] = cachedAttribute{
		attribute: attribute,
		expires:   c.now().Add(time.Duration(attribute.Lifetime()) * time.Second),
	}
}

// ResolvedAttribute returns the cached attribute for the principal and
// plug-in id, or nil when absent or expired.
func (c *ResolverCache) ResolvedAttribute(principal, plugInID string) *ResolverAttribute {
	key := cacheKey{principal: principal, plugInID: plugInID}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.attributes[key]
	if !ok {
		return nil
	}
	if !entry.expires.After(c.now()) {
		delete(c.attributes, key)
		return nil
	}
	return entry.attribute
}

// CacheConnectorResolution stores a connector's raw attribute set for the
// principal, expiring after ttl seconds. A non-positive ttl makes the call a
// no-op.
func (c *ResolverCache) CacheConnectorResolution(principal, plugInID string, ttl int64, raw RawAttributes) {
	if ttl <= 0 {
		return
	}
	key := cacheKey{principal: principal, plugInID: plugInID}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectors[key] = cachedConnector{
		raw:     raw,
		expires: c.now().Add(time.Duration(ttl) * time.Second),
	}
}

// ResolvedConnector returns the cached raw attribute set for the principal
// and plug-in id, or nil when absent or expired.
func (c *ResolverCache) ResolvedConnector(principal, plugInID string) RawAttributes {
	key := cacheKey{principal: principal, plugInID: plugInID}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.connectors[key]
	if !ok {
		return nil
	}
	if !entry.expires.After(c.now()) {
		delete(c.connectors, key)
		return nil
	}
	return entry.raw
}
