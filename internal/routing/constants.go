package routing

import "time"

// Tunable constants named in spec.md §6. Callers may override the ones
// exposed as constructor arguments; these are the reference defaults.
const (
	AnnounceAccountCacheSize = 10_000
	RouteBackCacheSize       = 100_000
	RouteBackCacheEvictTTL   = 120 * time.Second
	RouteBackCacheRemoveBatch = 100

	PingPongCacheSize        = 1_000
	RoundRobinDrift          = 10
	RoundRobinNonceCacheSize = 10_000

	SavePeersAfterTime = 3600 * time.Second
	SavePeersMaxTime    = 7200 * time.Second

	MaxPeers = 128
)
