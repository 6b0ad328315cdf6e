package routing

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Ping and Pong are the liveness-probe records named in spec.md §6. The
// source of a Pong is the peer that answered — the original ping's target.
type Ping struct {
	Nonce  uint64
	Source PeerID
}

type Pong struct {
	Nonce  uint64
	Source PeerID
}

// pingPongState is the RTT-measurement layer folded into RoutingTable
// (Component F owns it per spec.md §2/§4.F). It mirrors the original's
// SizedCache-based ping/pong bookkeeping with hashicorp/golang-lru/v2 —
// the same library already wired for the account directory.
type pingPongState struct {
	pingInfo *lru.Cache[uint64, Ping]
	pongInfo *lru.Cache[uint64, Pong]

	// waitingPong tracks outstanding pings per target, bounded to 10 per
	// target, with the instant each was sent for RTT computation.
	waitingPong map[PeerID]map[uint64]time.Time

	// lastPingNonce is a monotone per-target nonce generator starting at 0.
	lastPingNonce map[PeerID]uint64
}

const maxOutstandingPingsPerTarget = 10

func newPingPongState(cacheSize int) *pingPongState {
	if cacheSize <= 0 {
		cacheSize = PingPongCacheSize
	}
	pingInfo, _ := lru.New[uint64, Ping](cacheSize)
	pongInfo, _ := lru.New[uint64, Pong](cacheSize)
	return &pingPongState{
		pingInfo:      pingInfo,
		pongInfo:      pongInfo,
		waitingPong:   make(map[PeerID]map[uint64]time.Time),
		lastPingNonce: make(map[PeerID]uint64),
	}
}

// GetPing returns the next nonce to use when pinging peer: a monotone
// per-target counter starting at 0.
func (s *pingPongState) GetPing(peer PeerID) uint64 {
	n, ok := s.lastPingNonce[peer]
	if ok {
		n++
	}
	s.lastPingNonce[peer] = n
	return n
}

// SendingPing records that a ping with nonce was just sent to target, so
// a later Pong with a matching nonce/source can have its RTT computed.
// Outstanding pings per target are bounded to 10; the oldest is dropped
// on overflow.
func (s *pingPongState) SendingPing(nonce uint64, target PeerID) {
	byNonce, ok := s.waitingPong[target]
	if !ok {
		byNonce = make(map[uint64]time.Time)
		s.waitingPong[target] = byNonce
	}
	if len(byNonce) >= maxOutstandingPingsPerTarget {
		evictOldest(byNonce)
	}
	byNonce[nonce] = time.Now()
}

func evictOldest(byNonce map[uint64]time.Time) {
	var oldestNonce uint64
	var oldestAt time.Time
	first := true
	for n, t := range byNonce {
		if first || t.Before(oldestAt) {
			oldestNonce, oldestAt, first = n, t, false
		}
	}
	if !first {
		delete(byNonce, oldestNonce)
	}
}

// AddPing records an inbound ping, e.g. so a reply pong can be matched
// against it later via FetchPingPong.
func (s *pingPongState) AddPing(p Ping) {
	s.pingInfo.Add(p.Nonce, p)
}

// AddPong records an inbound pong and, if a matching outstanding ping was
// sent to its source, returns the round-trip time.
func (s *pingPongState) AddPong(p Pong) (time.Duration, bool) {
	byNonce, ok := s.waitingPong[p.Source]
	if !ok {
		s.pongInfo.Add(p.Nonce, p)
		return 0, false
	}
	sentAt, ok := byNonce[p.Nonce]
	if !ok {
		s.pongInfo.Add(p.Nonce, p)
		return 0, false
	}
	delete(byNonce, p.Nonce)
	if len(byNonce) == 0 {
		delete(s.waitingPong, p.Source)
	}
	s.pongInfo.Add(p.Nonce, p)
	return time.Since(sentAt), true
}

// Fetch returns a snapshot of both caches, keyed by nonce, for the
// read-only info/debug surface (spec.md §4's supplemented FetchPingPong).
func (s *pingPongState) Fetch() (map[uint64]Ping, map[uint64]Pong) {
	pings := make(map[uint64]Ping, s.pingInfo.Len())
	for _, k := range s.pingInfo.Keys() {
		if v, ok := s.pingInfo.Peek(k); ok {
			pings[k] = v
		}
	}
	pongs := make(map[uint64]Pong, s.pongInfo.Len())
	for _, k := range s.pongInfo.Keys() {
		if v, ok := s.pongInfo.Peek(k); ok {
			pongs[k] = v
		}
	}
	return pings, pongs
}
