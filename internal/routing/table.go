package routing

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/meshnet-labs/routing-table/internal/metrics"
)

// RouteTarget is find_route's argument: either a direct peer id or a
// route-back hash (spec.md §4.F). Construct with RouteToPeer/RouteToHash.
type RouteTarget struct {
	peer *PeerID
	hash *CryptoHash
}

func RouteToPeer(p PeerID) RouteTarget    { return RouteTarget{peer: &p} }
func RouteToHash(h CryptoHash) RouteTarget { return RouteTarget{hash: &h} }

// Options carries the tunable constants from spec.md §6 that callers may
// override; zero values fall back to the spec defaults.
type Options struct {
	RouteBackCapacity            int
	RouteBackTTL                 time.Duration
	AccountCacheCapacity         int
	PingPongCacheCapacity        int
	RoundRobinNonceCacheCapacity int
}

// RoutingTableInfo is a read-only snapshot combining the account
// directory with the current forwarding table (SPEC_FULL.md §4,
// supplemented from original_source — spec.md names info()/get_edges()
// but doesn't spell out their shapes).
type RoutingTableInfo struct {
	AccountPeers   map[AccountID]PeerID
	PeerForwarding map[PeerID][]PeerID
}

// RoutingTable is Component F, the orchestrator integrating A–E (spec.md
// §2, §4.F). It is a single-writer structure (§5): every exported method
// here is expected to be called only from its one logical owner, with
// reads served out through snapshots such as Info/GetEdges.
type RoutingTable struct {
	logger *zap.Logger
	self   PeerID

	graph     *Graph
	edgesInfo map[edgeKey]Edge

	peerForwarding map[PeerID][]PeerID
	routeNonce     *lru.Cache[PeerID, uint64]

	routeBack *RouteBackCache
	accounts  *AccountDirectory
	archiver  *ComponentArchiver
	pingPong  *pingPongState
}

// NewRoutingTable wires up Components A-E behind a fresh RoutingTable
// rooted at self. It reads the persisted component-archive state once
// during construction (spec.md §4.E "Initialization").
func NewRoutingTable(ctx context.Context, self PeerID, store Store, logger *zap.Logger, opts Options) (*RoutingTable, error) {
	archiver, err := NewComponentArchiver(ctx, store, logger.Named("archiver"))
	if err != nil {
		return nil, err
	}

	routeNonceCap := opts.RoundRobinNonceCacheCapacity
	if routeNonceCap <= 0 {
		routeNonceCap = RoundRobinNonceCacheSize
	}
	routeNonce, _ := lru.New[PeerID, uint64](routeNonceCap)

	return &RoutingTable{
		logger:         logger,
		self:           self,
		graph:          NewGraph(self, logger.Named("graph")),
		edgesInfo:      make(map[edgeKey]Edge),
		peerForwarding: make(map[PeerID][]PeerID),
		routeNonce:     routeNonce,
		routeBack:      NewRouteBackCache(opts.RouteBackCapacity, opts.RouteBackTTL),
		accounts:       NewAccountDirectory(store, opts.AccountCacheCapacity, logger.Named("accounts")),
		archiver:       archiver,
		pingPong:       newPingPongState(opts.PingPongCacheCapacity),
	}, nil
}

// ProcessEdges installs a batch of already-cryptographically-verified
// edges in the order given (spec.md §4.F, §5) and reports whether any of
// them carried new information.
func (rt *RoutingTable) ProcessEdges(ctx context.Context, edges []Edge) bool {
	newEdge := false
	for _, e := range edges {
		rt.touch(ctx, e.Peer0)
		rt.touch(ctx, e.Peer1)
		if rt.addEdge(e) {
			newEdge = true
		}
	}
	return newEdge
}

func (rt *RoutingTable) touch(ctx context.Context, p PeerID) {
	rt.archiver.Touch(ctx, p, rt.self, func(e Edge) { rt.addEdge(e) })
}

// addEdge is the internal add_edge from spec.md §4.F: discards
// non-monotone proposals, otherwise applies the edge to the graph and
// overwrites the edge registry.
func (rt *RoutingTable) addEdge(e Edge) bool {
	key := edgeKey{e.Peer0, e.Peer1}
	if existing, ok := rt.edgesInfo[key]; ok && existing.Nonce >= e.Nonce {
		return false
	}

	switch e.Type() {
	case EdgeAdded:
		rt.graph.AddEdge(e.Peer0, e.Peer1)
		metrics.EdgeUpdatesTotal.WithLabelValues("added").Inc()
	case EdgeRemoved:
		rt.graph.RemoveEdge(e.Peer0, e.Peer1)
		metrics.EdgeUpdatesTotal.WithLabelValues("removed").Inc()
	}
	rt.edgesInfo[key] = e
	metrics.EdgesActive.Set(float64(len(rt.edgesInfo)))
	return true
}

// FindRouteFromPeer implements round-robin with bounded drift (spec.md
// §4.F).
func (rt *RoutingTable) FindRouteFromPeer(target PeerID) (PeerID, error) {
	candidates, ok := rt.peerForwarding[target]
	if !ok {
		return PeerID{}, ErrPeerNotFound
	}
	if len(candidates) == 0 {
		return PeerID{}, ErrDisconnected
	}

	type tuple struct {
		nonce uint64
		peer  PeerID
	}
	tupleLess := func(a, b tuple) bool {
		if a.nonce != b.nonce {
			return a.nonce < b.nonce
		}
		return a.peer.Less(b.peer)
	}

	tuples := make([]tuple, len(candidates))
	for i, p := range candidates {
		n, _ := rt.routeNonce.Get(p)
		tuples[i] = tuple{n, p}
	}

	minIdx, maxIdx := 0, 0
	for i := 1; i < len(tuples); i++ {
		if tupleLess(tuples[i], tuples[minIdx]) {
			minIdx = i
		}
		if tupleLess(tuples[maxIdx], tuples[i]) {
			maxIdx = i
		}
	}
	min, max := tuples[minIdx], tuples[maxIdx]

	if min.nonce+RoundRobinDrift < max.nonce {
		min.nonce = max.nonce - RoundRobinDrift
	}

	next := min.peer
	rt.routeNonce.Add(next, min.nonce+1)
	return next, nil
}

// FindRoute dispatches on the target's kind (spec.md §4.F): a direct
// peer id resolves through round-robin forwarding; a hash resolves
// (destructively) through the route-back cache.
func (rt *RoutingTable) FindRoute(target RouteTarget) (PeerID, error) {
	switch {
	case target.peer != nil:
		return rt.FindRouteFromPeer(*target.peer)
	case target.hash != nil:
		if p, ok := rt.routeBack.Remove(*target.hash); ok {
			return p, nil
		}
		return PeerID{}, ErrRouteBackNotFound
	default:
		panic("routing: empty RouteTarget")
	}
}

// AccountOwner returns the peer currently announcing account, or
// ErrAccountNotFound.
func (rt *RoutingTable) AccountOwner(ctx context.Context, account AccountID) (PeerID, error) {
	a, err := rt.accounts.GetAnnounce(ctx, account)
	if err != nil {
		return PeerID{}, err
	}
	return a.PeerID, nil
}

// AddAccount records a new account announcement.
func (rt *RoutingTable) AddAccount(ctx context.Context, a AnnounceAccount) {
	rt.accounts.AddAccount(ctx, a)
}

// ContainsAccount reports whether a is already known at its epoch.
func (rt *RoutingTable) ContainsAccount(ctx context.Context, a AnnounceAccount) bool {
	return rt.accounts.ContainsAccount(ctx, a)
}

// Update recomputes the forwarding table from the graph's BFS, refreshes
// every reachable peer's last-seen timestamp, and optionally triggers
// archival (spec.md §4.F).
func (rt *RoutingTable) Update(ctx context.Context, canArchive bool) {
	start := time.Now()
	rt.peerForwarding = rt.graph.CalculateDistance()
	metrics.RoutingTableRecalculationDuration.Observe(time.Since(start).Seconds())
	metrics.RoutingTableRecalculationsTotal.Inc()
	metrics.PeerReachable.Set(float64(len(rt.peerForwarding)))

	for p := range rt.peerForwarding {
		rt.archiver.MarkReachable(p)
	}
	if canArchive {
		rt.archiver.TrySaveEdges(ctx, rt.removeEdgesForArchive)
	}
}

// removeEdgesForArchive drops every live edge touching a peer in peers,
// returning the removed edges for the archiver to persist.
func (rt *RoutingTable) removeEdgesForArchive(peers map[PeerID]struct{}) []Edge {
	var removed []Edge
	for key, e := range rt.edgesInfo {
		_, loStale := peers[key.lo]
		_, hiStale := peers[key.hi]
		if !loStale && !hiStale {
			continue
		}
		removed = append(removed, e)
		delete(rt.edgesInfo, key)
		rt.graph.RemoveEdge(key.lo, key.hi)
	}
	return removed
}

// AddRouteBack records h -> p for later reply routing.
func (rt *RoutingTable) AddRouteBack(h CryptoHash, p PeerID) {
	rt.routeBack.Insert(h, p)
}

// CompareRouteBack is a non-destructive read used for forwarding-loop
// detection (spec.md §9): unlike FindRoute(RouteToHash), it never
// consumes the entry.
func (rt *RoutingTable) CompareRouteBack(h CryptoHash, p PeerID) bool {
	cur, ok := rt.routeBack.Get(h)
	return ok && cur == p
}

// GetPing returns the next monotone nonce to use when pinging peer.
func (rt *RoutingTable) GetPing(peer PeerID) uint64 { return rt.pingPong.GetPing(peer) }

// SendingPing records that a ping with nonce was just sent to target.
func (rt *RoutingTable) SendingPing(nonce uint64, target PeerID) {
	rt.pingPong.SendingPing(nonce, target)
}

// AddPing records an inbound ping.
func (rt *RoutingTable) AddPing(p Ping) { rt.pingPong.AddPing(p) }

// AddPong records an inbound pong and returns the RTT if it matches an
// outstanding ping.
func (rt *RoutingTable) AddPong(p Pong) (time.Duration, bool) {
	rtt, matched := rt.pingPong.AddPong(p)
	if matched {
		metrics.PingRTT.Observe(rtt.Seconds())
	}
	return rtt, matched
}

// FetchPingPong returns a snapshot of both ping/pong caches (supplemented
// read accessor, SPEC_FULL.md §4).
func (rt *RoutingTable) FetchPingPong() (map[uint64]Ping, map[uint64]Pong) {
	return rt.pingPong.Fetch()
}

// Info returns a read-only snapshot of the account directory and
// forwarding table (supplemented read accessor, SPEC_FULL.md §4).
func (rt *RoutingTable) Info() RoutingTableInfo {
	accountPeers := make(map[AccountID]PeerID)
	for _, a := range rt.accounts.GetAnnounceAccounts() {
		accountPeers[a.AccountID] = a.PeerID
	}

	forwarding := make(map[PeerID][]PeerID, len(rt.peerForwarding))
	for k, v := range rt.peerForwarding {
		cp := make([]PeerID, len(v))
		copy(cp, v)
		forwarding[k] = cp
	}

	return RoutingTableInfo{AccountPeers: accountPeers, PeerForwarding: forwarding}
}

// GetEdge returns the currently registered edge for the pair, if any.
func (rt *RoutingTable) GetEdge(p0, p1 PeerID) (Edge, bool) {
	lo, hi := orderPeers(p0, p1)
	e, ok := rt.edgesInfo[edgeKey{lo, hi}]
	return e, ok
}

// GetEdges returns every currently registered edge (supplemented read
// accessor, SPEC_FULL.md §4).
func (rt *RoutingTable) GetEdges() []Edge {
	out := make([]Edge, 0, len(rt.edgesInfo))
	for _, e := range rt.edgesInfo {
		out = append(out, e)
	}
	return out
}

// GetAccountsKeys returns every cached account id.
func (rt *RoutingTable) GetAccountsKeys() []AccountID { return rt.accounts.GetAccountsKeys() }

// GetAnnounceAccounts returns every cached account announcement.
func (rt *RoutingTable) GetAnnounceAccounts() []AnnounceAccount {
	return rt.accounts.GetAnnounceAccounts()
}
