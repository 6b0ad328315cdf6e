package routing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meshnet-labs/routing-table/internal/metrics"
)

// ComponentArchiver implements spec.md §4.E: it persists edges touching
// peers that have been unreachable long enough, and restores them when
// such a peer reappears. It is adapted from the teacher's
// internal/history/writer.go batch-commit idiom (accumulate, commit
// atomically, log and continue on failure) applied to a very different
// payload.
type ComponentArchiver struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	peerLastTimeReachable map[PeerID]time.Time
	// componentNonce holds the last allocated component nonce; -1 means
	// none has been allocated yet. Allocation increments it first.
	componentNonce int64
}

// NewComponentArchiver initializes the in-memory nonce counter from the
// persisted LastComponentNonce singleton (spec.md §4.E "Initialization").
func NewComponentArchiver(ctx context.Context, store Store, logger *zap.Logger) (*ComponentArchiver, error) {
	nonce, ok, err := store.GetLastComponentNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading last component nonce: %w", err)
	}
	componentNonce := int64(-1)
	if ok {
		componentNonce = int64(nonce)
	}
	return &ComponentArchiver{
		store:                 store,
		logger:                logger,
		now:                   time.Now,
		peerLastTimeReachable: make(map[PeerID]time.Time),
		componentNonce:        componentNonce,
	}, nil
}

// MarkReachable stamps p's last-reachable timestamp to now. Called by
// RoutingTable.Update for every currently-BFS-reachable peer.
func (a *ComponentArchiver) MarkReachable(p PeerID) {
	a.peerLastTimeReachable[p] = a.now()
}

// Touch is called before every graph.AddEdge (spec.md §4.E). If p is
// self or already tracked, it is a no-op. If p was never seen, it starts
// being tracked as of now. If p belongs to an archived component, that
// component's edges are read back, every endpoint still assigned to that
// component (p included) is tracked again with a nearly-expired
// timestamp and its component row deleted, and every edge is re-ingested
// via addEdge.
func (a *ComponentArchiver) Touch(ctx context.Context, p, self PeerID, addEdge func(Edge)) {
	if p == self {
		return
	}
	if _, ok := a.peerLastTimeReachable[p]; ok {
		return
	}

	nonce, ok, err := a.store.GetPeerComponent(ctx, p)
	if err != nil {
		a.logger.Warn("failed to read peer component", zap.Stringer("peer", p), zap.Error(err))
		return
	}
	if !ok {
		a.peerLastTimeReachable[p] = a.now()
		return
	}

	edges, err := a.store.GetComponentEdges(ctx, nonce)
	if err != nil {
		a.logger.Warn("failed to read archived component edges",
			zap.Uint64("component_nonce", nonce), zap.Error(err))
		return
	}

	batch := a.store.NewBatch()
	batch.DeleteComponentEdges(nonce)

	nearlyExpired := a.now().Add(-SavePeersMaxTime)
	seen := make(map[PeerID]struct{})
	for _, e := range edges {
		for _, q := range [2]PeerID{e.Peer0, e.Peer1} {
			if _, done := seen[q]; done {
				continue
			}
			seen[q] = struct{}{}
			qNonce, qOK, qErr := a.store.GetPeerComponent(ctx, q)
			if qErr != nil {
				a.logger.Warn("failed to read peer component", zap.Stringer("peer", q), zap.Error(qErr))
				continue
			}
			if qOK && qNonce == nonce {
				a.peerLastTimeReachable[q] = nearlyExpired
				batch.DeletePeerComponent(q)
			}
		}
	}

	if err := batch.Commit(ctx); err != nil {
		a.logger.Warn("failed to commit component restore",
			zap.Uint64("component_nonce", nonce), zap.Error(err))
		metrics.StoreWriteFailuresTotal.WithLabelValues("peer_component").Inc()
	}
	metrics.ArchiveOperationsTotal.WithLabelValues("restore").Inc()

	// Re-ingest without recursing into addEdge's other endpoint: if q
	// belongs to a different archived component, its edges stay
	// archived until q is touched on its own. Lazy restoration by
	// design (spec.md §9), not an oversight.
	for _, e := range edges {
		addEdge(e)
	}
}

// TrySaveEdges implements the archive trigger (spec.md §4.E). removeEdges
// is invoked with the set of long-unreachable peers and must remove every
// live edge touching any of them, returning the removed edges for
// archival.
func (a *ComponentArchiver) TrySaveEdges(ctx context.Context, removeEdges func(peers map[PeerID]struct{}) []Edge) {
	if len(a.peerLastTimeReachable) == 0 {
		return
	}

	now := a.now()
	var oldest time.Time
	first := true
	for _, t := range a.peerLastTimeReachable {
		if first || t.Before(oldest) {
			oldest, first = t, false
		}
	}
	if now.Sub(oldest) < SavePeersMaxTime {
		return
	}

	stale := make(map[PeerID]struct{})
	for p, t := range a.peerLastTimeReachable {
		if now.Sub(t) >= SavePeersAfterTime {
			stale[p] = struct{}{}
		}
	}
	if len(stale) == 0 {
		return
	}

	a.componentNonce++
	nonce := uint64(a.componentNonce)

	removed := removeEdges(stale)

	batch := a.store.NewBatch()
	batch.PutLastComponentNonce(nonce)
	for p := range stale {
		batch.PutPeerComponent(p, nonce)
		delete(a.peerLastTimeReachable, p)
	}
	batch.PutComponentEdges(nonce, removed)

	if err := batch.Commit(ctx); err != nil {
		a.logger.Warn("failed to commit archived component",
			zap.Uint64("component_nonce", nonce), zap.Error(err))
		metrics.StoreWriteFailuresTotal.WithLabelValues("component_edges").Inc()
	}
	metrics.ArchiveOperationsTotal.WithLabelValues("save").Inc()
}
