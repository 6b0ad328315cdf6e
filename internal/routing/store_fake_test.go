package routing

import (
	"context"
	"sync"
)

// memStore is an in-memory routing.Store used by tests in this package.
// It mirrors the column layout of internal/store's pgx-backed
// implementation (four maps standing in for the four tables) without
// any dependency on pgx, so RoutingTable/ComponentArchiver/
// AccountDirectory stay testable without a database.
type memStore struct {
	mu sync.Mutex

	announcements   map[AccountID]AnnounceAccount
	peerComponent   map[PeerID]uint64
	componentEdges  map[uint64][]Edge
	lastComponentOK bool
	lastComponent   uint64

	// failNextCommit forces the next batch Commit to return an error,
	// for exercising the "log and continue on failure" paths.
	failNextCommit bool
}

func newMemStore() *memStore {
	return &memStore{
		announcements:  make(map[AccountID]AnnounceAccount),
		peerComponent:  make(map[PeerID]uint64),
		componentEdges: make(map[uint64][]Edge),
	}
}

func (s *memStore) GetAnnouncement(_ context.Context, accountID AccountID) (AnnounceAccount, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.announcements[accountID]
	return a, ok, nil
}

func (s *memStore) GetPeerComponent(_ context.Context, peer PeerID) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.peerComponent[peer]
	return n, ok, nil
}

func (s *memStore) GetComponentEdges(_ context.Context, nonce uint64) ([]Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edges := s.componentEdges[nonce]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out, nil
}

func (s *memStore) GetLastComponentNonce(_ context.Context) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastComponent, s.lastComponentOK, nil
}

func (s *memStore) NewBatch() Batch {
	return &memBatch{store: s}
}

type memOp func(s *memStore)

type memBatch struct {
	store *memStore
	ops   []memOp
}

func (b *memBatch) PutAnnouncement(a AnnounceAccount) {
	b.ops = append(b.ops, func(s *memStore) { s.announcements[a.AccountID] = a })
}

func (b *memBatch) PutPeerComponent(peer PeerID, nonce uint64) {
	b.ops = append(b.ops, func(s *memStore) { s.peerComponent[peer] = nonce })
}

func (b *memBatch) DeletePeerComponent(peer PeerID) {
	b.ops = append(b.ops, func(s *memStore) { delete(s.peerComponent, peer) })
}

func (b *memBatch) PutComponentEdges(nonce uint64, edges []Edge) {
	cp := make([]Edge, len(edges))
	copy(cp, edges)
	b.ops = append(b.ops, func(s *memStore) { s.componentEdges[nonce] = cp })
}

func (b *memBatch) DeleteComponentEdges(nonce uint64) {
	b.ops = append(b.ops, func(s *memStore) { delete(s.componentEdges, nonce) })
}

func (b *memBatch) PutLastComponentNonce(nonce uint64) {
	b.ops = append(b.ops, func(s *memStore) { s.lastComponent, s.lastComponentOK = nonce, true })
}

func (b *memBatch) Commit(_ context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	if b.store.failNextCommit {
		b.store.failNextCommit = false
		return errCommitFailed
	}
	for _, op := range b.ops {
		op(b.store)
	}
	return nil
}

var errCommitFailed = &commitError{}

type commitError struct{}

func (*commitError) Error() string { return "memStore: forced commit failure" }

// newTestPeer returns a fresh KeyPair for use as a test peer identity.
func newTestPeer(t interface{ Fatalf(string, ...any) }) KeyPair {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating test peer: %v", err)
	}
	return kp
}

// addedEdge builds a fully-signed Added edge between two test peers at
// the given odd nonce.
func addedEdge(a, b KeyPair, nonce uint64) Edge {
	lo, hi := a, b
	if !a.Peer.Less(b.Peer) {
		lo, hi = b, a
	}
	h := edgeHash(lo.Peer, hi.Peer, nonce)
	sig0 := lo.Sign(h[:])
	sig1 := hi.Sign(h[:])
	return NewEdge(lo.Peer, hi.Peer, nonce, sig0, sig1)
}
