package routing

import "context"

// Store is the persistence port over the four logical columns named in
// spec.md §3/§6. internal/store provides the pgx-backed implementation;
// this package only depends on the interface, never on pgx itself, so
// RoutingTable stays testable with an in-memory fake.
type Store interface {
	// GetAnnouncement reads AccountAnnouncements[accountID].
	GetAnnouncement(ctx context.Context, accountID AccountID) (AnnounceAccount, bool, error)

	// GetPeerComponent reads PeerComponent[peer].
	GetPeerComponent(ctx context.Context, peer PeerID) (uint64, bool, error)

	// GetComponentEdges reads ComponentEdges[nonce].
	GetComponentEdges(ctx context.Context, nonce uint64) ([]Edge, error)

	// GetLastComponentNonce reads the LastComponentNonce singleton.
	GetLastComponentNonce(ctx context.Context) (uint64, bool, error)

	// NewBatch opens a set of writes committed atomically together,
	// matching spec.md §5's "writes ... grouped into atomic batches and
	// committed once per logical operation".
	NewBatch() Batch
}

// Batch accumulates writes across the four columns for one atomic commit.
type Batch interface {
	PutAnnouncement(a AnnounceAccount)
	PutPeerComponent(peer PeerID, nonce uint64)
	DeletePeerComponent(peer PeerID)
	PutComponentEdges(nonce uint64, edges []Edge)
	DeleteComponentEdges(nonce uint64)
	PutLastComponentNonce(nonce uint64)

	// Commit applies every queued write atomically. Per spec.md §5/§7,
	// callers log and continue on failure — in-memory state is never
	// rolled back to match a failed commit.
	Commit(ctx context.Context) error
}
