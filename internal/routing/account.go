package routing

// AccountID is an opaque application-level string identifier (spec.md §3).
type AccountID string

// AnnounceAccount is a verified-upstream record binding an account to the
// peer currently announcing ownership of it. Signatures are carried for
// wire fidelity but, per spec.md §3, are not re-verified by this package —
// verification happens before an AnnounceAccount ever reaches AddAccount.
type AnnounceAccount struct {
	AccountID AccountID
	PeerID    PeerID
	EpochID   string
	Signature Signature
}
