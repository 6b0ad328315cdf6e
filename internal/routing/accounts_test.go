package routing

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func newTestAccounts(store Store, capacity int) *AccountDirectory {
	return NewAccountDirectory(store, capacity, zap.NewNop())
}

func TestAccountDirectory_GetAnnounce_CacheHit(t *testing.T) {
	ctx := context.Background()
	d := newTestAccounts(newMemStore(), 0)
	p := newTestPeer(t).Peer
	a := AnnounceAccount{AccountID: "alice.near", PeerID: p, EpochID: "e1"}

	d.AddAccount(ctx, a)

	got, err := d.GetAnnounce(ctx, "alice.near")
	if err != nil || got != a {
		t.Fatalf("expected (%v, nil), got (%v, %v)", a, got, err)
	}
}

func TestAccountDirectory_GetAnnounce_StoreReadThrough(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	p := newTestPeer(t).Peer
	a := AnnounceAccount{AccountID: "alice.near", PeerID: p, EpochID: "e1"}
	store.announcements[a.AccountID] = a

	d := newTestAccounts(store, 0)
	got, err := d.GetAnnounce(ctx, "alice.near")
	if err != nil || got != a {
		t.Fatalf("expected read-through to find store announcement, got (%v, %v)", got, err)
	}

	// Second call must be served from cache without touching the store;
	// wiping the store entry proves the cache now holds it.
	delete(store.announcements, a.AccountID)
	got, err = d.GetAnnounce(ctx, "alice.near")
	if err != nil || got != a {
		t.Fatalf("expected cached value after read-through, got (%v, %v)", got, err)
	}
}

func TestAccountDirectory_GetAnnounce_NotFound(t *testing.T) {
	ctx := context.Background()
	d := newTestAccounts(newMemStore(), 0)

	if _, err := d.GetAnnounce(ctx, "nobody.near"); err != ErrAccountNotFound {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountDirectory_AddAccount_WritesThroughToStore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	d := newTestAccounts(store, 0)
	p := newTestPeer(t).Peer
	a := AnnounceAccount{AccountID: "alice.near", PeerID: p, EpochID: "e1"}

	d.AddAccount(ctx, a)

	stored, ok := store.announcements[a.AccountID]
	if !ok || stored != a {
		t.Fatalf("expected AddAccount to persist to the store, got (%v, %v)", stored, ok)
	}
}

func TestAccountDirectory_AddAccount_StoreFailureIsNotPropagated(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failNextCommit = true
	d := newTestAccounts(store, 0)
	p := newTestPeer(t).Peer
	a := AnnounceAccount{AccountID: "alice.near", PeerID: p, EpochID: "e1"}

	d.AddAccount(ctx, a) // must not panic despite the forced commit failure

	got, err := d.GetAnnounce(ctx, "alice.near")
	if err != nil || got != a {
		t.Fatalf("expected the cache write to survive a store commit failure, got (%v, %v)", got, err)
	}
}

func TestAccountDirectory_ContainsAccount_CacheAndStoreEpochMatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	d := newTestAccounts(store, 0)
	p := newTestPeer(t).Peer
	a := AnnounceAccount{AccountID: "alice.near", PeerID: p, EpochID: "e1"}

	if d.ContainsAccount(ctx, a) {
		t.Fatal("expected ContainsAccount to report false before anything is known")
	}

	d.AddAccount(ctx, a)
	if !d.ContainsAccount(ctx, a) {
		t.Fatal("expected ContainsAccount to report true for the cached epoch")
	}

	stale := a
	stale.EpochID = "e0"
	if d.ContainsAccount(ctx, stale) {
		t.Fatal("expected ContainsAccount to report false for a mismatched epoch")
	}
}

func TestAccountDirectory_ContainsAccount_StoreOnly(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	p := newTestPeer(t).Peer
	a := AnnounceAccount{AccountID: "alice.near", PeerID: p, EpochID: "e1"}
	store.announcements[a.AccountID] = a

	d := newTestAccounts(store, 0)
	if !d.ContainsAccount(ctx, a) {
		t.Fatal("expected ContainsAccount to consult the store when the cache is cold")
	}
}

func TestAccountDirectory_GetAccountsKeysAndAnnounceAccounts(t *testing.T) {
	ctx := context.Background()
	d := newTestAccounts(newMemStore(), 0)
	a1 := AnnounceAccount{AccountID: "alice.near", PeerID: newTestPeer(t).Peer, EpochID: "e1"}
	a2 := AnnounceAccount{AccountID: "bob.near", PeerID: newTestPeer(t).Peer, EpochID: "e1"}

	d.AddAccount(ctx, a1)
	d.AddAccount(ctx, a2)

	keys := d.GetAccountsKeys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 cached account ids, got %d", len(keys))
	}

	accounts := d.GetAnnounceAccounts()
	if len(accounts) != 2 {
		t.Fatalf("expected 2 cached announcements, got %d", len(accounts))
	}
}

func TestAccountDirectory_CacheCapacityBound(t *testing.T) {
	ctx := context.Background()
	d := newTestAccounts(newMemStore(), 2)

	for i := 0; i < 5; i++ {
		d.AddAccount(ctx, AnnounceAccount{
			AccountID: AccountID(rune('a' + i)),
			PeerID:    newTestPeer(t).Peer,
			EpochID:   "e1",
		})
	}

	if len(d.GetAccountsKeys()) > 2 {
		t.Fatalf("expected cache to stay within capacity 2, got %d entries", len(d.GetAccountsKeys()))
	}
}
