package routing

import (
	"context"
	"testing"
	"time"
)

func TestEdgeQueue_PushDrain_NonBlocking(t *testing.T) {
	q := NewEdgeQueue()
	a := newTestPeer(t)
	b := newTestPeer(t)

	e1 := addedEdge(a, b, 1)
	e2 := addedEdge(a, b, 3)
	q.Push(e1)
	q.Push(e2)

	got := q.DrainInto(nil)
	if len(got) != 2 || got[0] != e1 || got[1] != e2 {
		t.Fatalf("expected drained order [e1, e2], got %v", got)
	}

	if got := q.DrainInto(nil); len(got) != 0 {
		t.Fatalf("expected an empty buffer after drain, got %v", got)
	}
}

func TestEdgeQueue_DrainInto_AppendsToExistingSlice(t *testing.T) {
	q := NewEdgeQueue()
	a := newTestPeer(t)
	b := newTestPeer(t)
	e := addedEdge(a, b, 1)
	q.Push(e)

	prefix := make([]Edge, 1)
	got := q.DrainInto(prefix)
	if len(got) != 2 || got[1] != e {
		t.Fatalf("expected the queued edge appended after the prefix, got %v", got)
	}
}

func TestEdgeQueue_Wait_WakesOnPush(t *testing.T) {
	q := NewEdgeQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- q.Wait(ctx) }()

	a, b := newTestPeer(t), newTestPeer(t)
	q.Push(addedEdge(a, b, 1))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Wait to return nil after a push, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Wait to return promptly after Push")
	}
}

func TestEdgeQueue_Wait_ReturnsOnContextDone(t *testing.T) {
	q := NewEdgeQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Wait(ctx); err == nil {
		t.Fatal("expected Wait to return the context's error once cancelled")
	}
}

func TestEdgeVerifierHelper_ShouldVerify_RejectsEqualOrLowerNonce(t *testing.T) {
	h := NewEdgeVerifierHelper()
	p, q := testPeerID(1), testPeerID(2)

	if !h.ShouldVerify(p, q, 3) {
		t.Fatal("expected the first proposal to be worth verifying")
	}
	if h.ShouldVerify(q, p, 3) {
		t.Fatal("expected an equal-nonce proposal for the same pair (order-independent) to be rejected")
	}
	if h.ShouldVerify(p, q, 2) {
		t.Fatal("expected a lower-nonce proposal to be rejected")
	}
	if !h.ShouldVerify(p, q, 5) {
		t.Fatal("expected a higher-nonce proposal to be accepted")
	}
}

func TestEdgeVerifierHelper_Done_ClearsInFlightMarker(t *testing.T) {
	h := NewEdgeVerifierHelper()
	p, q := testPeerID(1), testPeerID(2)

	h.ShouldVerify(p, q, 3)
	h.Done(p, q, 3)

	if !h.ShouldVerify(p, q, 3) {
		t.Fatal("expected Done to clear the in-flight marker so the same nonce can be reconsidered")
	}
}

func TestEdgeVerifierHelper_Done_IgnoresStaleNonce(t *testing.T) {
	h := NewEdgeVerifierHelper()
	p, q := testPeerID(1), testPeerID(2)

	h.ShouldVerify(p, q, 3)
	h.ShouldVerify(p, q, 5) // supersedes nonce 3's in-flight marker
	h.Done(p, q, 3)         // a late completion for the superseded nonce

	if h.ShouldVerify(p, q, 5) {
		t.Fatal("expected Done for a stale nonce not to clear a newer in-flight marker")
	}
}
