package routing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PeerID is an opaque, public-key-derived peer identifier with a total
// order, matching spec.md §3's requirement that edges have a canonical
// endpoint orientation. It is a fixed-size array (not a slice) so it is
// comparable and usable as a map key, which the Graph and RoutingTable
// both rely on.
//
// Neither the teacher nor the rest of the retrieval pack vendors a
// signing library of its own (the teacher verifies nothing — it only
// ingests already-validated BGP messages), so PeerID is built directly
// on crypto/ed25519 rather than adapted from anything in the pack.
type PeerID [ed25519.PublicKeySize]byte

// NewPeerID wraps a raw ed25519 public key as a PeerID.
func NewPeerID(pub ed25519.PublicKey) (PeerID, error) {
	var id PeerID
	if len(pub) != ed25519.PublicKeySize {
		return id, fmt.Errorf("routing: public key has length %d, want %d", len(pub), ed25519.PublicKeySize)
	}
	copy(id[:], pub)
	return id, nil
}

func (p PeerID) Bytes() []byte { return p[:] }

// Less reports whether p sorts before q under the total order edges are
// canonicalized with (peer0 < peer1).
func (p PeerID) Less(q PeerID) bool {
	return bytes.Compare(p[:], q[:]) < 0
}

func (p PeerID) String() string {
	return hex.EncodeToString(p[:])
}

// Signature is a fixed-size ed25519 signature.
type Signature [ed25519.SignatureSize]byte

func (s Signature) Bytes() []byte { return s[:] }

// KeyPair is a peer's own signing identity: the PeerID it publishes plus
// the private key used to sign edge and ping/pong payloads.
type KeyPair struct {
	Peer    PeerID
	private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh ed25519 identity.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating peer key pair: %w", err)
	}
	id, err := NewPeerID(pub)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Peer: id, private: priv}, nil
}

// NewKeyPair wraps an existing ed25519 private key, e.g. one loaded from
// node configuration. The node process owns key material; this package
// only ever receives it through constructors like this one.
func NewKeyPair(priv ed25519.PrivateKey) (KeyPair, error) {
	id, err := NewPeerID(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Peer: id, private: priv}, nil
}

func (kp KeyPair) Sign(msg []byte) Signature {
	raw := ed25519.Sign(kp.private, msg)
	var sig Signature
	copy(sig[:], raw)
	return sig
}

// VerifySignature checks msg's signature against peer's public key.
func VerifySignature(peer PeerID, msg []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(peer[:]), msg, sig[:])
}

// orderPeers returns (p0, p1) such that p0 < p1.
func orderPeers(p0, p1 PeerID) (lo, hi PeerID) {
	if p0.Less(p1) {
		return p0, p1
	}
	return p1, p0
}
