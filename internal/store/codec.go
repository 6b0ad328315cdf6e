package store

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/meshnet-labs/routing-table/internal/routing"
)

// Wire layouts are length-prefixed binary encodings (spec.md §6) rather
// than a schema-based format: neither the teacher nor the rest of the
// retrieval pack carries a generic serialization library (no protobuf
// schema pipeline, no borsh), and the teacher's own writer.go just
// assembles columns positionally for pgx — this does the same, by hand,
// for the three column payload shapes this module needs.

const (
	peerSize = ed25519.PublicKeySize
	sigSize  = ed25519.SignatureSize
)

func encodePeer(p routing.PeerID) []byte { return append([]byte(nil), p.Bytes()...) }

func decodePeer(b []byte) (routing.PeerID, error) {
	pub := make([]byte, len(b))
	copy(pub, b)
	return routing.NewPeerID(pub)
}

func encodeSignature(s routing.Signature) []byte { return append([]byte(nil), s.Bytes()...) }

func decodeSignature(b []byte) routing.Signature {
	var s routing.Signature
	copy(s[:], b)
	return s
}

// encodeEdge lays out: peer0(32) peer1(32) nonce(8) sig0(64) sig1(64)
// hasRemoval(1) [peer0Removes(1) removalSig(64)].
func encodeEdge(e routing.Edge) []byte {
	peer0, peer1 := e.Key()
	buf := make([]byte, 0, peerSize*2+8+sigSize*2+1+1+sigSize)
	buf = append(buf, encodePeer(peer0)...)
	buf = append(buf, encodePeer(peer1)...)

	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], e.Nonce)
	buf = append(buf, n[:]...)

	buf = append(buf, encodeSignature(e.Signature0)...)
	buf = append(buf, encodeSignature(e.Signature1)...)

	if peer0Removes, removalSig, ok := e.RemovalInfo(); ok {
		buf = append(buf, 1)
		if peer0Removes {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, encodeSignature(removalSig)...)
	} else {
		buf = append(buf, 0)
	}

	return buf
}

func decodeEdge(b []byte) (routing.Edge, int, error) {
	const fixedLen = peerSize*2 + 8 + sigSize*2 + 1
	if len(b) < fixedLen {
		return routing.Edge{}, 0, fmt.Errorf("store: truncated edge record (%d bytes)", len(b))
	}

	off := 0
	peer0, err := decodePeer(b[off : off+peerSize])
	if err != nil {
		return routing.Edge{}, 0, fmt.Errorf("store: decoding edge peer0: %w", err)
	}
	off += peerSize

	peer1, err := decodePeer(b[off : off+peerSize])
	if err != nil {
		return routing.Edge{}, 0, fmt.Errorf("store: decoding edge peer1: %w", err)
	}
	off += peerSize

	nonce := binary.LittleEndian.Uint64(b[off : off+8])
	off += 8

	sig0 := decodeSignature(b[off : off+sigSize])
	off += sigSize
	sig1 := decodeSignature(b[off : off+sigSize])
	off += sigSize

	hasRemoval := b[off]
	off++

	if hasRemoval == 0 {
		return routing.NewEdge(peer0, peer1, nonce, sig0, sig1), off, nil
	}

	if len(b) < off+1+sigSize {
		return routing.Edge{}, 0, fmt.Errorf("store: truncated edge removal record (%d bytes)", len(b))
	}
	peer0Removes := b[off] != 0
	off++
	removalSig := decodeSignature(b[off : off+sigSize])
	off += sigSize

	return routing.NewEdgeWithRemoval(peer0, peer1, nonce, sig0, sig1, peer0Removes, removalSig), off, nil
}

// encodeEdges prefixes a 4-byte little-endian count, then each edge
// prefixed by its own 4-byte little-endian length.
func encodeEdges(edges []routing.Edge) []byte {
	var countPrefix [4]byte
	binary.LittleEndian.PutUint32(countPrefix[:], uint32(len(edges)))
	buf := append([]byte(nil), countPrefix[:]...)

	for _, e := range edges {
		enc := encodeEdge(e)
		var lenPrefix [4]byte
		binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(enc)))
		buf = append(buf, lenPrefix[:]...)
		buf = append(buf, enc...)
	}
	return buf
}

func decodeEdges(b []byte) ([]routing.Edge, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("store: truncated edge list (%d bytes)", len(b))
	}
	count := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]

	edges := make([]routing.Edge, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("store: truncated edge list entry %d", i)
		}
		n := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < n {
			return nil, fmt.Errorf("store: truncated edge list entry %d body", i)
		}
		e, _, err := decodeEdge(b[:n])
		if err != nil {
			return nil, fmt.Errorf("store: decoding edge list entry %d: %w", i, err)
		}
		edges = append(edges, e)
		b = b[n:]
	}
	return edges, nil
}

// encodeAnnouncement lays out: peerID(32) sig(64) epochLen(2) epoch
// accountLen(2) account.
func encodeAnnouncement(a routing.AnnounceAccount) []byte {
	epoch := []byte(a.EpochID)
	account := []byte(a.AccountID)

	buf := make([]byte, 0, peerSize+sigSize+2+len(epoch)+2+len(account))
	buf = append(buf, encodePeer(a.PeerID)...)
	buf = append(buf, encodeSignature(a.Signature)...)

	var epochLen, accountLen [2]byte
	binary.LittleEndian.PutUint16(epochLen[:], uint16(len(epoch)))
	binary.LittleEndian.PutUint16(accountLen[:], uint16(len(account)))

	buf = append(buf, epochLen[:]...)
	buf = append(buf, epoch...)
	buf = append(buf, accountLen[:]...)
	buf = append(buf, account...)
	return buf
}

func decodeAnnouncement(accountID routing.AccountID, b []byte) (routing.AnnounceAccount, error) {
	const fixedLen = peerSize + sigSize + 2
	if len(b) < fixedLen {
		return routing.AnnounceAccount{}, fmt.Errorf("store: truncated announcement record (%d bytes)", len(b))
	}

	off := 0
	peer, err := decodePeer(b[off : off+peerSize])
	if err != nil {
		return routing.AnnounceAccount{}, fmt.Errorf("store: decoding announcement peer id: %w", err)
	}
	off += peerSize

	sig := decodeSignature(b[off : off+sigSize])
	off += sigSize

	epochLen := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if len(b) < off+epochLen {
		return routing.AnnounceAccount{}, fmt.Errorf("store: truncated announcement epoch (%d bytes)", len(b))
	}
	epoch := string(b[off : off+epochLen])
	off += epochLen

	if len(b) < off+2 {
		return routing.AnnounceAccount{}, fmt.Errorf("store: truncated announcement account length (%d bytes)", len(b))
	}
	accountLen := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if len(b) < off+accountLen {
		return routing.AnnounceAccount{}, fmt.Errorf("store: truncated announcement account (%d bytes)", len(b))
	}

	return routing.AnnounceAccount{
		AccountID: accountID,
		PeerID:    peer,
		EpochID:   epoch,
		Signature: sig,
	}, nil
}
