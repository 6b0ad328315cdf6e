package routing

import "go.uber.org/zap"

// hopSet is a 128-bit bitmask tracking, for a reachable node, which of
// the source's direct neighbors lie on at least one shortest path to it
// (spec.md §4.B). MAX_PEERS=128 bounds the source's degree to exactly the
// width of two uint64 words.
type hopSet [2]uint64

func (h *hopSet) set(k int) {
	if k < 64 {
		h[0] |= 1 << uint(k)
	} else {
		h[1] |= 1 << uint(k-64)
	}
}

func (h hopSet) bit(k int) bool {
	if k < 64 {
		return h[0]&(1<<uint(k)) != 0
	}
	return h[1]&(1<<uint(k-64)) != 0
}

func (h *hopSet) orWith(o hopSet) {
	h[0] |= o[0]
	h[1] |= o[1]
}

func (h hopSet) isZero() bool { return h[0] == 0 && h[1] == 0 }

// Graph is the indexed undirected graph over peer ids described in
// spec.md §3/§4.B: a compact integer index with a free list, symmetric
// adjacency, and bitset-tracked BFS next-hop discovery.
type Graph struct {
	logger *zap.Logger

	source   PeerID
	sourceID uint32

	p2id map[PeerID]uint32
	id2p []PeerID
	used []bool
	// unused is the free list of indices whose slot is not currently
	// occupied by a live peer. id2p[slot] is left stale until reused —
	// callers must always check used[slot] first.
	unused []uint32

	adjacency [][]uint32

	totalActiveEdges uint64
}

// NewGraph creates a graph rooted at source, pre-registering it as index 0.
func NewGraph(source PeerID, logger *zap.Logger) *Graph {
	g := &Graph{
		logger:    logger,
		source:    source,
		sourceID:  0,
		p2id:      make(map[PeerID]uint32),
		id2p:      []PeerID{source},
		used:      []bool{true},
		adjacency: [][]uint32{nil},
	}
	g.p2id[source] = 0
	return g
}

func (g *Graph) TotalActiveEdges() uint64 { return g.totalActiveEdges }

// idFor returns the index for p, allocating a fresh one (reusing the
// free list first) if p has never been seen.
func (g *Graph) idFor(p PeerID) uint32 {
	if id, ok := g.p2id[p]; ok {
		return id
	}

	var id uint32
	if n := len(g.unused); n > 0 {
		id = g.unused[n-1]
		g.unused = g.unused[:n-1]
		g.id2p[id] = p
		g.used[id] = true
		g.adjacency[id] = g.adjacency[id][:0]
	} else {
		id = uint32(len(g.id2p))
		g.id2p = append(g.id2p, p)
		g.used = append(g.used, true)
		g.adjacency = append(g.adjacency, nil)
	}
	g.p2id[p] = id
	return id
}

// ContainsEdge reports whether p and q are currently adjacent.
func (g *Graph) ContainsEdge(p, q PeerID) bool {
	pid, ok := g.p2id[p]
	if !ok {
		return false
	}
	qid, ok := g.p2id[q]
	if !ok {
		return false
	}
	for _, n := range g.adjacency[pid] {
		if n == qid {
			return true
		}
	}
	return false
}

// AddEdge makes p and q mutually adjacent. Idempotent. Panics if p == q
// (spec.md §7 — add_edge with equal endpoints is an invariant violation).
func (g *Graph) AddEdge(p, q PeerID) {
	if p == q {
		panic("routing: Graph.AddEdge called with equal endpoints")
	}
	if g.ContainsEdge(p, q) {
		return
	}

	pid := g.idFor(p)
	qid := g.idFor(q)
	g.adjacency[pid] = append(g.adjacency[pid], qid)
	g.adjacency[qid] = append(g.adjacency[qid], pid)
	g.totalActiveEdges++
}

// RemoveEdge severs p and q if adjacent, then garbage-collects any
// non-source endpoint left with empty adjacency: its slot is marked
// unused, returned to the free list, and erased from p2id. id2p is left
// stale and overwritten on next reuse (spec.md §4.B, §9).
func (g *Graph) RemoveEdge(p, q PeerID) {
	if p == q {
		panic("routing: Graph.RemoveEdge called with equal endpoints")
	}
	pid, ok := g.p2id[p]
	if !ok {
		return
	}
	qid, ok := g.p2id[q]
	if !ok {
		return
	}

	if !removeNeighbor(&g.adjacency[pid], qid) {
		return
	}
	removeNeighbor(&g.adjacency[qid], pid)
	g.totalActiveEdges--

	g.maybeCollect(pid)
	g.maybeCollect(qid)
}

func (g *Graph) maybeCollect(id uint32) {
	if id == g.sourceID {
		return
	}
	if len(g.adjacency[id]) != 0 {
		return
	}
	peer := g.id2p[id]
	delete(g.p2id, peer)
	g.used[id] = false
	g.unused = append(g.unused, id)
}

func removeNeighbor(adj *[]uint32, target uint32) bool {
	for i, n := range *adj {
		if n == target {
			last := len(*adj) - 1
			(*adj)[i] = (*adj)[last]
			*adj = (*adj)[:last]
			return true
		}
	}
	return false
}

// CalculateDistance runs the BFS described in spec.md §4.B from the
// source, returning the forwarding table: for every reachable peer other
// than the source, the set of the source's direct neighbors lying on at
// least one shortest path to it.
func (g *Graph) CalculateDistance() map[PeerID][]PeerID {
	n := len(g.id2p)
	if n == 0 {
		return map[PeerID][]PeerID{}
	}

	dist := make([]int32, n)
	for i := range dist {
		dist[i] = -1
	}
	routes := make([]hopSet, n)
	dist[g.sourceID] = 0

	queue := make([]uint32, 0, n)

	sourceNeighbors := g.adjacency[g.sourceID]
	limit := len(sourceNeighbors)
	if limit > MaxPeers {
		limit = MaxPeers
	}
	for k := 0; k < limit; k++ {
		nb := sourceNeighbors[k]
		if dist[nb] != -1 {
			continue
		}
		dist[nb] = 1
		routes[nb].set(k)
		queue = append(queue, nb)
	}

	for head := 0; head < len(queue); head++ {
		u := queue[head]
		for _, v := range g.adjacency[u] {
			switch {
			case dist[v] == -1:
				dist[v] = dist[u] + 1
				routes[v].orWith(routes[u])
				queue = append(queue, v)
			case dist[v] == dist[u]+1:
				routes[v].orWith(routes[u])
			}
		}
	}

	result := make(map[PeerID][]PeerID)
	unreachable := 0
	for k := 0; k < n; k++ {
		if uint32(k) == g.sourceID || !g.used[k] {
			continue
		}
		if dist[k] < 0 || routes[k].isZero() {
			if g.used[k] {
				unreachable++
			}
			continue
		}
		var hops []PeerID
		for bit := 0; bit < limit; bit++ {
			if routes[k].bit(bit) {
				hops = append(hops, g.id2p[sourceNeighbors[bit]])
			}
		}
		if len(hops) > 0 {
			result[g.id2p[k]] = hops
		}
	}

	if unreachable > 1000 && g.logger != nil {
		g.logger.Warn("graph has a large number of unreachable peers",
			zap.Int("unreachable", unreachable))
	}

	return result
}
