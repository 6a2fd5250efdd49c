// Package topo owns the seed and live topology graphs, the dense node
// index, per-node sequence numbers and liveness flags, and per-neighbor
// HELLO timestamps. Other components hold only wire.NodeID values or
// indices, never long-lived references into the store.
package topo

import (
	"sort"
	"time"

	"github.com/kprusa/linkstate-emu/internal/wire"
)

// Store is the single owner of a node's view of the network. It is not
// safe for concurrent use; the dispatcher's single-threaded event loop
// is the only caller.
type Store struct {
	Self wire.NodeID

	// ref is the immutable snapshot loaded from the seed topology file,
	// used to restore edge costs when a link recovers.
	ref map[wire.NodeID]map[wire.NodeID]uint32

	// live is the current best-known graph.
	live map[wire.NodeID]map[wire.NodeID]uint32

	// index assigns every discovered node a dense, monotonically
	// growing integer. order is its inverse.
	index map[wire.NodeID]int
	order []wire.NodeID

	largestSeqNo []uint32
	isUp         []bool

	// neighborIndex is the subset of index covering self's direct
	// neighbors, with its own dense numbering for lastHelloAt.
	neighborIndex map[wire.NodeID]int
	neighborOrder []wire.NodeID
	lastHelloAt   []time.Time
}

// New builds an empty Store rooted at self; neighbors and ref are
// populated separately by LoadSeed.
func New(self wire.NodeID) *Store {
	s := &Store{
		Self:          self,
		ref:           make(map[wire.NodeID]map[wire.NodeID]uint32),
		live:          make(map[wire.NodeID]map[wire.NodeID]uint32),
		index:         make(map[wire.NodeID]int),
		neighborIndex: make(map[wire.NodeID]int),
	}
	s.ensureNode(self)
	return s
}

// ensureNode returns n's dense index, allocating one (and growing the
// parallel seqNo/isUp arrays) if n has never been seen before. A node
// never leaves the index once added.
func (s *Store) ensureNode(n wire.NodeID) int {
	if i, ok := s.index[n]; ok {
		return i
	}
	i := len(s.order)
	s.index[n] = i
	s.order = append(s.order, n)
	s.largestSeqNo = append(s.largestSeqNo, 0)
	s.isUp = append(s.isUp, true)
	if _, ok := s.ref[n]; !ok {
		s.ref[n] = make(map[wire.NodeID]uint32)
	}
	if _, ok := s.live[n]; !ok {
		s.live[n] = make(map[wire.NodeID]uint32)
	}
	return i
}

// ensureNeighbor registers n as a direct neighbor of self, allocating a
// lastHelloAt slot for it if needed.
func (s *Store) ensureNeighbor(n wire.NodeID) int {
	s.ensureNode(n)
	if i, ok := s.neighborIndex[n]; ok {
		return i
	}
	i := len(s.neighborOrder)
	s.neighborIndex[n] = i
	s.neighborOrder = append(s.neighborOrder, n)
	s.lastHelloAt = append(s.lastHelloAt, time.Time{})
	return i
}

// SeedEdge installs an edge in both ref and live, as read from the
// topology file. If u is self, v is registered as a direct neighbor.
func (s *Store) SeedEdge(u, v wire.NodeID, cost uint32) {
	s.ensureNode(u)
	s.ensureNode(v)
	s.ref[u][v] = cost
	s.live[u][v] = cost
	if u == s.Self {
		s.ensureNeighbor(v)
	}
}

// IsNeighbor reports whether n is a direct neighbor of self.
func (s *Store) IsNeighbor(n wire.NodeID) bool {
	_, ok := s.neighborIndex[n]
	return ok
}

// Neighbors returns self's direct neighbors in a stable order.
func (s *Store) Neighbors() []wire.NodeID {
	out := append([]wire.NodeID(nil), s.neighborOrder...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Nodes returns every node discovered so far (dense index order).
func (s *Store) Nodes() []wire.NodeID {
	return append([]wire.NodeID(nil), s.order...)
}

// SeqNo returns the largest LSA sequence number observed from n.
func (s *Store) SeqNo(n wire.NodeID) uint32 {
	i, ok := s.index[n]
	if !ok {
		return 0
	}
	return s.largestSeqNo[i]
}

// AcceptSeqNo accepts seq as the new largest sequence number for n if
// and only if seq is strictly greater than what was previously seen
// (or n has never been seen). Returns false if the LSA is stale.
func (s *Store) AcceptSeqNo(n wire.NodeID, seq uint32) bool {
	i := s.ensureNode(n)
	if s.largestSeqNo[i] >= seq {
		return false
	}
	s.largestSeqNo[i] = seq
	return true
}

// IsUp reports n's liveness flag.
func (s *Store) IsUp(n wire.NodeID) bool {
	i, ok := s.index[n]
	if !ok {
		return true
	}
	return s.isUp[i]
}

// SetUp flips n's liveness flag.
func (s *Store) SetUp(n wire.NodeID, up bool) {
	i := s.ensureNode(n)
	s.isUp[i] = up
}

// InitNeighborClocks sets every currently known neighbor's LastHelloAt
// to now, giving a fresh boot a full DOWN_INTERVAL grace period before
// any neighbor is declared down for want of a HELLO.
func (s *Store) InitNeighborClocks(now time.Time) {
	for i := range s.lastHelloAt {
		s.lastHelloAt[i] = now
	}
}

// LastHelloAt returns the last time a HELLO was recorded from neighbor n.
func (s *Store) LastHelloAt(n wire.NodeID) time.Time {
	i, ok := s.neighborIndex[n]
	if !ok {
		return time.Time{}
	}
	return s.lastHelloAt[i]
}

// TouchHello advances n's LastHelloAt to now, never moving it backward.
func (s *Store) TouchHello(n wire.NodeID, now time.Time) {
	i := s.ensureNeighbor(n)
	if now.After(s.lastHelloAt[i]) {
		s.lastHelloAt[i] = now
	}
}

// LiveCost returns the current cost of edge u->v and whether it exists.
func (s *Store) LiveCost(u, v wire.NodeID) (uint32, bool) {
	row, ok := s.live[u]
	if !ok {
		return 0, false
	}
	c, ok := row[v]
	return c, ok
}

// RefCost returns the seed cost of edge u->v and whether it exists.
func (s *Store) RefCost(u, v wire.NodeID) (uint32, bool) {
	row, ok := s.ref[u]
	if !ok {
		return 0, false
	}
	c, ok := row[v]
	return c, ok
}

// SetLiveEdge sets the live cost of u->v, registering both endpoints.
func (s *Store) SetLiveEdge(u, v wire.NodeID, cost uint32) {
	s.ensureNode(u)
	s.ensureNode(v)
	if s.live[u] == nil {
		s.live[u] = make(map[wire.NodeID]uint32)
	}
	s.live[u][v] = cost
}

// RestoreEdge copies u->v's seed cost back into live, in both
// directions, as required when a neighbor link recovers.
func (s *Store) RestoreEdge(u, v wire.NodeID) {
	if c, ok := s.RefCost(u, v); ok {
		s.SetLiveEdge(u, v, c)
	}
	if c, ok := s.RefCost(v, u); ok {
		s.SetLiveEdge(v, u, c)
	}
}

// BreakEdge sets both directions of u<->v to wire.Inf.
func (s *Store) BreakEdge(u, v wire.NodeID) {
	s.SetLiveEdge(u, v, wire.Inf)
	s.SetLiveEdge(v, u, wire.Inf)
}

// FiniteAdjacency returns n's live adjacency restricted to finite-cost
// edges, suitable for LSA origination.
func (s *Store) FiniteAdjacency(n wire.NodeID) map[wire.NodeID]uint32 {
	out := make(map[wire.NodeID]uint32)
	for dst, cost := range s.live[n] {
		if !wire.Unreachable(cost) {
			out[dst] = cost
		}
	}
	return out
}

// LiveAdjacency returns a copy of n's full live adjacency map (including
// unreachable entries), keyed by destination.
func (s *Store) LiveAdjacency(n wire.NodeID) map[wire.NodeID]uint32 {
	out := make(map[wire.NodeID]uint32, len(s.live[n]))
	for dst, cost := range s.live[n] {
		out[dst] = cost
	}
	return out
}

// RefNeighborsOf returns the set of nodes n has an edge to in ref
// (used to restrict LSA-driven adjacency diffs to edges the seed
// topology actually described).
func (s *Store) RefNeighborsOf(n wire.NodeID) map[wire.NodeID]uint32 {
	out := make(map[wire.NodeID]uint32, len(s.ref[n]))
	for dst, cost := range s.ref[n] {
		out[dst] = cost
	}
	return out
}
