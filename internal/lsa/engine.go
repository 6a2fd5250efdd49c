// Package lsa originates, ingests, and re-floods sequence-numbered
// link-state advertisements with split-horizon.
package lsa

import (
	"github.com/kprusa/linkstate-emu/internal/topo"
	"github.com/kprusa/linkstate-emu/internal/wire"
)

// InitialTTL is the hop budget an originated LSA starts with.
const InitialTTL = 15

// Engine floods LSAs over a topo.Store.
type Engine struct {
	store      *topo.Store
	lastSeqSent uint32
}

// New returns an Engine bound to store.
func New(store *topo.Store) *Engine {
	return &Engine{store: store}
}

// Originate builds this node's next LSA: an increasing sequence
// number, a fresh TTL, and a payload of self's finite live adjacency.
func (e *Engine) Originate() wire.LSA {
	e.lastSeqSent++
	self := e.store.Self
	return wire.LSA{
		Src:        self,
		LastSender: self,
		SeqNo:      e.lastSeqSent,
		TTL:        InitialTTL,
		Adjacency:  e.store.FiniteAdjacency(self),
	}
}

// Result describes the outcome of ingesting an LSA.
type Result struct {
	// Changed reports whether the ingestion altered any liveness
	// state or edge cost.
	Changed bool

	// Forward is the packet to re-flood, or the zero value if the
	// LSA must not be forwarded (stale, or TTL exhausted).
	Forward   wire.LSA
	ShouldFwd bool
}

// Ingest applies the gating, diff, and split-horizon rewrite rules
// from the LSA flooding protocol: stale sequence numbers are dropped
// silently; accepted LSAs are diffed against live (restricted to edges
// the seed topology described) to detect up/down transitions; a
// surviving TTL budget produces a rewritten packet to flood onward to
// every neighbor except the one that delivered it.
func (e *Engine) Ingest(pkt wire.LSA) Result {
	if !e.store.AcceptSeqNo(pkt.Src, pkt.SeqNo) {
		return Result{}
	}

	changed := e.applyAdjacency(pkt.Src, pkt.Adjacency)

	result := Result{Changed: changed}
	if pkt.TTL == 0 {
		return result
	}

	result.ShouldFwd = true
	result.Forward = wire.LSA{
		Src:        pkt.Src,
		LastSender: e.store.Self,
		SeqNo:      pkt.SeqNo,
		TTL:        pkt.TTL - 1,
		Adjacency:  pkt.Adjacency,
	}
	return result
}

// applyAdjacency diffs newAdj (src's reported adjacency) against the
// store's live view of src, restricted to edges present in ref[src]:
// an edge transitioning from unreachable to finite marks that neighbor
// up, the reverse marks it down. live is mirrored in both directions
// for every changed edge.
func (e *Engine) applyAdjacency(src wire.NodeID, newAdj map[wire.NodeID]uint32) bool {
	changed := false
	refAdj := e.store.RefNeighborsOf(src)

	for dst := range refAdj {
		newCost, present := newAdj[dst]
		if !present {
			newCost = wire.Inf
		}
		oldCost, _ := e.store.LiveCost(src, dst)

		oldUp := !wire.Unreachable(oldCost)
		newUp := !wire.Unreachable(newCost)

		if oldUp != newUp {
			e.store.SetUp(dst, newUp)
			changed = true
		}
		if oldCost != newCost {
			e.store.SetLiveEdge(src, dst, newCost)
			e.store.SetLiveEdge(dst, src, newCost)
			changed = true
		}
	}
	return changed
}
