// Package route builds a destination->next-hop forwarding table from a
// topo.Store's live graph via Dijkstra's algorithm.
package route

import (
	"container/heap"

	"github.com/kprusa/linkstate-emu/internal/topo"
	"github.com/kprusa/linkstate-emu/internal/wire"
)

// Entry is one forwarding-table row.
type Entry struct {
	Dest    wire.NodeID
	NextHop wire.NodeID
}

// Table is an ordered forwarding table plus an O(1) lookup index.
type Table struct {
	Entries []Entry
	byDest  map[wire.NodeID]wire.NodeID
}

// NextHop looks up the next hop toward dest, if reachable.
func (t *Table) NextHop(dest wire.NodeID) (wire.NodeID, bool) {
	nh, ok := t.byDest[dest]
	return nh, ok
}

// Build runs Dijkstra from store.Self over the current live graph and
// returns a fresh forwarding table. Every reachable node other than
// self gets exactly one entry, whose next hop is the direct neighbor
// first stepped to on self's shortest path to it. Unreachable nodes
// are omitted. The previous table is never mutated in place — callers
// replace it wholesale.
func Build(store *topo.Store) *Table {
	self := store.Self
	dist := map[wire.NodeID]uint32{self: 0}
	firstHop := map[wire.NodeID]wire.NodeID{}
	settled := map[wire.NodeID]bool{}

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{node: self, cost: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		u := item.node

		if settled[u] {
			continue // stale entry
		}
		if item.cost > dist[u] {
			continue // stale entry
		}
		settled[u] = true

		for v, cost := range store.LiveAdjacency(u) {
			if wire.Unreachable(cost) {
				continue
			}
			alt := dist[u] + cost
			if d, ok := dist[v]; ok && d <= alt {
				continue
			}
			dist[v] = alt
			if u == self {
				firstHop[v] = v
			} else {
				firstHop[v] = firstHop[u]
			}
			heap.Push(pq, &pqItem{node: v, cost: alt})
		}
	}

	t := &Table{byDest: make(map[wire.NodeID]wire.NodeID)}
	nodes := store.Nodes()
	for _, n := range nodes {
		if n == self {
			continue
		}
		nh, ok := firstHop[n]
		if !ok {
			continue // unreachable; omitted per invariant 3
		}
		t.Entries = append(t.Entries, Entry{Dest: n, NextHop: nh})
		t.byDest[n] = nh
	}
	sortEntries(t.Entries)
	return t
}

func sortEntries(e []Entry) {
	for i := 1; i < len(e); i++ {
		for j := i; j > 0 && e[j].Dest.Less(e[j-1].Dest); j-- {
			e[j], e[j-1] = e[j-1], e[j]
		}
	}
}

// --- priority queue for Dijkstra ---

type pqItem struct {
	node  wire.NodeID
	cost  uint32
	index int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].cost < pq[j].cost }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
