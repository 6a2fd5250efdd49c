// Package neighbor tracks direct-neighbor liveness from HELLO receipts
// and timeouts, mutating the shared topo.Store in place.
package neighbor

import (
	"time"

	"github.com/kprusa/linkstate-emu/internal/topo"
	"github.com/kprusa/linkstate-emu/internal/wire"
)

// Default timer constants, per the wire protocol.
const (
	HelloInterval = 1000 * time.Millisecond
	DownInterval  = 2100 * time.Millisecond
	LinkInterval  = 4500 * time.Millisecond
)

// Monitor evaluates HELLO receipts and timeouts against a topo.Store.
type Monitor struct {
	store *topo.Store
}

// New returns a Monitor bound to store.
func New(store *topo.Store) *Monitor {
	return &Monitor{store: store}
}

// OnHello records a HELLO received from j at time now. Returns true if
// the topology changed (j transitioned from down to up), in which case
// both directions of the j<->self edge are restored from the seed
// topology.
func (m *Monitor) OnHello(j wire.NodeID, now time.Time) bool {
	m.store.TouchHello(j, now)

	if m.store.IsUp(j) {
		return false
	}
	m.store.SetUp(j, true)
	m.store.RestoreEdge(m.store.Self, j)
	return true
}

// CheckTimeouts evaluates every direct neighbor's LastHelloAt against
// now and marks any neighbor silent for more than DownInterval as down,
// breaking both directions of its edge with self. Returns true if any
// neighbor's state changed.
func (m *Monitor) CheckTimeouts(now time.Time) bool {
	changed := false
	for _, j := range m.store.Neighbors() {
		if !m.store.IsUp(j) {
			continue
		}
		last := m.store.LastHelloAt(j)
		if now.Sub(last) > DownInterval {
			m.store.SetUp(j, false)
			m.store.BreakEdge(m.store.Self, j)
			changed = true
		}
	}
	return changed
}
