// Package harness provides an in-process, single-goroutine multi-node
// network for exercising the dispatcher end to end without real
// sockets or real time. It plays the role the teacher's Controller and
// NetworkTypology played for the simulation: it owns the authoritative
// view of which links are up at a given moment and drives every node's
// event loop on a shared, scripted clock.
package harness

import (
	"os"
	"sort"
	"time"

	"github.com/kprusa/linkstate-emu/internal/dispatch"
	"github.com/kprusa/linkstate-emu/internal/metrics"
	"github.com/kprusa/linkstate-emu/internal/topo"
	"github.com/kprusa/linkstate-emu/internal/wire"
)

// Edge describes one undirected seed edge shared by every node added to
// a Network.
type Edge struct {
	A, B wire.NodeID
	Cost uint32
}

// NewStore builds a Store for self preloaded with edges in both
// directions, mirroring how every emulator in a deployment loads the
// same topology file.
func NewStore(self wire.NodeID, edges []Edge) *topo.Store {
	s := topo.New(self)
	for _, e := range edges {
		s.SeedEdge(e.A, e.B, e.Cost)
		s.SeedEdge(e.B, e.A, e.Cost)
	}
	return s
}

type linkKey struct{ from, to wire.NodeID }

type linkEvent struct {
	at time.Duration
	up bool
}

type packet struct {
	from wire.NodeID
	raw  []byte
}

// Delivery records one packet that actually crossed the medium (the
// from->to link was up at delivery time), regardless of whether a node
// is registered at to. Scenario tests inspect this log to observe
// onward traffic the way a packet capture on a real link would.
type Delivery struct {
	From, To wire.NodeID
	Raw      []byte
}

// Network wires a set of Nodes together over an in-memory medium and
// drives them on a single scripted clock. It is not safe for
// concurrent use; scenario tests call Advance from one goroutine.
type Network struct {
	start   time.Time
	elapsed time.Duration

	nodes map[wire.NodeID]*dispatch.Node
	conns map[wire.NodeID]*memConn
	order []wire.NodeID

	events map[linkKey][]linkEvent
	log    []Delivery
}

// NewNetwork returns an empty Network whose clock begins at start.
func NewNetwork(start time.Time) *Network {
	return &Network{
		start:  start,
		nodes:  make(map[wire.NodeID]*dispatch.Node),
		conns:  make(map[wire.NodeID]*memConn),
		events: make(map[linkKey][]linkEvent),
	}
}

// AddNode builds a dispatch.Node bound to store and an in-memory Conn
// plugged into this Network, registers it, and returns it. mx may be
// nil to disable metrics for that node.
func (n *Network) AddNode(store *topo.Store, mx *metrics.Metrics) *dispatch.Node {
	self := store.Self
	store.InitNeighborClocks(n.Now())
	conn := &memConn{self: self, net: n}
	node := dispatch.New(store, conn, mx)
	n.nodes[self] = node
	n.conns[self] = conn
	n.order = append(n.order, self)
	return node
}

// Node returns the node registered for id, or nil if none was added.
func (n *Network) Node(id wire.NodeID) *dispatch.Node {
	return n.nodes[id]
}

// Schedule records a directed link transition: at duration at past the
// Network's start, the from->to link becomes up or down. Scenarios
// model a bidirectional failure by scheduling both directions.
func (n *Network) Schedule(at time.Duration, from, to wire.NodeID, up bool) {
	key := linkKey{from, to}
	n.events[key] = append(n.events[key], linkEvent{at: at, up: up})
	sort.Slice(n.events[key], func(i, j int) bool { return n.events[key][i].at < n.events[key][j].at })
}

// linkUp reports whether from->to is currently passable, per the most
// recent scheduled event at or before the Network's elapsed time.
// Links are up by default until a DOWN event says otherwise.
func (n *Network) linkUp(from, to wire.NodeID) bool {
	up := true
	for _, e := range n.events[linkKey{from, to}] {
		if e.at > n.elapsed {
			break
		}
		up = e.up
	}
	return up
}

// deliver places raw into to's inbox, unless the from->to link is
// currently down, in which case it is silently dropped like a real
// severed medium. Every delivery that crosses the medium, including
// one addressed to an unregistered endpoint (e.g. a trace client), is
// recorded in the delivery log.
func (n *Network) deliver(from, to wire.NodeID, raw []byte) {
	if !n.linkUp(from, to) {
		return
	}
	cp := append([]byte(nil), raw...)
	n.log = append(n.log, Delivery{From: from, To: to, Raw: cp})

	conn, ok := n.conns[to]
	if !ok {
		return
	}
	conn.inbox = append(conn.inbox, packet{from: from, raw: cp})
}

// Inject delivers raw directly into to's inbox as if it arrived from
// from, bypassing the scheduled link-state medium. It is the harness's
// hook for scripting packets a Node in the topology did not itself
// originate: a trace client's initial request, or a replayed LSA whose
// sequence number a test wants full control over.
func (n *Network) Inject(to, from wire.NodeID, raw []byte) {
	conn, ok := n.conns[to]
	if !ok {
		return
	}
	cp := append([]byte(nil), raw...)
	conn.inbox = append(conn.inbox, packet{from: from, raw: cp})
}

// Deliveries returns every packet recorded as having crossed the
// medium so far, in delivery order.
func (n *Network) Deliveries() []Delivery {
	return append([]Delivery(nil), n.log...)
}

// Advance steps the Network's clock forward by d in step-sized
// increments, running exactly one Tick per node at every increment, in
// a stable node order. A small step relative to the protocol's timer
// intervals is required for HELLO/LSA scheduling to behave as it would
// against a real clock.
func (n *Network) Advance(d, step time.Duration) {
	order := append([]wire.NodeID(nil), n.order...)
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })

	for remaining := d; remaining > 0; remaining -= step {
		s := step
		if remaining < s {
			s = remaining
		}
		n.elapsed += s
		now := n.start.Add(n.elapsed)
		for _, id := range order {
			n.nodes[id].Tick(now)
		}
	}
}

// Now returns the Network's current simulated wall time.
func (n *Network) Now() time.Time {
	return n.start.Add(n.elapsed)
}

// memConn is an in-memory dispatch.Conn that routes through its owning
// Network instead of a real socket.
type memConn struct {
	self  wire.NodeID
	net   *Network
	inbox []packet
}

func (c *memConn) ReadFrom(b []byte) (int, wire.NodeID, error) {
	if len(c.inbox) == 0 {
		return 0, wire.NodeID{}, os.ErrDeadlineExceeded
	}
	pkt := c.inbox[0]
	c.inbox = c.inbox[1:]
	m := copy(b, pkt.raw)
	return m, pkt.from, nil
}

func (c *memConn) WriteTo(b []byte, dest wire.NodeID) error {
	c.net.deliver(c.self, dest, b)
	return nil
}

func (c *memConn) SetReadDeadline(t time.Time) error { return nil }
func (c *memConn) Close() error                      { return nil }
