// Package dispatch implements the single-threaded, non-blocking packet
// dispatcher: the event loop that demultiplexes HELLO, LSA, route-trace,
// and data packets, mutates the node's topology state, and forwards
// traffic along the current forwarding table.
package dispatch

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/kprusa/linkstate-emu/internal/lsa"
	"github.com/kprusa/linkstate-emu/internal/metrics"
	"github.com/kprusa/linkstate-emu/internal/neighbor"
	"github.com/kprusa/linkstate-emu/internal/route"
	"github.com/kprusa/linkstate-emu/internal/topo"
	"github.com/kprusa/linkstate-emu/internal/wire"
)

// TraceReplyTTL is the fixed TTL stamped on synthesized route-trace replies.
const TraceReplyTTL = 19

// pollInterval bounds how long a single receive attempt blocks before
// the loop reevaluates its timers. It substitutes for a true
// non-blocking socket per the concurrency model's sanctioned
// bounded-wait poll.
const pollInterval = 50 * time.Millisecond

// Node bundles all per-node state and owns the dispatcher's two UDP
// sockets. There are no package-level globals; every handler takes its
// state from this value.
type Node struct {
	Self wire.NodeID

	store *topo.Store
	mon   *neighbor.Monitor
	eng   *lsa.Engine
	table *route.Table
	conn  Conn
	mx    *metrics.Metrics
	log   *log.Logger

	lastHelloSent time.Time
	lastLsaSent   time.Time

	// now is overridable for deterministic tests; defaults to time.Now.
	now func() time.Time
}

// New builds a Node bound to store and conn. mx may be nil to disable
// metrics recording.
func New(store *topo.Store, conn Conn, mx *metrics.Metrics) *Node {
	return &Node{
		Self:  store.Self,
		store: store,
		mon:   neighbor.New(store),
		eng:   lsa.New(store),
		table: route.Build(store),
		conn:  conn,
		mx:    mx,
		log:   log.New(os.Stderr, "", log.LstdFlags),
		now:   time.Now,
	}
}

// Table returns the node's current forwarding table.
func (n *Node) Table() *route.Table { return n.table }

// Run executes the dispatcher loop until ctx is cancelled. It busy
// polls the receive socket with a short read deadline so that timer
// evaluation is never starved by an idle socket; this never blocks
// indefinitely, matching the "never blocks on I/O" contract with a
// bounded-wait substitute.
func (n *Node) Run(ctx context.Context) error {
	n.store.InitNeighborClocks(n.now())
	defer n.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := n.conn.SetReadDeadline(n.now().Add(pollInterval)); err != nil {
			return err
		}
		n.Tick(n.now())
	}
}

// Tick runs exactly one iteration of the dispatcher's per-iteration
// contract: attempt a receive, classify and handle it, forward it if
// applicable, evaluate periodic timers, and rebuild the forwarding
// table if anything changed. Exposed directly so tests can drive the
// loop deterministically without real sockets or real time.
func (n *Node) Tick(now time.Time) {
	changed := false
	helloChanged := false

	outcome, kind, raw := n.recvOnce()
	switch outcome {
	case recvOK:
		if n.handle(kind, raw, now) {
			changed = true
			if kind == wire.KindHello {
				helloChanged = true
			}
		}
	case recvParseError:
		// drop, continue: malformed/truncated datagrams never alter state.
	case recvFatal:
		n.log.Printf("dispatch: fatal receive error, continuing loop")
	case recvNone:
	}

	if n.mon.CheckTimeouts(now) {
		changed = true
	}
	if n.evaluateOriginationTimers(now, helloChanged) {
		changed = true
	}

	if changed {
		n.table = route.Build(n.store)
		if n.mx != nil {
			n.mx.ForwardingTableRebuilds.Inc()
		}
		printRebuild(os.Stdout, n.store, n.table)
	}
}

// recvOnce attempts a single non-blocking receive and classifies it.
func (n *Node) recvOnce() (recvOutcome, wire.Kind, []byte) {
	buf := make([]byte, wire.MaxDatagram)
	m, _, err := n.conn.ReadFrom(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return recvNone, 0, nil
		}
		return recvFatal, 0, nil
	}
	raw := buf[:m]
	kind, err := wire.Classify(raw)
	if err != nil {
		return recvParseError, 0, nil
	}
	return recvOK, kind, raw
}

// handle demultiplexes one classified datagram to its typed handler
// and forwards it per §4.6 where applicable. Returns whether topology
// changed as a result.
func (n *Node) handle(kind wire.Kind, raw []byte, now time.Time) bool {
	switch kind {
	case wire.KindHello:
		h, err := wire.DecodeHello(raw)
		if err != nil {
			return false
		}
		return n.handleHello(h, now)

	case wire.KindLSA:
		l, err := wire.DecodeLSA(raw)
		if err != nil {
			return false
		}
		return n.handleLSA(l)

	case wire.KindTraceReq:
		t, err := wire.DecodeTrace(raw)
		if err != nil {
			return false
		}
		n.handleTraceRequest(t)
		return false

	case wire.KindTraceReply:
		t, err := wire.DecodeTrace(raw)
		if err != nil {
			return false
		}
		n.handleTraceReply(t)
		return false

	case wire.KindData:
		d, err := wire.DecodeData(raw)
		if err != nil {
			return false
		}
		n.handleData(d)
		return false
	}
	return false
}

// handleHello applies a HELLO to the neighbor monitor. A resulting
// up/down transition is reported as a change; Tick treats a
// HELLO-caused change specially, re-originating an LSA immediately
// per the convergence-acceleration rule.
func (n *Node) handleHello(h wire.Hello, now time.Time) bool {
	if n.mx != nil {
		n.mx.HelloReceived.Inc()
	}
	return n.mon.OnHello(h.Src, now)
}

// handleLSA ingests an LSA and, if it survives its TTL budget, floods
// the rewritten packet to every neighbor except the one that delivered it.
func (n *Node) handleLSA(l wire.LSA) bool {
	stale := n.store.SeqNo(l.Src) >= l.SeqNo
	result := n.eng.Ingest(l)
	if stale && n.mx != nil {
		n.mx.LSADroppedStale.Inc()
	}
	if result.ShouldFwd {
		n.floodExcept(result.Forward, l.LastSender)
		if n.mx != nil {
			n.mx.LSAFlooded.Inc()
		}
	}
	return result.Changed
}

// handleTraceRequest implements the T-handling rules of §4.6. A
// synthesized reply is fed through the same delivery-or-forward
// decision as a reply received from the wire, since the originating
// node itself may be the one synthesizing it (Src == Self).
func (n *Node) handleTraceRequest(t wire.Trace) {
	if n.mx != nil {
		n.mx.RouteTraceRequests.Inc()
	}

	if n.Self == t.Dest {
		n.replyTrace(wire.Trace{Src: n.Self, Dest: t.Src, Trace: t.Trace, TTL: TraceReplyTTL})
		return
	}
	if t.TTL == 0 {
		n.replyTrace(wire.Trace{Src: n.Self, Dest: t.Src, Trace: t.Trace, TTL: TraceReplyTTL})
		return
	}
	t.TTL--
	n.sendTraceToward(wire.TagTraceReq, t, t.Dest)
}

// handleTraceReply implements the O-handling rule of §4.6: deliver
// locally once it reaches the original trace originator, else forward
// toward that originator.
func (n *Node) handleTraceReply(t wire.Trace) {
	if n.mx != nil {
		n.mx.RouteTraceReplies.Inc()
	}
	n.replyTrace(t)
}

// replyTrace delivers a route-trace reply locally to the trace client
// once it has reached Self == Dest (the original originator), or
// forwards it one hop closer via the forwarding table otherwise.
func (n *Node) replyTrace(t wire.Trace) {
	if n.Self == t.Dest {
		_ = n.conn.WriteTo(wire.EncodeTrace(wire.TagTraceReply, t), t.Trace)
		return
	}
	n.sendTraceToward(wire.TagTraceReply, t, t.Dest)
}

// sendTraceToward forwards a trace packet to the next hop on the
// shortest path toward dest. Packets with no route are dropped.
func (n *Node) sendTraceToward(tag byte, t wire.Trace, dest wire.NodeID) {
	nh, ok := n.table.NextHop(dest)
	if !ok {
		return
	}
	_ = n.conn.WriteTo(wire.EncodeTrace(tag, t), nh)
}

// handleData forwards a DATA packet unchanged to the next hop toward
// its destination, dropping it if no route exists.
func (n *Node) handleData(d wire.Data) {
	nh, ok := n.table.NextHop(d.Dest)
	if !ok {
		return
	}
	_ = n.conn.WriteTo(wire.EncodeData(d.Tag, d.Src, d.Dest, d.Payload), nh)
}

// floodExcept sends pkt to every neighbor other than skip.
func (n *Node) floodExcept(pkt wire.LSA, skip wire.NodeID) {
	raw := wire.EncodeLSA(pkt)
	for _, j := range n.store.Neighbors() {
		if j == skip {
			continue
		}
		_ = n.conn.WriteTo(raw, j)
	}
}

// originateAndFlood builds a fresh LSA from current state and sends it
// to every neighbor, updating the origination timer.
func (n *Node) originateAndFlood(now time.Time) {
	pkt := n.eng.Originate()
	raw := wire.EncodeLSA(pkt)
	for _, j := range n.store.Neighbors() {
		_ = n.conn.WriteTo(raw, j)
	}
	n.lastLsaSent = now
	if n.mx != nil {
		n.mx.LSAOriginated.Inc()
	}
}

// evaluateOriginationTimers sends HELLOs and LSAs on their periodic
// schedule. helloCausedChange, when true, originates an LSA immediately
// regardless of the LSA timer — the convergence-acceleration path is
// scoped to a HELLO-caused up/down transition only; an LSA-ingestion-
// caused change or a neighbor timeout still waits for LinkInterval.
func (n *Node) evaluateOriginationTimers(now time.Time, helloCausedChange bool) bool {
	changed := false

	if now.Sub(n.lastHelloSent) >= neighbor.HelloInterval {
		n.sendHelloToAll()
		n.lastHelloSent = now
	}

	if now.Sub(n.lastLsaSent) >= neighbor.LinkInterval || helloCausedChange {
		n.originateAndFlood(now)
		changed = true
	}

	if n.mx != nil {
		n.mx.NeighborsUp.Set(float64(n.countNeighborsUp()))
	}

	return changed
}

func (n *Node) countNeighborsUp() int {
	c := 0
	for _, j := range n.store.Neighbors() {
		if n.store.IsUp(j) {
			c++
		}
	}
	return c
}

// sendHelloToAll emits a HELLO to every neighbor regardless of
// liveness, since HELLOs are how a down neighbor is rediscovered.
func (n *Node) sendHelloToAll() {
	raw := wire.EncodeHello(n.Self)
	for _, j := range n.store.Neighbors() {
		_ = n.conn.WriteTo(raw, j)
		if n.mx != nil {
			n.mx.HelloSent.Inc()
		}
	}
}
