package harness

import (
	"testing"
	"time"

	"github.com/kprusa/linkstate-emu/internal/route"
	"github.com/kprusa/linkstate-emu/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tickStep = 50 * time.Millisecond

func node(port uint16) wire.NodeID {
	return wire.NodeID{IP: [4]byte{127, 0, 0, 1}, Port: port}
}

// S1: three nodes fully meshed at cost 1 converge to a 2-entry
// forwarding table apiece, with the correct direct next hop, inside
// the scenario's 5s budget.
func TestTriangleConvergence(t *testing.T) {
	a, b, c := node(5000), node(5001), node(5002)
	edges := []Edge{{a, b, 1}, {a, c, 1}, {b, c, 1}}

	start := time.Now()
	net := NewNetwork(start)
	na := net.AddNode(NewStore(a, edges), nil)
	nb := net.AddNode(NewStore(b, edges), nil)
	nc := net.AddNode(NewStore(c, edges), nil)

	net.Advance(5*time.Second, tickStep)

	requireDirectRoute(t, na.Table(), b, b)
	requireDirectRoute(t, na.Table(), c, c)
	assert.Len(t, na.Table().Entries, 2)

	requireDirectRoute(t, nb.Table(), a, a)
	requireDirectRoute(t, nb.Table(), c, c)
	assert.Len(t, nb.Table().Entries, 2)

	requireDirectRoute(t, nc.Table(), a, a)
	requireDirectRoute(t, nc.Table(), b, b)
	assert.Len(t, nc.Table().Entries, 2)
}

func requireDirectRoute(t *testing.T, table *route.Table, dest, wantNextHop wire.NodeID) {
	t.Helper()
	nh, ok := table.NextHop(dest)
	require.True(t, ok, "expected a route to %s", dest)
	assert.Equal(t, wantNextHop, nh)
}

// S2: killing B severs both its edges; within DOWN_INTERVAL +
// LINK_INTERVAL, A and C mark B down and their tables shrink to a
// single entry for each other.
func TestNeighborFailure(t *testing.T) {
	a, b, c := node(5000), node(5001), node(5002)
	edges := []Edge{{a, b, 1}, {a, c, 1}, {b, c, 1}}

	start := time.Now()
	net := NewNetwork(start)
	na := net.AddNode(NewStore(a, edges), nil)
	net.AddNode(NewStore(b, edges), nil)
	nc := net.AddNode(NewStore(c, edges), nil)

	net.Advance(5*time.Second, tickStep)

	// Kill B: its edges to A and C go down and never recover within
	// this test. Both directions of both edges must be scheduled;
	// B's own Ticks still run but every packet it sends or receives
	// is dropped by the medium, indistinguishable from a crashed node.
	net.Schedule(net.elapsed, a, b, false)
	net.Schedule(net.elapsed, b, a, false)
	net.Schedule(net.elapsed, c, b, false)
	net.Schedule(net.elapsed, b, c, false)

	net.Advance(7*time.Second, tickStep)

	requireDirectRoute(t, na.Table(), c, c)
	assert.Len(t, na.Table().Entries, 1, "A must only route to C once B is down")

	requireDirectRoute(t, nc.Table(), a, a)
	assert.Len(t, nc.Table().Entries, 1, "C must only route to A once B is down")

	assert.False(t, isPresent(na.Table(), b))
	assert.False(t, isPresent(nc.Table(), b))
}

func isPresent(table *route.Table, dest wire.NodeID) bool {
	_, ok := table.NextHop(dest)
	return ok
}

// S3: restarting B (its edges recover) lets all three tables return to
// the triangle steady state within 3s.
func TestNeighborRecovery(t *testing.T) {
	a, b, c := node(5000), node(5001), node(5002)
	edges := []Edge{{a, b, 1}, {a, c, 1}, {b, c, 1}}

	start := time.Now()
	net := NewNetwork(start)
	na := net.AddNode(NewStore(a, edges), nil)
	nb := net.AddNode(NewStore(b, edges), nil)
	nc := net.AddNode(NewStore(c, edges), nil)

	net.Advance(5*time.Second, tickStep)

	net.Schedule(net.elapsed, a, b, false)
	net.Schedule(net.elapsed, b, a, false)
	net.Schedule(net.elapsed, c, b, false)
	net.Schedule(net.elapsed, b, c, false)
	net.Advance(7*time.Second, tickStep)

	restoreAt := net.elapsed
	net.Schedule(restoreAt, a, b, true)
	net.Schedule(restoreAt, b, a, true)
	net.Schedule(restoreAt, c, b, true)
	net.Schedule(restoreAt, b, c, true)

	net.Advance(3*time.Second, tickStep)

	for _, tbl := range []*route.Table{na.Table(), nb.Table(), nc.Table()} {
		assert.Len(t, tbl.Entries, 2)
	}
	requireDirectRoute(t, na.Table(), b, b)
	requireDirectRoute(t, nb.Table(), a, a)
	requireDirectRoute(t, nb.Table(), c, c)
	requireDirectRoute(t, nc.Table(), b, b)
}

// S4: a replayed LSA with the same (src, seqNo) must be dropped at the
// first node that sees it twice, producing no further onward flood.
func TestSplitHorizonDropsDuplicateOrigination(t *testing.T) {
	a, b, c := node(5000), node(5001), node(5002)
	edges := []Edge{{a, b, 1}, {a, c, 1}, {b, c, 1}}

	start := time.Now()
	net := NewNetwork(start)
	net.AddNode(NewStore(a, edges), nil)
	net.AddNode(NewStore(b, edges), nil)
	net.AddNode(NewStore(c, edges), nil)

	lsa := wire.LSA{
		Src:        a,
		LastSender: a,
		SeqNo:      5,
		TTL:        15,
		Adjacency:  map[wire.NodeID]uint32{b: 1, c: 1},
	}
	raw := wire.EncodeLSA(lsa)

	net.Inject(b, a, raw)
	net.Advance(tickStep, tickStep)
	floodedAfterFirst := countLSAFloodsFromTo(net.Deliveries(), b, c, a, 5)
	assert.Equal(t, 1, floodedAfterFirst, "the first copy must flood onward exactly once")

	net.Inject(b, a, raw) // same (Src, SeqNo) replayed
	net.Advance(tickStep, tickStep)
	floodedAfterReplay := countLSAFloodsFromTo(net.Deliveries(), b, c, a, 5)
	assert.Equal(t, 1, floodedAfterReplay, "the replayed duplicate must not be re-flooded")
}

func countLSAFloodsFromTo(ds []Delivery, from, to, wantSrc wire.NodeID, wantSeq uint32) int {
	n := 0
	for _, d := range ds {
		if d.From != from || d.To != to {
			continue
		}
		kind, err := wire.Classify(d.Raw)
		if err != nil || kind != wire.KindLSA {
			continue
		}
		l, err := wire.DecodeLSA(d.Raw)
		if err != nil || l.Src != wantSrc || l.SeqNo != wantSeq {
			continue
		}
		n++
	}
	return n
}

// S5: on a linear A-B-C-D topology, a single trace request from A to D
// with a full TTL budget crosses all three hops, and D's reply reaches
// the trace client.
func TestRouteTraceThreeHops(t *testing.T) {
	a, b, c, d := node(5000), node(5001), node(5002), node(5003)
	edges := []Edge{{a, b, 1}, {b, c, 1}, {c, d, 1}}
	client := node(6000)

	start := time.Now()
	net := NewNetwork(start)
	net.AddNode(NewStore(a, edges), nil)
	net.AddNode(NewStore(b, edges), nil)
	net.AddNode(NewStore(c, edges), nil)
	net.AddNode(NewStore(d, edges), nil)

	net.Advance(5*time.Second, tickStep) // let the line converge first

	req := wire.Trace{Src: a, Dest: d, Trace: client, TTL: 19}
	net.Inject(a, client, wire.EncodeTrace(wire.TagTraceReq, req))
	net.Advance(2*time.Second, tickStep)

	var reply wire.Trace
	found := false
	for _, del := range net.Deliveries() {
		if del.To != client {
			continue
		}
		kind, err := wire.Classify(del.Raw)
		require.NoError(t, err)
		if kind != wire.KindTraceReply {
			continue
		}
		reply, err = wire.DecodeTrace(del.Raw)
		require.NoError(t, err)
		found = true
	}
	require.True(t, found, "the reply from the destination must reach the trace client")
	assert.Equal(t, d, reply.Src)
}

// S6: constraining the trace to TTL=1 gets an expiry reply from the
// first hop (B) instead of the destination.
func TestRouteTraceTTLExpiry(t *testing.T) {
	a, b, c, d := node(5000), node(5001), node(5002), node(5003)
	edges := []Edge{{a, b, 1}, {b, c, 1}, {c, d, 1}}
	client := node(6000)

	start := time.Now()
	net := NewNetwork(start)
	net.AddNode(NewStore(a, edges), nil)
	net.AddNode(NewStore(b, edges), nil)
	net.AddNode(NewStore(c, edges), nil)
	net.AddNode(NewStore(d, edges), nil)

	net.Advance(5*time.Second, tickStep)

	req := wire.Trace{Src: a, Dest: d, Trace: client, TTL: 1}
	net.Inject(a, client, wire.EncodeTrace(wire.TagTraceReq, req))
	net.Advance(2*time.Second, tickStep)

	var reply wire.Trace
	found := false
	for _, del := range net.Deliveries() {
		if del.To != client {
			continue
		}
		kind, err := wire.Classify(del.Raw)
		require.NoError(t, err)
		if kind != wire.KindTraceReply {
			continue
		}
		reply, err = wire.DecodeTrace(del.Raw)
		require.NoError(t, err)
		found = true
	}
	require.True(t, found, "TTL exhaustion must still produce a reply to the client")
	assert.Equal(t, b, reply.Src, "TTL=1 must expire at the first hop, not the destination")
}
