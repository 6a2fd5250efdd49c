package topo

import (
	"strings"
	"testing"
	"time"

	"github.com/kprusa/linkstate-emu/internal/wire"
)

func n(port uint16) wire.NodeID {
	return wire.NodeID{IP: [4]byte{127, 0, 0, 1}, Port: port}
}

func TestLoadSeed_Triangle(t *testing.T) {
	data := "127.0.0.1,5000 127.0.0.1,5001,1 127.0.0.1,5002,1\n" +
		"127.0.0.1,5001 127.0.0.1,5000,1 127.0.0.1,5002,1\n" +
		"127.0.0.1,5002 127.0.0.1,5000,1 127.0.0.1,5001,1\n"

	store, err := LoadSeed(strings.NewReader(data), n(5000))
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}

	if got := len(store.Neighbors()); got != 2 {
		t.Errorf("len(Neighbors()) = %d, want 2", got)
	}
	if c, ok := store.LiveCost(n(5000), n(5001)); !ok || c != 1 {
		t.Errorf("LiveCost(5000,5001) = (%d,%v), want (1,true)", c, ok)
	}
}

func TestLoadSeed_SelfMissing(t *testing.T) {
	data := "127.0.0.1,5001 127.0.0.1,5000,1\n"
	if _, err := LoadSeed(strings.NewReader(data), n(5000)); err == nil {
		t.Error("LoadSeed() expected error when self is absent from the file")
	}
}

func TestLoadSeed_MalformedLine(t *testing.T) {
	data := "not-an-ip,5000 127.0.0.1,5001,1\n"
	if _, err := LoadSeed(strings.NewReader(data), n(5000)); err == nil {
		t.Error("LoadSeed() expected error on malformed node address")
	}
}

func TestAcceptSeqNo_Monotonic(t *testing.T) {
	s := New(n(5000))
	peer := n(5001)

	if !s.AcceptSeqNo(peer, 1) {
		t.Fatal("AcceptSeqNo(1) should be accepted on a new node")
	}
	if s.AcceptSeqNo(peer, 1) {
		t.Error("AcceptSeqNo(1) should be rejected as a duplicate")
	}
	if s.AcceptSeqNo(peer, 0) {
		t.Error("AcceptSeqNo(0) should be rejected as stale")
	}
	if !s.AcceptSeqNo(peer, 2) {
		t.Error("AcceptSeqNo(2) should be accepted as a strictly larger sequence")
	}
	if s.SeqNo(peer) != 2 {
		t.Errorf("SeqNo() = %d, want 2", s.SeqNo(peer))
	}
}

func TestRestoreAndBreakEdge(t *testing.T) {
	s := New(n(5000))
	s.SeedEdge(n(5000), n(5001), 7)
	s.SeedEdge(n(5001), n(5000), 7)

	s.BreakEdge(n(5000), n(5001))
	if c, _ := s.LiveCost(n(5000), n(5001)); c != wire.Inf {
		t.Errorf("after BreakEdge live cost = %d, want Inf", c)
	}
	if c, _ := s.LiveCost(n(5001), n(5000)); c != wire.Inf {
		t.Errorf("after BreakEdge reverse live cost = %d, want Inf", c)
	}

	s.RestoreEdge(n(5000), n(5001))
	if c, _ := s.LiveCost(n(5000), n(5001)); c != 7 {
		t.Errorf("after RestoreEdge live cost = %d, want 7 (ref cost)", c)
	}
	if c, _ := s.LiveCost(n(5001), n(5000)); c != 7 {
		t.Errorf("after RestoreEdge reverse live cost = %d, want 7 (ref cost)", c)
	}
}

func TestTouchHello_Nondecreasing(t *testing.T) {
	s := New(n(5000))
	peer := n(5001)
	s.ensureNeighbor(peer)

	t0 := time.Now()
	s.TouchHello(peer, t0)
	s.TouchHello(peer, t0.Add(-time.Second))
	if !s.LastHelloAt(peer).Equal(t0) {
		t.Errorf("LastHelloAt() = %v, want %v (must not move backward)", s.LastHelloAt(peer), t0)
	}

	t1 := t0.Add(time.Second)
	s.TouchHello(peer, t1)
	if !s.LastHelloAt(peer).Equal(t1) {
		t.Errorf("LastHelloAt() = %v, want %v", s.LastHelloAt(peer), t1)
	}
}

func TestFiniteAdjacency_ExcludesUnreachable(t *testing.T) {
	s := New(n(5000))
	s.SetLiveEdge(n(5000), n(5001), 3)
	s.SetLiveEdge(n(5000), n(5002), wire.Inf)

	adj := s.FiniteAdjacency(n(5000))
	if _, ok := adj[n(5001)]; !ok {
		t.Error("FiniteAdjacency() missing finite edge to 5001")
	}
	if _, ok := adj[n(5002)]; ok {
		t.Error("FiniteAdjacency() should exclude the Inf edge to 5002")
	}
}
