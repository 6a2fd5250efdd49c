package topo

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/kprusa/linkstate-emu/internal/wire"
)

// ErrInconsistentTopology is returned when a line's node address
// cannot be parsed; inconsistent-but-well-formed topology files (a
// edge that isn't mirrored) are explicitly undefined behavior per the
// topology file contract and are not detected here.
type ErrInconsistentTopology struct {
	Line string
	Msg  string
}

func (e ErrInconsistentTopology) Error() string {
	return fmt.Sprintf("topology file: %s: %s", e.Msg, e.Line)
}

// LoadSeed reads the topology file format: one line per node, `IP,PORT`
// for the node itself followed by whitespace-separated `IP,PORT,COST`
// triples for its direct neighbors. It returns a Store rooted at self,
// with ref and live both seeded from the file.
func LoadSeed(r io.Reader, self wire.NodeID) (*Store, error) {
	store := New(self)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sawSelf := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		nodeID, err := parseNodeAddr(fields[0])
		if err != nil {
			return nil, ErrInconsistentTopology{Line: line, Msg: err.Error()}
		}
		if nodeID == self {
			sawSelf = true
		}
		store.ensureNode(nodeID)
		for _, triple := range fields[1:] {
			neighborID, cost, err := parseNeighborTriple(triple)
			if err != nil {
				return nil, ErrInconsistentTopology{Line: line, Msg: err.Error()}
			}
			store.SeedEdge(nodeID, neighborID, cost)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !sawSelf {
		return nil, fmt.Errorf("topology file: self address %s not present", self)
	}
	return store, nil
}

// ResolveSelfByPort scans a topology file for the node line whose port
// matches port and returns its full NodeID (IP and port). This lets a
// process learn its own address from the topology file rather than
// from hostname resolution, since the file is the source of truth for
// every participant's address.
func ResolveSelfByPort(r io.Reader, port int) (wire.NodeID, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		nodeID, err := parseNodeAddr(fields[0])
		if err != nil {
			return wire.NodeID{}, ErrInconsistentTopology{Line: line, Msg: err.Error()}
		}
		if int(nodeID.Port) == port {
			return nodeID, nil
		}
	}
	if err := sc.Err(); err != nil {
		return wire.NodeID{}, err
	}
	return wire.NodeID{}, fmt.Errorf("topology file: no node line for port %d", port)
}

func parseNodeAddr(field string) (wire.NodeID, error) {
	parts := strings.Split(field, ",")
	if len(parts) != 2 {
		return wire.NodeID{}, fmt.Errorf("expected IP,PORT, got %q", field)
	}
	return buildNodeID(parts[0], parts[1])
}

func parseNeighborTriple(field string) (wire.NodeID, uint32, error) {
	parts := strings.Split(field, ",")
	if len(parts) != 3 {
		return wire.NodeID{}, 0, fmt.Errorf("expected IP,PORT,COST, got %q", field)
	}
	id, err := buildNodeID(parts[0], parts[1])
	if err != nil {
		return wire.NodeID{}, 0, err
	}
	cost, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return wire.NodeID{}, 0, fmt.Errorf("invalid cost %q: %w", parts[2], err)
	}
	return id, uint32(cost), nil
}

func buildNodeID(ipStr, portStr string) (wire.NodeID, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return wire.NodeID{}, fmt.Errorf("invalid IP %q", ipStr)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return wire.NodeID{}, fmt.Errorf("not an IPv4 address: %q", ipStr)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return wire.NodeID{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	var id wire.NodeID
	copy(id.IP[:], ip4)
	id.Port = uint16(port)
	return id, nil
}
