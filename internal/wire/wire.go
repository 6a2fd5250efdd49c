// Package wire packs and parses the five UDP packet kinds exchanged by
// emulator nodes: HELLO, LSA, route-trace request/reply, and DATA. All
// multi-byte fields are network byte order; all addresses are IPv4.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// Packet tags. DATA packets use any tag below tagDataMax; TagHello,
// TagLSA, TagTraceReq and TagTraceReply sit above that range.
const (
	TagHello      byte = 'H' // 0x48
	TagLSA        byte = 'L' // 0x4C
	TagTraceReq   byte = 'T' // 0x54
	TagTraceReply byte = 'O' // 0x4F
	tagDataMax    byte = 0x04
)

// MaxDatagram is the largest UDP payload this protocol will read or write.
const MaxDatagram = 4096

// Inf is a cost sentinel large enough that any realistic sum of edge
// costs along a path stays below Inf/4. Costs at or above Inf/4 are
// treated as "unreachable" rather than as a real, if expensive, path.
const Inf uint32 = 1 << 30

// Unreachable reports whether a cost should be treated as an absent edge.
func Unreachable(cost uint32) bool {
	return cost >= Inf/4
}

var (
	ErrShortDatagram    = errors.New("wire: datagram shorter than its fixed header")
	ErrUnknownTag       = errors.New("wire: unrecognized packet tag")
	ErrTruncatedPayload = errors.New("wire: LSA payload shorter than declared length")
)

// NodeID identifies an emulator instance by its IPv4 address and UDP
// port. Equality and hashing are structural, so NodeID is safe to use
// directly as a map key.
type NodeID struct {
	IP   [4]byte
	Port uint16
}

// NodeIDFromUDPAddr converts a resolved UDP address into a NodeID.
// Returns an error if the address is not a valid IPv4 endpoint.
func NodeIDFromUDPAddr(addr *net.UDPAddr) (NodeID, error) {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return NodeID{}, fmt.Errorf("wire: %s is not an IPv4 address", addr.IP)
	}
	var id NodeID
	copy(id.IP[:], ip4)
	id.Port = uint16(addr.Port)
	return id, nil
}

// UDPAddr converts the NodeID back into a net.UDPAddr suitable for WriteTo.
func (n NodeID) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(n.IP[0], n.IP[1], n.IP[2], n.IP[3]), Port: int(n.Port)}
}

func (n NodeID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d,%d", n.IP[0], n.IP[1], n.IP[2], n.IP[3], n.Port)
}

// Less gives NodeID a total order, used to keep printed output and
// forwarding-table iteration deterministic.
func (n NodeID) Less(o NodeID) bool {
	for i := 0; i < 4; i++ {
		if n.IP[i] != o.IP[i] {
			return n.IP[i] < o.IP[i]
		}
	}
	return n.Port < o.Port
}

func putNodeID(b []byte, id NodeID) {
	copy(b[0:4], id.IP[:])
	binary.BigEndian.PutUint16(b[4:6], id.Port)
}

func getNodeID(b []byte) NodeID {
	var id NodeID
	copy(id.IP[:], b[0:4])
	id.Port = binary.BigEndian.Uint16(b[4:6])
	return id
}

// Kind classifies a parsed packet.
type Kind int

const (
	KindHello Kind = iota
	KindLSA
	KindTraceReq
	KindTraceReply
	KindData
)

// Classify inspects the tag byte of a raw datagram and returns its kind.
func Classify(b []byte) (Kind, error) {
	if len(b) < 1 {
		return 0, ErrShortDatagram
	}
	switch {
	case b[0] < tagDataMax:
		return KindData, nil
	case b[0] == TagHello:
		return KindHello, nil
	case b[0] == TagLSA:
		return KindLSA, nil
	case b[0] == TagTraceReq:
		return KindTraceReq, nil
	case b[0] == TagTraceReply:
		return KindTraceReply, nil
	default:
		return 0, ErrUnknownTag
	}
}
