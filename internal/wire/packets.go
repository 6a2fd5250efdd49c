package wire

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Hello carries only the sender's own identity: srcIP(4) srcPort(2).
type Hello struct {
	Src NodeID
}

const helloLen = 1 + 6

// EncodeHello packs a HELLO packet.
func EncodeHello(src NodeID) []byte {
	b := make([]byte, helloLen)
	b[0] = TagHello
	putNodeID(b[1:], src)
	return b
}

// DecodeHello parses a HELLO packet. Caller must have already classified b.
func DecodeHello(b []byte) (Hello, error) {
	if len(b) < helloLen {
		return Hello{}, ErrShortDatagram
	}
	return Hello{Src: getNodeID(b[1:])}, nil
}

func (h Hello) String() string {
	return fmt.Sprintf("HELLO %s", h.Src)
}

// LSA carries a source's adjacency map, flooded with split-horizon.
//
// Layout: tag(1) srcIP(4) srcPort(2) lastSenderIP(4) lastSenderPort(2)
// seqNo(4) TTL(4) len(4) payload(len).
type LSA struct {
	Src        NodeID
	LastSender NodeID
	SeqNo      uint32
	TTL        uint32
	Adjacency  map[NodeID]uint32
}

const lsaHeaderLen = 1 + 6 + 6 + 4 + 4 + 4

// EncodeLSA packs an LSA packet, encoding its adjacency map as a flat,
// length-prefixed sequence of (IP, port, cost) entries.
func EncodeLSA(l LSA) []byte {
	payload := EncodeAdjacency(l.Adjacency)
	b := make([]byte, lsaHeaderLen+len(payload))
	b[0] = TagLSA
	putNodeID(b[1:], l.Src)
	putNodeID(b[7:], l.LastSender)
	binary.BigEndian.PutUint32(b[13:17], l.SeqNo)
	binary.BigEndian.PutUint32(b[17:21], l.TTL)
	binary.BigEndian.PutUint32(b[21:25], uint32(len(payload)))
	copy(b[25:], payload)
	return b
}

// DecodeLSA parses an LSA packet. Caller must have already classified b.
func DecodeLSA(b []byte) (LSA, error) {
	if len(b) < lsaHeaderLen {
		return LSA{}, ErrShortDatagram
	}
	l := LSA{
		Src:        getNodeID(b[1:]),
		LastSender: getNodeID(b[7:]),
		SeqNo:      binary.BigEndian.Uint32(b[13:17]),
		TTL:        binary.BigEndian.Uint32(b[17:21]),
	}
	plen := binary.BigEndian.Uint32(b[21:25])
	if uint32(len(b)-lsaHeaderLen) < plen {
		return LSA{}, ErrTruncatedPayload
	}
	adj, err := DecodeAdjacency(b[lsaHeaderLen : lsaHeaderLen+int(plen)])
	if err != nil {
		return LSA{}, err
	}
	l.Adjacency = adj
	return l, nil
}

func (l LSA) String() string {
	return fmt.Sprintf("LSA src=%s lastSender=%s seq=%d ttl=%d entries=%d",
		l.Src, l.LastSender, l.SeqNo, l.TTL, len(l.Adjacency))
}

// adjacency entry: IP(4) Port(2) Cost(4).
const adjEntryLen = 4 + 2 + 4

// EncodeAdjacency packs a destination->cost map deterministically:
// entries are written in NodeID.Less order, and the entry count is
// implied by the outer LSA length field.
func EncodeAdjacency(adj map[NodeID]uint32) []byte {
	dsts := make([]NodeID, 0, len(adj))
	for dst := range adj {
		dsts = append(dsts, dst)
	}
	sort.Slice(dsts, func(i, j int) bool { return dsts[i].Less(dsts[j]) })

	b := make([]byte, 0, len(adj)*adjEntryLen)
	for _, dst := range dsts {
		entry := make([]byte, adjEntryLen)
		putNodeID(entry, dst)
		binary.BigEndian.PutUint32(entry[6:10], adj[dst])
		b = append(b, entry...)
	}
	return b
}

// DecodeAdjacency unpacks a destination->cost map from raw bytes whose
// length must be a multiple of the per-entry size.
func DecodeAdjacency(b []byte) (map[NodeID]uint32, error) {
	if len(b)%adjEntryLen != 0 {
		return nil, ErrTruncatedPayload
	}
	n := len(b) / adjEntryLen
	adj := make(map[NodeID]uint32, n)
	for i := 0; i < n; i++ {
		entry := b[i*adjEntryLen : (i+1)*adjEntryLen]
		dst := getNodeID(entry)
		cost := binary.BigEndian.Uint32(entry[6:10])
		adj[dst] = cost
	}
	return adj, nil
}

// Trace is the shared layout for route-trace request ('T') and reply
// ('O') packets: tag(1) srcIP(4) srcPort(2) destIP(4) destPort(2)
// traceIP(4) tracePort(2) TTL(4).
//
// Src is the node that originated the trace (where the final reply is
// delivered). Dest is the node under trace. Trace is the trace
// client's own listening address, carried end to end so the
// originating node knows where to hand the reply off locally.
type Trace struct {
	Src   NodeID
	Dest  NodeID
	Trace NodeID
	TTL   uint32
}

const traceLen = 1 + 6 + 6 + 6 + 4

// EncodeTrace packs a route-trace request or reply; tag must be
// TagTraceReq or TagTraceReply.
func EncodeTrace(tag byte, t Trace) []byte {
	b := make([]byte, traceLen)
	b[0] = tag
	putNodeID(b[1:], t.Src)
	putNodeID(b[7:], t.Dest)
	putNodeID(b[13:], t.Trace)
	binary.BigEndian.PutUint32(b[19:23], t.TTL)
	return b
}

// DecodeTrace parses a route-trace request or reply. Caller must have
// already classified b.
func DecodeTrace(b []byte) (Trace, error) {
	if len(b) < traceLen {
		return Trace{}, ErrShortDatagram
	}
	return Trace{
		Src:   getNodeID(b[1:]),
		Dest:  getNodeID(b[7:]),
		Trace: getNodeID(b[13:]),
		TTL:   binary.BigEndian.Uint32(b[19:23]),
	}, nil
}

func (t Trace) String() string {
	return fmt.Sprintf("src=%s dest=%s trace=%s ttl=%d", t.Src, t.Dest, t.Trace, t.TTL)
}

// Data carries opaque application payload: tag(<4) srcIP(4) srcPort(2)
// destIP(4) destPort(2) payload.
type Data struct {
	Tag     byte
	Src     NodeID
	Dest    NodeID
	Payload []byte
}

const dataHeaderLen = 1 + 6 + 6

// EncodeData packs a DATA packet. tag must be < tagDataMax.
func EncodeData(tag byte, src, dest NodeID, payload []byte) []byte {
	b := make([]byte, dataHeaderLen+len(payload))
	b[0] = tag
	putNodeID(b[1:], src)
	putNodeID(b[7:], dest)
	copy(b[dataHeaderLen:], payload)
	return b
}

// DecodeData parses a DATA packet. Caller must have already classified b.
func DecodeData(b []byte) (Data, error) {
	if len(b) < dataHeaderLen {
		return Data{}, ErrShortDatagram
	}
	d := Data{
		Tag:  b[0],
		Src:  getNodeID(b[1:]),
		Dest: getNodeID(b[7:]),
	}
	d.Payload = append([]byte(nil), b[dataHeaderLen:]...)
	return d, nil
}

func (d Data) String() string {
	return fmt.Sprintf("DATA src=%s dest=%s len=%d", d.Src, d.Dest, len(d.Payload))
}
