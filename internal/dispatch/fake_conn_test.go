package dispatch

import (
	"os"
	"time"

	"github.com/kprusa/linkstate-emu/internal/wire"
)

// sentPacket records one WriteTo call observed by a fakeConn.
type sentPacket struct {
	dest wire.NodeID
	raw  []byte
}

// fakeConn is an in-memory Conn for deterministic dispatcher tests: no
// real sockets, no real time, a scripted inbound queue and a recorded
// outbound log.
type fakeConn struct {
	inbox []sentPacket
	sent  []sentPacket
	self  wire.NodeID
}

func newFakeConn(self wire.NodeID) *fakeConn {
	return &fakeConn{self: self}
}

func (c *fakeConn) deliver(from wire.NodeID, raw []byte) {
	c.inbox = append(c.inbox, sentPacket{dest: from, raw: raw})
}

func (c *fakeConn) ReadFrom(b []byte) (int, wire.NodeID, error) {
	if len(c.inbox) == 0 {
		return 0, wire.NodeID{}, os.ErrDeadlineExceeded
	}
	pkt := c.inbox[0]
	c.inbox = c.inbox[1:]
	n := copy(b, pkt.raw)
	return n, pkt.dest, nil
}

func (c *fakeConn) WriteTo(b []byte, dest wire.NodeID) error {
	cp := append([]byte(nil), b...)
	c.sent = append(c.sent, sentPacket{dest: dest, raw: cp})
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error { return nil }
func (c *fakeConn) Close() error                      { return nil }

func (c *fakeConn) sentTo(dest wire.NodeID) []sentPacket {
	var out []sentPacket
	for _, p := range c.sent {
		if p.dest == dest {
			out = append(out, p)
		}
	}
	return out
}
