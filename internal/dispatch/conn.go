package dispatch

import (
	"net"
	"time"

	"github.com/kprusa/linkstate-emu/internal/wire"
)

// Conn is the dispatcher's view of its two UDP endpoints: a bound
// receive socket and an unbound send socket, owned exclusively by the
// event loop.
type Conn interface {
	// ReadFrom attempts to read one datagram into b, returning its
	// length and sender. Returning an error wrapping
	// os.ErrDeadlineExceeded means "no datagram available".
	ReadFrom(b []byte) (int, wire.NodeID, error)

	// WriteTo sends b to dest from the unbound send socket.
	WriteTo(b []byte, dest wire.NodeID) error

	SetReadDeadline(t time.Time) error
	Close() error
}

// udpConn is the production Conn, backed by two real UDP sockets: a
// bound receive socket (self's advertised address) and a separate
// unbound socket used only for sending, mirroring the two-socket
// layout of the reference implementation.
type udpConn struct {
	recv *net.UDPConn
	send *net.UDPConn
}

// DialUDP opens the dispatcher's two sockets: recv is bound to self's
// port, send is left unbound so the kernel assigns it an ephemeral
// port.
func DialUDP(self wire.NodeID) (Conn, error) {
	recv, err := net.ListenUDP("udp4", self.UDPAddr())
	if err != nil {
		return nil, err
	}
	send, err := net.ListenUDP("udp4", nil)
	if err != nil {
		recv.Close()
		return nil, err
	}
	return &udpConn{recv: recv, send: send}, nil
}

func (c *udpConn) ReadFrom(b []byte) (int, wire.NodeID, error) {
	n, addr, err := c.recv.ReadFromUDP(b)
	if err != nil {
		return 0, wire.NodeID{}, err
	}
	id, err := wire.NodeIDFromUDPAddr(addr)
	if err != nil {
		return 0, wire.NodeID{}, err
	}
	return n, id, nil
}

func (c *udpConn) WriteTo(b []byte, dest wire.NodeID) error {
	_, err := c.send.WriteToUDP(b, dest.UDPAddr())
	return err
}

func (c *udpConn) SetReadDeadline(t time.Time) error {
	return c.recv.SetReadDeadline(t)
}

func (c *udpConn) Close() error {
	err := c.recv.Close()
	if sendErr := c.send.Close(); err == nil {
		err = sendErr
	}
	return err
}
