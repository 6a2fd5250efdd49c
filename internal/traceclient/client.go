// Package traceclient implements the route-trace diagnostic client: it
// sends TTL-incrementing route-trace requests to a source emulator and
// reports the hop sequence of replies, mirroring traceroute at the
// application layer.
package traceclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/kprusa/linkstate-emu/internal/wire"
	"golang.org/x/sync/errgroup"
)

// MaxAttempts bounds the TTL scan; the original budget is 20 hops.
const MaxAttempts = 20

const attemptTimeout = 2 * time.Second

// Config is a validated route-trace client invocation.
type Config struct {
	TraceAddr wire.NodeID // this client's own listening address
	Src       wire.NodeID // the source emulator the T is sent to
	Dest      wire.NodeID // the node under trace
	Debug     bool
}

// Hop is one observed reply in the trace.
type Hop struct {
	TTL  uint32
	From wire.NodeID
}

// Result is the full outcome of a trace run.
type Result struct {
	Hops     []Hop
	Reached  bool // true if the destination itself replied
	Attempts int
}

// Run executes the TTL scan against cfg, printing per-hop output in
// the documented format as replies arrive, and returns the full
// result once the destination replies or MaxAttempts is exhausted.
func Run(ctx context.Context, cfg Config, out io.Writer) (Result, error) {
	recv, err := net.ListenUDP("udp4", cfg.TraceAddr.UDPAddr())
	if err != nil {
		return Result{}, fmt.Errorf("traceclient: listen: %w", err)
	}
	defer recv.Close()
	send, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return Result{}, fmt.Errorf("traceclient: dial: %w", err)
	}
	defer send.Close()

	if cfg.Debug {
		fmt.Fprintln(out, "Hop# SRCIP SRCPort DESTIP DESTPort")
	} else {
		fmt.Fprintln(out, "Hop#  IP Port")
	}

	var result Result
	for ttl := uint32(0); ttl < MaxAttempts; ttl++ {
		result.Attempts++

		hop, reached, err := attempt(ctx, send, recv, cfg, ttl, out)
		if err != nil {
			continue // transient I/O on one attempt: log-equivalent skip, keep scanning
		}
		if hop == nil {
			continue // attempt timed out with no reply
		}
		result.Hops = append(result.Hops, *hop)
		if reached {
			result.Reached = true
			return result, nil
		}
	}

	fmt.Fprintf(out, "trace did not reach destination after %d hops\n", len(result.Hops))
	return result, nil
}

// attempt runs one TTL probe: send the T request and concurrently wait
// for its O reply, using an errgroup so the send and receive sides
// observe a shared deadline and cancellation signal.
func attempt(ctx context.Context, send, recv *net.UDPConn, cfg Config, ttl uint32, out io.Writer) (*Hop, bool, error) {
	actx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(actx)

	var reply wire.Trace
	var gotReply bool

	g.Go(func() error {
		req := wire.Trace{Src: cfg.Src, Dest: cfg.Dest, Trace: cfg.TraceAddr, TTL: ttl}
		if cfg.Debug {
			fmt.Fprintf(out, "%d %s %s\n", ttl, cfg.Src, cfg.Dest)
		}
		_, err := send.WriteToUDP(wire.EncodeTrace(wire.TagTraceReq, req), cfg.Src.UDPAddr())
		return err
	})

	g.Go(func() error {
		if err := recv.SetReadDeadline(time.Now().Add(attemptTimeout)); err != nil {
			return err
		}
		buf := make([]byte, wire.MaxDatagram)
		for {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			n, _, err := recv.ReadFromUDP(buf)
			if err != nil {
				return nil // deadline exceeded: no reply this attempt
			}
			kind, err := wire.Classify(buf[:n])
			if err != nil || kind != wire.KindTraceReply {
				continue
			}
			t, err := wire.DecodeTrace(buf[:n])
			if err != nil {
				continue
			}
			reply = t
			gotReply = true
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	if !gotReply {
		return nil, false, nil
	}

	hop := &Hop{TTL: ttl, From: reply.Src}
	if cfg.Debug {
		fmt.Fprintf(out, "RETURN PACKET RECEIVED:\n%d %s %s\n", ttl, reply.Src, reply.Dest)
	} else {
		fmt.Fprintf(out, "%d %s\n", ttl, reply.Src)
	}

	return hop, reply.Src == cfg.Dest, nil
}
