// Command routetrace is the route-trace diagnostic client: it sends
// TTL-incrementing route-trace requests to a source emulator and
// prints the hop sequence of replies.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/kprusa/linkstate-emu/internal/config"
	"github.com/kprusa/linkstate-emu/internal/traceclient"
	"github.com/kprusa/linkstate-emu/internal/wire"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.ParseTrace(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	traceAddr, err := localSelf(cfg.TracePort)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	src, err := resolveNode(cfg.SrcHost, cfg.SrcPort)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	dest, err := resolveNode(cfg.DestHost, cfg.DestPort)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_, err = traceclient.Run(ctx, traceclient.Config{
		TraceAddr: traceAddr,
		Src:       src,
		Dest:      dest,
		Debug:     cfg.Debug,
	}, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// resolveNode resolves host (a hostname or literal IPv4 address) and
// pairs it with port to build the NodeID the wire protocol addresses.
func resolveNode(host string, port int) (wire.NodeID, error) {
	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return wire.NodeID{}, fmt.Errorf("routetrace: resolve %s: %w", host, err)
	}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return wire.NodeID{}, fmt.Errorf("routetrace: %s is not IPv4", host)
	}
	var id wire.NodeID
	copy(id.IP[:], ip4)
	id.Port = uint16(port)
	return id, nil
}

// localSelf resolves this host's own IPv4 address and pairs it with
// port, the address the trace client listens on for O replies.
func localSelf(port int) (wire.NodeID, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return wire.NodeID{}, fmt.Errorf("routetrace: %w", err)
	}
	return resolveNode(hostname, port)
}
