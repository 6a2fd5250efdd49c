// Package config parses and validates the command-line surface of both
// binaries: the emulator node and the route-trace client.
package config

import (
	"errors"
	"flag"
	"fmt"
)

// Port bounds shared by both binaries.
const (
	MinPort = 2050
	MaxPort = 65535
)

var (
	ErrPortOutOfRange = errors.New("config: port out of range")
	ErrMissingFlag    = errors.New("config: required flag missing")
)

// Emulator holds a validated emulator CLI invocation.
type Emulator struct {
	Port        int
	TopologyFile string
	MetricsAddr string // empty if -metrics-addr was not given
}

// ParseEmulator parses and validates `-p <port> -f <topology-file>
// [-metrics-addr <host:port>]`. The metrics listener is an additive
// flag with no presence in spec.md's original CLI surface; omitting it
// reproduces that surface exactly.
func ParseEmulator(args []string) (Emulator, error) {
	fs := flag.NewFlagSet("emulator", flag.ContinueOnError)
	port := fs.Int("p", 0, "UDP port to bind (2050-65535)")
	topoFile := fs.String("f", "", "path to the seed topology file")
	metricsAddr := fs.String("metrics-addr", "", "optional host:port to serve Prometheus metrics on")

	if err := fs.Parse(args); err != nil {
		return Emulator{}, err
	}

	if *topoFile == "" {
		return Emulator{}, fmt.Errorf("%w: -f", ErrMissingFlag)
	}
	if *port < MinPort || *port > MaxPort {
		return Emulator{}, fmt.Errorf("%w: %d (want %d-%d)", ErrPortOutOfRange, *port, MinPort, MaxPort)
	}

	return Emulator{Port: *port, TopologyFile: *topoFile, MetricsAddr: *metricsAddr}, nil
}

// Trace holds a validated route-trace client CLI invocation.
type Trace struct {
	TracePort int
	SrcHost   string
	SrcPort   int
	DestHost  string
	DestPort  int
	Debug     bool
}

// ParseTrace parses and validates
// `-a <trace-port> -b <src-host> -c <src-port> -d <dest-host> -e <dest-port> -f <debug:0|1>`.
func ParseTrace(args []string) (Trace, error) {
	fs := flag.NewFlagSet("routetrace", flag.ContinueOnError)
	tracePort := fs.Int("a", 0, "local UDP port the trace client listens on for O replies")
	srcHost := fs.String("b", "", "source node's IP address")
	srcPort := fs.Int("c", 0, "source node's UDP port")
	destHost := fs.String("d", "", "destination node's IP address")
	destPort := fs.Int("e", 0, "destination node's UDP port")
	debug := fs.Int("f", 0, "debug output: 0 or 1")

	if err := fs.Parse(args); err != nil {
		return Trace{}, err
	}

	if *srcHost == "" {
		return Trace{}, fmt.Errorf("%w: -b", ErrMissingFlag)
	}
	if *destHost == "" {
		return Trace{}, fmt.Errorf("%w: -d", ErrMissingFlag)
	}
	for name, p := range map[string]int{"-a": *tracePort, "-c": *srcPort, "-e": *destPort} {
		if p < MinPort || p > MaxPort {
			return Trace{}, fmt.Errorf("%w: %s=%d (want %d-%d)", ErrPortOutOfRange, name, p, MinPort, MaxPort)
		}
	}
	if *debug != 0 && *debug != 1 {
		return Trace{}, fmt.Errorf("config: -f must be 0 or 1, got %d", *debug)
	}

	return Trace{
		TracePort: *tracePort,
		SrcHost:   *srcHost,
		SrcPort:   *srcPort,
		DestHost:  *destHost,
		DestPort:  *destPort,
		Debug:     *debug == 1,
	}, nil
}
