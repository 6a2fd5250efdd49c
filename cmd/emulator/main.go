// Command emulator runs one link-state routing node: it loads a seed
// topology file, binds a UDP socket on the requested port, and runs
// the dispatcher event loop until interrupted.
package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kprusa/linkstate-emu/internal/config"
	"github.com/kprusa/linkstate-emu/internal/dispatch"
	"github.com/kprusa/linkstate-emu/internal/metrics"
	"github.com/kprusa/linkstate-emu/internal/topo"
)

// Exit codes per the CLI's documented error table: a nonzero status
// distinguishes configuration mistakes from topology-file problems
// from socket bind failures, so a wrapping script can react
// differently to each.
const (
	exitOK = iota
	exitConfig
	exitTopology
	exitBind
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.ParseEmulator(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	raw, err := os.ReadFile(cfg.TopologyFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitTopology
	}

	self, err := topo.ResolveSelfByPort(bytes.NewReader(raw), cfg.Port)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitTopology
	}

	store, err := topo.LoadSeed(bytes.NewReader(raw), self)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitTopology
	}

	var mx *metrics.Metrics
	if cfg.MetricsAddr != "" {
		mx = metrics.New()
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mx.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "emulator: metrics server: %s\n", err)
			}
		}()
	}

	conn, err := dispatch.DialUDP(self)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBind
	}

	node := dispatch.New(store, conn, mx)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := node.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBind
	}
	return exitOK
}
