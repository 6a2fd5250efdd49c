package dispatch

import (
	"fmt"
	"io"

	"github.com/kprusa/linkstate-emu/internal/route"
	"github.com/kprusa/linkstate-emu/internal/topo"
)

// printRebuild emits the stable stdout form required on every
// forwarding-table rebuild: the current live topology, then the new
// forwarding table, per §6 of the external interface.
func printRebuild(w io.Writer, store *topo.Store, table *route.Table) {
	fmt.Fprintln(w, "Topology:")
	fmt.Fprintln(w)
	topo.PrintTopology(w, store)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Forwarding Table:")
	fmt.Fprintln(w)
	for _, e := range table.Entries {
		fmt.Fprintf(w, "%s %s\n", e.Dest, e.NextHop)
	}
}
