package topo

import (
	"fmt"
	"io"
	"sort"

	"github.com/kprusa/linkstate-emu/internal/wire"
)

// PrintTopology writes the current live topology (finite edges only)
// in the stable textual form every emulator in a deployment agrees on:
// one line per node that has at least one finite edge, sorted by node
// then by neighbor.
func PrintTopology(w io.Writer, s *Store) {
	nodes := s.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Less(nodes[j]) })

	for _, n := range nodes {
		adj := s.FiniteAdjacency(n)
		if len(adj) == 0 {
			continue
		}
		neighbors := make([]wire.NodeID, 0, len(adj))
		for dst := range adj {
			neighbors = append(neighbors, dst)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Less(neighbors[j]) })

		line := n.String()
		for _, dst := range neighbors {
			line += fmt.Sprintf(" %s,%d", dst, adj[dst])
		}
		fmt.Fprintln(w, line)
	}
}
