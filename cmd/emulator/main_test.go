package main

import "testing"

func TestRun_MissingFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no flags", nil, exitConfig},
		{"missing topology file", []string{"-p", "5000"}, exitConfig},
		{"port out of range", []string{"-p", "1", "-f", "topo.txt"}, exitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestRun_MissingTopologyFile(t *testing.T) {
	got := run([]string{"-p", "5000", "-f", "does-not-exist.txt"})
	if got != exitTopology {
		t.Errorf("run() = %d, want %d", got, exitTopology)
	}
}
