package topology

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKind(t *testing.T) {
	tests := []struct {
		topo TestTopology
		want Kind
	}{
		{TestTopology{Name: "t0-64"}, KindStandard},
		{TestTopology{Name: "t0-backend", Backend: true}, KindBackend},
		{TestTopology{Name: "dualtor-56"}, KindDualNode},
		{TestTopology{Name: "dualtor-56", Backend: true}, KindDualNode},
	}
	for _, tt := range tests {
		if got := tt.topo.Kind(); got != tt.want {
			t.Errorf("%s Kind() = %s, want %s", tt.topo.Name, got, tt.want)
		}
	}
}

func TestIsSupported(t *testing.T) {
	for _, typ := range []string{"t0", "m0", "mx"} {
		topo := TestTopology{Type: typ}
		if !topo.IsSupported() {
			t.Errorf("IsSupported(%q) = false, want true", typ)
		}
	}
	for _, typ := range []string{"t1", "t2", ""} {
		topo := TestTopology{Type: typ}
		if topo.IsSupported() {
			t.Errorf("IsSupported(%q) = true, want false", typ)
		}
	}
}

func TestNeighborPorts(t *testing.T) {
	topo := TestTopology{
		Neighbors: map[string][]int{
			"ARISTA01T1":  {28},
			"ARISTA02T1":  {29},
			"ARISTA03T1":  {30, 31},
			"ARISTA01PT0": {40},
			"Servers0":    {1},
		},
	}
	if diff := cmp.Diff([]int{28, 29, 30, 31}, topo.NeighborPorts("t1")); diff != "" {
		t.Errorf("NeighborPorts(t1) mismatch (-want +got):\n%s", diff)
	}
	if got := topo.NeighborPorts("m1"); len(got) != 0 {
		t.Errorf("NeighborPorts(m1) = %v, want none", got)
	}
}

func TestDefaultUpstreamNeighborMap(t *testing.T) {
	for typ, want := range map[string]string{"t0": "t1", "m0": "m1", "mx": "m0"} {
		if got := DefaultUpstreamNeighborMap[typ]; got != want {
			t.Errorf("DefaultUpstreamNeighborMap[%q] = %q, want %q", typ, got, want)
		}
	}
}
