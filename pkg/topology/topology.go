// Package topology holds the read-only testbed topology facts and derives
// next-hop bindings from them.
package topology

import (
	"net/netip"
	"sort"
	"strings"

	"github.com/newtron-network/routecheck/pkg/util"
)

// VLAN is one switch VLAN with its member ports and interface subnets.
type VLAN struct {
	Name    string
	ID      int
	Members []string
	IPv4    netip.Prefix
	IPv6    netip.Prefix
}

// Subnet returns the VLAN interface subnet for family.
func (v VLAN) Subnet(f util.Family) netip.Prefix {
	if f.IsV6() {
		return v.IPv6
	}
	return v.IPv4
}

// MuxServer is a server behind a mux cable port of a dual-node testbed.
type MuxServer struct {
	Port string
	IPv4 netip.Prefix
	IPv6 netip.Prefix
}

// Addr returns the server address for family.
func (s MuxServer) Addr(f util.Family) netip.Prefix {
	if f.IsV6() {
		return s.IPv6
	}
	return s.IPv4
}

// TestTopology is a read-only snapshot of the testbed facts.
type TestTopology struct {
	// Name is the testbed topology name, e.g. "t0-64" or "dualtor-56".
	Name string
	// Type is the topology type, e.g. "t0", "m0", "mx".
	Type    string
	Backend bool
	VLANs   []VLAN
	// PTFIndices maps a switch port name to its traffic-host port index.
	PTFIndices map[string]int
	MuxServers []MuxServer
	// Neighbors maps a neighbor device name (e.g. "ARISTA01T1") to the
	// traffic-host port indices facing it.
	Neighbors map[string][]int
}

// Kind is the closed set of topology shapes next hops are derived for.
type Kind int

const (
	KindStandard Kind = iota
	KindBackend
	KindDualNode
)

func (k Kind) String() string {
	switch k {
	case KindBackend:
		return "backend"
	case KindDualNode:
		return "dual-node"
	default:
		return "standard"
	}
}

// Kind classifies the topology. Dual-node wins over backend.
func (t *TestTopology) Kind() Kind {
	switch {
	case t.IsDualNode():
		return KindDualNode
	case t.Backend:
		return KindBackend
	default:
		return KindStandard
	}
}

// IsDualNode reports whether two switches share the server-facing ports.
func (t *TestTopology) IsDualNode() bool {
	return strings.Contains(t.Name, "dualtor")
}

// SupportedTypes are the topology types static routes are verified on.
var SupportedTypes = []string{"t0", "m0", "mx"}

// IsSupported reports whether the topology type is one of SupportedTypes.
func (t *TestTopology) IsSupported() bool {
	for _, s := range SupportedTypes {
		if t.Type == s {
			return true
		}
	}
	return false
}

// DefaultUpstreamNeighborMap maps a topology type to the neighbor role that
// sits upstream of the switch.
var DefaultUpstreamNeighborMap = map[string]string{
	"t0": "t1",
	"t1": "t2",
	"m0": "m1",
	"mx": "m0",
	"m1": "ma",
	"t2": "t3",
}

// NeighborPorts returns the sorted traffic-host ports facing neighbors whose
// name carries the role, e.g. "ARISTA01T1" for role "t1".
func (t *TestTopology) NeighborPorts(role string) []int {
	marker := strings.ToUpper(role)
	var ports []int
	for name, idx := range t.Neighbors {
		if strings.HasSuffix(strings.ToUpper(name), marker) {
			ports = append(ports, idx...)
		}
	}
	sort.Ints(ports)
	return ports
}

// sortedVLANs returns the VLANs in natural name order.
func (t *TestTopology) sortedVLANs() []VLAN {
	vlans := append([]VLAN(nil), t.VLANs...)
	sort.SliceStable(vlans, func(i, j int) bool {
		return util.NaturalLess(vlans[i].Name, vlans[j].Name)
	})
	return vlans
}
