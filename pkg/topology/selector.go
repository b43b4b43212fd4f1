package topology

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sort"
	"strings"

	"github.com/newtron-network/routecheck/pkg/util"
)

// NextHopBinding pairs a next-hop address with the traffic-host port that
// owns it.
type NextHopBinding struct {
	Address netip.Addr
	// DeviceIndex is the traffic-host port index packets to Address egress on.
	DeviceIndex int
	// InterfaceName is the traffic-host interface the address is bound to,
	// "eth<N>" or "eth<N>.<vlan>" on backend topologies.
	InterfaceName string
}

// Selection is the outcome of Select.
type Selection struct {
	// PrefixLen is the length of the subnet the next hops live in.
	PrefixLen int
	Bindings  []NextHopBinding
}

// Addresses returns the next-hop addresses in binding order.
func (s *Selection) Addresses() []netip.Addr {
	addrs := make([]netip.Addr, len(s.Bindings))
	for i, b := range s.Bindings {
		addrs[i] = b.Address
	}
	return addrs
}

// DeviceIndices returns the egress port indices in binding order.
func (s *Selection) DeviceIndices() []int {
	devs := make([]int, len(s.Bindings))
	for i, b := range s.Bindings {
		devs[i] = b.DeviceIndex
	}
	return devs
}

// source derives the full pool of eligible bindings for one topology kind.
type source interface {
	pool(t *TestTopology, f util.Family) (prefixLen int, pool []NextHopBinding, err error)
}

func sourceFor(k Kind) source {
	switch k {
	case KindDualNode:
		return dualNodeSource{}
	case KindBackend:
		return vlanSource{subInterfaces: true}
	default:
		return vlanSource{}
	}
}

// Select returns count next-hop bindings of family, drawn uniformly at random
// without replacement from the eligible pool. count is clamped to the pool
// size.
func Select(t *TestTopology, f util.Family, count int, rng *rand.Rand) (*Selection, error) {
	if count < 1 {
		return nil, fmt.Errorf("next hop count must be positive, got %d", count)
	}
	prefixLen, pool, err := sourceFor(t.Kind()).pool(t, f)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, insufficient(t, f, "no eligible next hops")
	}

	count = min(count, len(pool))
	perm := rng.Perm(len(pool))[:count]
	sel := &Selection{PrefixLen: prefixLen, Bindings: make([]NextHopBinding, count)}
	for i, idx := range perm {
		sel.Bindings[i] = pool[idx]
	}
	util.WithField("topology", t.Name).Debugf("selected %d of %d %s next hops (%s)", count, len(pool), f, t.Kind())
	return sel, nil
}

func insufficient(t *TestTopology, f util.Family, details string) error {
	return util.NewKindedPreconditionError(util.ErrInsufficientTopology,
		"select-nexthops", fmt.Sprintf("%s/%s", t.Name, f), details)
}

// primaryVLAN returns the first VLAN (natural order) with at least two
// members and a subnet of family.
func primaryVLAN(t *TestTopology, f util.Family) (VLAN, error) {
	for _, v := range t.sortedVLANs() {
		if len(v.Members) < 2 {
			continue
		}
		if !v.Subnet(f).IsValid() {
			continue
		}
		return v, nil
	}
	return VLAN{}, insufficient(t, f, "no VLAN with two or more members and a "+f.String()+" subnet")
}

// vlanSource draws next hops from the members of the primary VLAN: member
// i (PortChannels excluded) gets the subnet host at offset i+2.
type vlanSource struct {
	subInterfaces bool
}

func (s vlanSource) pool(t *TestTopology, f util.Family) (int, []NextHopBinding, error) {
	vlan, err := primaryVLAN(t, f)
	if err != nil {
		return 0, nil, err
	}
	subnet := vlan.Subnet(f)

	var devs []int
	for _, m := range vlan.Members {
		if strings.Contains(m, "PortChannel") {
			continue
		}
		idx, ok := t.PTFIndices[m]
		if !ok {
			continue
		}
		devs = append(devs, idx)
	}

	pool := make([]NextHopBinding, 0, len(devs))
	for i, dev := range devs {
		addr, err := util.HostAt(subnet, i+2)
		if err != nil {
			// The subnet is exhausted; remaining members get no address.
			break
		}
		name := fmt.Sprintf("eth%d", dev)
		if s.subInterfaces {
			name = fmt.Sprintf("eth%d.%d", dev, vlan.ID)
		}
		pool = append(pool, NextHopBinding{Address: addr, DeviceIndex: dev, InterfaceName: name})
	}
	return subnet.Bits(), pool, nil
}

// dualNodeSource uses the server addresses already bound behind each mux
// cable port.
type dualNodeSource struct{}

func (dualNodeSource) pool(t *TestTopology, f util.Family) (int, []NextHopBinding, error) {
	servers := append([]MuxServer(nil), t.MuxServers...)
	sort.SliceStable(servers, func(i, j int) bool {
		return util.NaturalLess(servers[i].Port, servers[j].Port)
	})

	prefixLen := -1
	if vlan, err := primaryVLAN(t, f); err == nil {
		prefixLen = vlan.Subnet(f).Bits()
	}

	var pool []NextHopBinding
	for _, s := range servers {
		addr := s.Addr(f)
		if !addr.IsValid() {
			continue
		}
		idx, ok := t.PTFIndices[s.Port]
		if !ok {
			continue
		}
		if prefixLen < 0 {
			prefixLen = addr.Bits()
		}
		pool = append(pool, NextHopBinding{
			Address:       addr.Addr(),
			DeviceIndex:   idx,
			InterfaceName: fmt.Sprintf("eth%d", idx),
		})
	}
	if prefixLen < 0 {
		prefixLen = 0
	}
	return prefixLen, pool, nil
}
