package routetest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"

	"github.com/newtron-network/routecheck/pkg/dataplane"
	"github.com/newtron-network/routecheck/pkg/topology"
	"github.com/newtron-network/routecheck/pkg/util"
)

// Dataplane is the traffic host's set of emulated ports.
type Dataplane interface {
	dataplane.PacketIO
	MAC(port int) (net.HardwareAddr, error)
	// Ports returns the open port indices in ascending order.
	Ports() []int
}

// UpstreamPorts returns the traffic-host ports facing the upstream neighbors
// of topo. It fails with ErrUnsupportedTopology when upstreamMap has no entry
// for the topology type, and with ErrInsufficientTopology when no port faces
// the upstream role.
func UpstreamPorts(topo *topology.TestTopology, upstreamMap map[string]string) ([]int, error) {
	role, ok := upstreamMap[topo.Type]
	if !ok {
		return nil, util.NewKindedPreconditionError(util.ErrUnsupportedTopology,
			"resolve-upstream", topo.Name, fmt.Sprintf("no upstream neighbor role for topology type %q", topo.Type))
	}
	ports := topo.NeighborPorts(role)
	if len(ports) == 0 {
		return nil, util.NewKindedPreconditionError(util.ErrInsufficientTopology,
			"resolve-upstream", topo.Name, fmt.Sprintf("no ports face %s neighbors", role))
	}
	return ports, nil
}

// TrafficVerifier sends one probe into the switch and checks where it comes
// out.
type TrafficVerifier struct {
	Dataplane Dataplane
	// Upstream are the candidate ingress ports; one is drawn per probe.
	Upstream []int
	Rand     *rand.Rand
	Options  dataplane.VerifyOptions
}

// Verify sends one TCP probe to the first host of prefix from a random
// upstream port and asserts it egresses on exactly one of expectedPorts.
// It returns the port the probe was seen on.
func (v *TrafficVerifier) Verify(ctx context.Context, n Node, prefix netip.Prefix, expectedPorts []int) (int, error) {
	dst, err := util.FirstHost(prefix)
	if err != nil {
		return -1, fmt.Errorf("probe destination for %s: %w", prefix, err)
	}
	routerMAC, err := n.RouterMAC(ctx)
	if err != nil {
		return -1, err
	}
	ports := v.Dataplane.Ports()
	if len(ports) == 0 {
		return -1, fmt.Errorf("dataplane has no ports")
	}
	srcMAC, err := v.Dataplane.MAC(ports[0])
	if err != nil {
		return -1, err
	}

	frame, err := dataplane.NewTCPProbe(routerMAC, srcMAC, dst).Serialize()
	if err != nil {
		return -1, err
	}
	mask, err := dataplane.ProbeMask(frame)
	if err != nil {
		return -1, err
	}

	if len(v.Upstream) == 0 {
		return -1, fmt.Errorf("no upstream ports")
	}
	ingress := v.Upstream[v.Rand.IntN(len(v.Upstream))]
	log := util.WithPrefix(prefix.String())
	log.Infof("sending %s on port %d, expecting one of %v", dataplane.Describe(frame), ingress, expectedPorts)

	v.Dataplane.Flush()
	if err := v.Dataplane.Send(ingress, frame); err != nil {
		return -1, fmt.Errorf("sending probe on port %d: %w", ingress, err)
	}
	port, err := dataplane.VerifyAnyPort(ctx, v.Dataplane, mask, expectedPorts, v.Options)
	var me *dataplane.MatchError
	if errors.As(err, &me) {
		return -1, &util.AssertionMismatchError{
			Phase:    "traffic",
			Prefix:   prefix.String(),
			Expected: fmt.Sprintf("probe to %s forwarded to exactly one of ports %v", dst, expectedPorts),
			Observed: me.Error(),
		}
	}
	if err != nil {
		return -1, err
	}
	log.Infof("probe received on port %d", port)
	return port, nil
}

// RefreshNeighbors pings every next hop once from n so the switch has fresh
// neighbor entries before traffic. Failures are ignored.
func RefreshNeighbors(ctx context.Context, n Node, nextHops []netip.Addr) {
	for _, nh := range nextHops {
		if _, err := n.Exec(ctx, fmt.Sprintf("timeout 1 ping -c 1 -w 1 %s", nh)); err != nil {
			util.WithDevice(n.Name()).Debugf("ping %s: %v", nh, err)
		}
	}
}
