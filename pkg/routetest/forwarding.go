package routetest

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/newtron-network/routecheck/pkg/util"
)

// RouteShowCommand returns the kernel route lookup for prefix:
//
//	1.1.1.0/24 proto 196 metric 20
//	       nexthop via 192.168.0.2 dev Vlan1000 weight 1
//	       nexthop via 192.168.0.3 dev Vlan1000 weight 1
func RouteShowCommand(prefix netip.Prefix, f util.Family) string {
	if f.IsV6() {
		return fmt.Sprintf("ip -6 route show %s", prefix)
	}
	return fmt.Sprintf("ip route show %s", prefix)
}

// CheckForwarding reads the kernel route for prefix once and reports
// Satisfied when every expected next hop appears in some output line.
// The output is returned for failure reports.
func CheckForwarding(ctx context.Context, n Node, prefix netip.Prefix, expected []netip.Addr, f util.Family) (Outcome, string, error) {
	output, err := n.Exec(ctx, RouteShowCommand(prefix, f))
	if err != nil {
		return Unsatisfied, output, fmt.Errorf("reading route %s on %s: %w", prefix, n.Name(), err)
	}
	lines := strings.Split(output, "\n")
	for _, nh := range expected {
		if !util.ContainsAny(lines, nh.String()) {
			util.WithDevice(n.Name()).Debugf("route %s: next hop %s missing", prefix, nh)
			return Unsatisfied, output, nil
		}
	}
	return Satisfied, output, nil
}
