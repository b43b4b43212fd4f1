package routetest

import (
	"fmt"
	"net/netip"

	"github.com/newtron-network/routecheck/pkg/topology"
	"github.com/newtron-network/routecheck/pkg/util"
)

// RouteSpec is the static route injected by one test case.
type RouteSpec struct {
	Prefix   netip.Prefix
	NextHops []netip.Addr
	// PrefixLen is the length of the subnet the next hops live in.
	PrefixLen int
	Family    util.Family
}

// NewRouteSpec builds the route for prefix through the selected next hops.
func NewRouteSpec(prefix netip.Prefix, sel *topology.Selection) RouteSpec {
	return RouteSpec{
		Prefix:    prefix.Masked(),
		NextHops:  sel.Addresses(),
		PrefixLen: sel.PrefixLen,
		Family:    util.FamilyOf(prefix.Addr()),
	}
}

// Validate checks that the route has next hops and that every address is in
// the route's family.
func (r RouteSpec) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(r.Prefix.IsValid(), "prefix is not set")
	v.Add(len(r.NextHops) > 0, "at least one next hop is required")
	if r.Prefix.IsValid() && util.FamilyOf(r.Prefix.Addr()) != r.Family {
		v.AddErrorf("prefix %s is not %s", r.Prefix, r.Family)
	}
	for _, nh := range r.NextHops {
		if util.FamilyOf(nh) != r.Family {
			v.AddErrorf("next hop %s is not %s", nh, r.Family)
		}
	}
	return v.Build()
}

// NextHopField renders the CONFIG_DB nexthop field value.
func (r RouteSpec) NextHopField() string {
	return util.JoinAddrs(r.NextHops)
}

func (r RouteSpec) String() string {
	return fmt.Sprintf("%s via %s", r.Prefix, r.NextHopField())
}
