package routetest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"strings"
	"time"

	"github.com/newtron-network/routecheck/pkg/topology"
	"github.com/newtron-network/routecheck/pkg/util"
)

// Case is one static-route test case.
type Case struct {
	Name   string
	Prefix netip.Prefix
	// Count is the number of next hops requested; it is clamped to what the
	// topology offers.
	Count        int
	ConfigReload bool
}

// Family returns the address family of the case's prefix.
func (c Case) Family() util.Family {
	return util.FamilyOf(c.Prefix.Addr())
}

// Validate checks the case definition.
func (c Case) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(c.Name != "", "case name is required")
	v.Add(c.Prefix.IsValid(), fmt.Sprintf("case %q: prefix is required", c.Name))
	v.Add(c.Count > 0, fmt.Sprintf("case %q: count must be positive", c.Name))
	return v.Build()
}

// DefaultCases are run when a testbed defines none.
func DefaultCases() []Case {
	return []Case{
		{Name: "static_route", Prefix: netip.MustParsePrefix("1.1.1.0/24"), Count: 1},
		{Name: "static_route_ecmp", Prefix: netip.MustParsePrefix("2.2.2.0/24"), Count: 3, ConfigReload: true},
		{Name: "static_route_ipv6", Prefix: netip.MustParsePrefix("2000:1::/64"), Count: 1},
		{Name: "static_route_ecmp_ipv6", Prefix: netip.MustParsePrefix("2000:2::/64"), Count: 3, ConfigReload: true},
	}
}

// HostBinder places next-hop addresses on traffic-host interfaces so the
// switch can resolve them. *hostbind.Binder implements it.
type HostBinder interface {
	Bind(iface string, addr netip.Addr, prefixLen int) error
	Unbind(iface string, addr netip.Addr, prefixLen int) error
}

// Orchestrator runs test cases against one testbed.
type Orchestrator struct {
	Pair      NodePair
	Topology  *topology.TestTopology
	Dataplane Dataplane
	// Binder is optional; without it next hops must already answer ARP/NDP.
	Binder HostBinder
	// UpstreamMap maps a topology type to the neighbor role traffic enters
	// from.
	UpstreamMap  map[string]string
	FlowCounters bool
	Timing       Timing
	Rand         *rand.Rand
	Progress     ProgressReporter
}

// Phase names, in execution order.
const (
	PhasePreconditions  = "preconditions"
	PhaseSetup          = "setup"
	PhaseInstall        = "install"
	PhaseForwarding     = "forwarding"
	PhaseTraffic        = "traffic"
	PhaseRedistribution = "redistribution"
	PhasePersistence    = "persistence"
	PhaseCleanup        = "cleanup"
)

// RunAll runs cases in order and reports progress.
func (o *Orchestrator) RunAll(ctx context.Context, cases []Case) []*CaseResult {
	progress := o.progress()
	start := time.Now()
	progress.SuiteStart(o.Topology.Name, cases)

	results := make([]*CaseResult, 0, len(cases))
	for i, c := range cases {
		if ctx.Err() != nil {
			break
		}
		progress.CaseStart(c.Name, i, len(cases))
		r := o.Run(ctx, c)
		progress.CaseEnd(r, i, len(cases))
		results = append(results, r)
	}
	progress.SuiteEnd(results, time.Since(start))
	return results
}

func (o *Orchestrator) progress() ProgressReporter {
	if o.Progress == nil {
		return nopProgress{}
	}
	return o.Progress
}

// Run executes one case. Everything it injects is rolled back before it
// returns, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, c Case) *CaseResult {
	start := time.Now()
	r := &CaseResult{
		Name:     c.Name,
		Prefix:   c.Prefix.String(),
		Topology: o.Topology.Name,
		Platform: o.Pair.Primary.Platform(),
	}
	err := o.run(ctx, c, r)
	r.finish(err, time.Since(start))

	log := util.WithPhase(c.Name, "result")
	if err != nil {
		log.Warnf("%s: %v", r.Status, err)
	} else {
		log.Infof("%s (%s)", r.Status, r.Duration.Round(time.Second))
	}
	return r
}

// run returns the first failure; a cleanup check failure is returned only
// when nothing failed earlier.
func (o *Orchestrator) run(ctx context.Context, c Case, r *CaseResult) (err error) {
	var (
		sel      *topology.Selection
		upstream []int
	)
	err = r.phase(c.Name, PhasePreconditions, func() error {
		var perr error
		sel, upstream, perr = o.preconditions(ctx, c)
		return perr
	})
	if err != nil {
		return err
	}

	route := NewRouteSpec(c.Prefix, sel)
	plan := &CleanupPlan{}
	defer func() {
		cerr := r.phase(c.Name, PhaseCleanup, func() error {
			return plan.Execute(context.WithoutCancel(ctx))
		})
		if err == nil {
			err = cerr
		}
	}()

	if err = r.phase(c.Name, PhaseSetup, func() error { return o.setup(ctx, c, sel, plan) }); err != nil {
		return err
	}
	if err = r.phase(c.Name, PhaseInstall, func() error { return ApplyPair(ctx, o.Pair, route, plan) }); err != nil {
		return err
	}
	if err = r.phase(c.Name, PhaseForwarding, func() error { return o.verifyForwarding(ctx, route) }); err != nil {
		return err
	}
	traffic := &TrafficVerifier{Dataplane: o.Dataplane, Upstream: upstream, Rand: o.Rand, Options: o.Timing.Traffic}
	if err = r.phase(c.Name, PhaseTraffic, func() error { return o.verifyTraffic(ctx, traffic, route, sel) }); err != nil {
		return err
	}
	if err = r.phase(c.Name, PhaseRedistribution, func() error {
		return VerifyRedistribution(ctx, o.Pair.Primary, route.Prefix, route.Family, false, o.Timing.Redistribution)
	}); err != nil {
		return err
	}
	if !c.ConfigReload {
		return nil
	}
	return r.phase(c.Name, PhasePersistence, func() error {
		cycle := NewPersistenceCycle(o.Pair, route.Prefix, o.Timing)
		return cycle.Run(ctx, func(ctx context.Context) error {
			if err := o.verifyForwarding(ctx, route); err != nil {
				return err
			}
			if err := o.verifyTraffic(ctx, traffic, route, sel); err != nil {
				return err
			}
			return VerifyRedistribution(ctx, o.Pair.Primary, route.Prefix, route.Family, false, o.Timing.Redistribution)
		})
	})
}

// preconditions resolves everything the case needs without touching the
// switch state.
func (o *Orchestrator) preconditions(ctx context.Context, c Case) (*topology.Selection, []int, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if !o.Topology.IsSupported() {
		return nil, nil, util.NewKindedPreconditionError(util.ErrUnsupportedTopology,
			"run", o.Topology.Name, fmt.Sprintf("topology type %q is not one of %v", o.Topology.Type, topology.SupportedTypes))
	}
	if o.Topology.IsDualNode() != o.Pair.IsDualNode() {
		return nil, nil, util.NewPreconditionError("run", o.Topology.Name, "node pair matches topology",
			fmt.Sprintf("dual-node topology=%v, secondary node configured=%v", o.Topology.IsDualNode(), o.Pair.IsDualNode()))
	}
	upstream, err := UpstreamPorts(o.Topology, o.UpstreamMap)
	if err != nil {
		return nil, nil, err
	}
	sel, err := topology.Select(o.Topology, c.Family(), c.Count, o.Rand)
	if err != nil {
		return nil, nil, err
	}
	if len(sel.Bindings) < c.Count {
		util.WithPhase(c.Name, PhasePreconditions).Warnf("requested %d next hops, topology offers %d", c.Count, len(sel.Bindings))
	}
	if _, err := EligiblePeers(ctx, o.Pair.Primary, c.Family()); err != nil {
		return nil, nil, err
	}
	return sel, upstream, nil
}

// setup registers the case-wide compensations and binds the next hops on
// the traffic host. Cleanup runs them in reverse: host addresses, the
// withdrawal check, neighbor caches, and finally the config save.
func (o *Orchestrator) setup(ctx context.Context, c Case, sel *topology.Selection, plan *CleanupPlan) error {
	log := util.WithPhase(c.Name, PhaseSetup)
	prefix := c.Prefix.Masked()

	if c.ConfigReload {
		plan.Defer("save config on all nodes", func(ctx context.Context) error {
			var errs []error
			for _, n := range o.Pair.Nodes() {
				errs = append(errs, SaveConfig(ctx, n))
			}
			return errors.Join(errs...)
		})
	}

	plan.Defer("clear neighbor caches", func(ctx context.Context) error {
		return o.clearNeighbors(ctx)
	})
	if err := o.clearNeighbors(ctx); err != nil {
		return err
	}

	plan.DeferCheck("verify route withdrawn", func(ctx context.Context) error {
		if err := sleep(ctx, o.Timing.Settle); err != nil {
			return err
		}
		return VerifyRedistribution(ctx, o.Pair.Primary, prefix, c.Family(), true, o.Timing.Redistribution)
	})

	if o.Binder == nil || o.Topology.IsDualNode() {
		// Mux servers already own their addresses.
		log.Debug("next-hop addresses are not bound on the traffic host")
		return nil
	}
	for _, b := range sel.Bindings {
		plan.Defer(fmt.Sprintf("unbind %s from %s", b.Address, b.InterfaceName), func(ctx context.Context) error {
			return o.Binder.Unbind(b.InterfaceName, b.Address, sel.PrefixLen)
		})
		if err := o.Binder.Bind(b.InterfaceName, b.Address, sel.PrefixLen); err != nil {
			return err
		}
		log.Debugf("bound %s/%d to %s", b.Address, sel.PrefixLen, b.InterfaceName)
	}
	return nil
}

func (o *Orchestrator) clearNeighbors(ctx context.Context) error {
	return o.Pair.Each(func(n Node) error {
		for _, cmd := range []string{"sonic-clear arp", "sonic-clear ndp"} {
			if _, err := n.Exec(ctx, cmd); err != nil {
				return fmt.Errorf("%s on %s: %w", cmd, n.Name(), err)
			}
		}
		return nil
	})
}

// verifyForwarding waits the settle delay and reads the kernel route once.
func (o *Orchestrator) verifyForwarding(ctx context.Context, route RouteSpec) error {
	if err := sleep(ctx, o.Timing.Settle); err != nil {
		return err
	}
	outcome, output, err := CheckForwarding(ctx, o.Pair.Primary, route.Prefix, route.NextHops, route.Family)
	if err != nil {
		return err
	}
	if outcome != Satisfied {
		return &util.AssertionMismatchError{
			Phase:    PhaseForwarding,
			Prefix:   route.Prefix.String(),
			Expected: "next hops " + route.NextHopField(),
			Observed: strings.TrimSpace(output),
		}
	}
	return nil
}

// verifyTraffic refreshes the neighbor entries and sends one probe, inside
// a flow counter scope when the platform supports route flow counters.
func (o *Orchestrator) verifyTraffic(ctx context.Context, v *TrafficVerifier, route RouteSpec, sel *topology.Selection) (err error) {
	primary := o.Pair.Primary
	RefreshNeighbors(ctx, primary, route.NextHops)

	scope, err := BeginFlowCounters(ctx, o.FlowCounters, primary,
		map[string]uint64{route.Prefix.String(): 1}, o.Timing.FlowCounter)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			scope.Abort(ctx)
			return
		}
		err = scope.End(ctx)
	}()

	_, err = v.Verify(ctx, primary, route.Prefix, sel.DeviceIndices())
	return err
}
