package routetest

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/newtron-network/routecheck/pkg/util"
)

// StaticRouteTable is the CONFIG_DB table static routes are written to.
const StaticRouteTable = "STATIC_ROUTE"

// Apply writes STATIC_ROUTE|<prefix> with the comma-joined next hops. The
// routing daemon picks the entry up asynchronously.
func Apply(ctx context.Context, n Node, r RouteSpec) error {
	if err := r.Validate(); err != nil {
		return err
	}
	fields := map[string]string{"nexthop": r.NextHopField()}
	if err := n.SetEntry(ctx, StaticRouteTable, r.Prefix.String(), fields); err != nil {
		return fmt.Errorf("writing %s|%s on %s: %w", StaticRouteTable, r.Prefix, n.Name(), err)
	}
	util.WithDevice(n.Name()).Infof("applied static route %s", r)
	return nil
}

// Rollback deletes STATIC_ROUTE|<prefix>. Deleting an absent route is not an
// error, so Rollback may be called any number of times.
func Rollback(ctx context.Context, n Node, prefix netip.Prefix) error {
	if err := n.DeleteEntry(ctx, StaticRouteTable, prefix.String()); err != nil {
		return fmt.Errorf("deleting %s|%s on %s: %w", StaticRouteTable, prefix, n.Name(), err)
	}
	util.WithDevice(n.Name()).Infof("removed static route %s", prefix)
	return nil
}

// ApplyPair applies r on the primary and then the secondary. Before each
// write, the matching Rollback is registered in plan, so every node a write
// was attempted on is cleaned up.
func ApplyPair(ctx context.Context, pair NodePair, r RouteSpec, plan *CleanupPlan) error {
	return pair.Each(func(n Node) error {
		plan.Defer(fmt.Sprintf("remove static route %s on %s", r.Prefix, n.Name()), func(ctx context.Context) error {
			return Rollback(ctx, n, r.Prefix)
		})
		return Apply(ctx, n, r)
	})
}
