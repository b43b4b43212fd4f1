package routetest

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/newtron-network/routecheck/pkg/util"
)

// NonProductionPeerMarker marks BGP peers owned by the test harness (PTF
// injected peers); they never receive redistributed routes.
const NonProductionPeerMarker = "PT0"

// BGPSummaryCommand returns the BGP summary command for family.
func BGPSummaryCommand(f util.Family) string {
	if f.IsV6() {
		return "show ipv6 bgp summary"
	}
	return "show ip bgp summary"
}

// AdvertisedRoutesCommand returns the command listing routes advertised to peer.
func AdvertisedRoutesCommand(f util.Family, peer string) string {
	if f.IsV6() {
		return fmt.Sprintf("show ipv6 bgp neighbor %s advertised-routes", peer)
	}
	return fmt.Sprintf("show ip bgp neighbor %s advertised-routes", peer)
}

// EligiblePeers lists the BGP peers of family from the summary table,
// excluding harness peers. It fails with ErrNoEligiblePeers when none remain.
func EligiblePeers(ctx context.Context, n Node, f util.Family) ([]string, error) {
	output, err := n.Exec(ctx, BGPSummaryCommand(f))
	if err != nil {
		return nil, fmt.Errorf("reading BGP summary on %s: %w", n.Name(), err)
	}

	var peers []string
	for _, row := range util.ParseShowTable(output) {
		// SONiC spells the column "Neighbhor".
		addr := firstField(row, "neighbhor", "neighbor")
		if addr == "" {
			continue
		}
		if strings.Contains(firstField(row, "neighborname", "name"), NonProductionPeerMarker) {
			continue
		}
		peers = append(peers, addr)
	}
	if len(peers) == 0 {
		return nil, util.NewKindedPreconditionError(util.ErrNoEligiblePeers,
			"check-redistribution", n.Name(), fmt.Sprintf("no %s peers left after excluding %s", f, NonProductionPeerMarker))
	}
	return peers, nil
}

func firstField(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			return v
		}
	}
	return ""
}

// PollRedistribution polls until every eligible peer agrees with
// expectRemoved: prefix absent from all advertisements when true, present in
// all when false.
func PollRedistribution(ctx context.Context, n Node, prefix netip.Prefix, f util.Family, expectRemoved bool, policy RetryPolicy) (PollResult, error) {
	peers, err := EligiblePeers(ctx, n, f)
	if err != nil {
		return PollResult{}, err
	}
	want := prefix.String()
	log := util.WithPrefix(want).WithField("device", n.Name())

	return Poll(ctx, policy, func(ctx context.Context) (bool, string, error) {
		for _, peer := range peers {
			adv, err := n.Exec(ctx, AdvertisedRoutesCommand(f, peer))
			if err != nil {
				return false, "", fmt.Errorf("reading routes advertised to %s: %w", peer, err)
			}
			advertised := strings.Contains(adv, want)
			if expectRemoved && advertised {
				msg := fmt.Sprintf("%s still advertised to %s", want, peer)
				log.Info(msg)
				return false, msg, nil
			}
			if !expectRemoved && !advertised {
				msg := fmt.Sprintf("%s not advertised to %s", want, peer)
				log.Info(msg)
				return false, msg, nil
			}
		}
		if expectRemoved {
			return true, fmt.Sprintf("withdrawn from %d peers", len(peers)), nil
		}
		return true, fmt.Sprintf("advertised to %d peers", len(peers)), nil
	})
}

// VerifyRedistribution runs PollRedistribution and turns a timeout into a
// ConvergenceTimeoutError naming the prefix and the expectation.
func VerifyRedistribution(ctx context.Context, n Node, prefix netip.Prefix, f util.Family, expectRemoved bool, policy RetryPolicy) error {
	res, err := PollRedistribution(ctx, n, prefix, f, expectRemoved, policy)
	if err != nil {
		return err
	}
	if res.Outcome != Satisfied {
		return timeoutError("redistribution", prefix.String(),
			fmt.Sprintf("advertisement state removed=%v on all neighbors", expectRemoved), res, policy)
	}
	return nil
}
