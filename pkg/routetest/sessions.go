package routetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const established = "Established"

// WaitSessionsUp polls until every configured BGP session of n is
// Established.
func WaitSessionsUp(ctx context.Context, n Node, policy RetryPolicy) (PollResult, error) {
	return Poll(ctx, policy, func(ctx context.Context) (bool, string, error) {
		states, err := n.BGPSessionStates(ctx)
		if err != nil {
			// bgpcfgd and redis may still be restarting after a reload.
			return false, fmt.Sprintf("BGP state unavailable: %v", err), nil
		}
		var down []string
		for neighbor, state := range states {
			if state != established {
				if state == "" {
					state = "unknown"
				}
				down = append(down, neighbor+": "+state)
			}
		}
		if len(down) > 0 {
			sort.Strings(down)
			return false, "BGP not converged: " + strings.Join(down, "; "), nil
		}
		return true, fmt.Sprintf("%d BGP sessions %s", len(states), established), nil
	})
}
