package routetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Role is the mux role of a node on a dual-node testbed.
type Role string

const (
	RoleActive  Role = "active"
	RoleStandby Role = "standby"
)

// SetRole forces every mux port of n into role.
func SetRole(ctx context.Context, n Node, role Role) error {
	if _, err := n.Exec(ctx, fmt.Sprintf("sudo config mux mode %s all", role)); err != nil {
		return fmt.Errorf("setting mux mode %s on %s: %w", role, n.Name(), err)
	}
	return nil
}

// WaitRole polls until every mux port of n reports role.
func WaitRole(ctx context.Context, n Node, role Role, policy RetryPolicy) (PollResult, error) {
	return Poll(ctx, policy, func(ctx context.Context) (bool, string, error) {
		states, err := n.MuxStates(ctx)
		if err != nil {
			return false, fmt.Sprintf("mux state unavailable: %v", err), nil
		}
		if len(states) == 0 {
			return false, "no mux ports reported", nil
		}
		var off []string
		for port, state := range states {
			if state != string(role) {
				off = append(off, port+"="+state)
			}
		}
		if len(off) > 0 {
			sort.Strings(off)
			return false, fmt.Sprintf("%s: ports not %s: %s", n.Name(), role, strings.Join(off, ", ")), nil
		}
		return true, fmt.Sprintf("%s: %d ports %s", n.Name(), len(states), role), nil
	})
}
