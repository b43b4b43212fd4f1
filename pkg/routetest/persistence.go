package routetest

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/newtron-network/routecheck/pkg/util"
)

// PersistenceState is a step of the save/reload cycle.
type PersistenceState int

const (
	StateIdle PersistenceState = iota
	StateSaved
	StateReloading
	StateRoleConverged
	StateSessionsUp
	StateReverified
)

func (s PersistenceState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSaved:
		return "Saved"
	case StateReloading:
		return "Reloading"
	case StateRoleConverged:
		return "RoleConverged"
	case StateSessionsUp:
		return "SessionsUp"
	case StateReverified:
		return "Reverified"
	}
	return fmt.Sprintf("PersistenceState(%d)", int(s))
}

// CriticalServices must all be active before a reloaded switch is usable.
var CriticalServices = []string{"swss", "syncd", "bgp"}

// SaveConfig persists the running configuration of n.
func SaveConfig(ctx context.Context, n Node) error {
	if _, err := n.Exec(ctx, "sudo config save -y"); err != nil {
		return fmt.Errorf("config save on %s: %w", n.Name(), err)
	}
	util.WithDevice(n.Name()).Info("config saved")
	return nil
}

// PersistenceCycle saves and reloads the primary's configuration, re-asserts
// mux roles on dual-node testbeds, waits for BGP, and re-runs verification:
//
//	Idle -> Saved -> Reloading -> RoleConverged -> SessionsUp -> Reverified -> Idle
//
// A failed step leaves the cycle in the last state reached; it is terminal
// for the test case.
type PersistenceCycle struct {
	Pair   NodePair
	Prefix netip.Prefix
	Timing Timing

	state   PersistenceState
	history []PersistenceState
}

// NewPersistenceCycle creates an idle cycle.
func NewPersistenceCycle(pair NodePair, prefix netip.Prefix, timing Timing) *PersistenceCycle {
	return &PersistenceCycle{
		Pair:    pair,
		Prefix:  prefix,
		Timing:  timing,
		state:   StateIdle,
		history: []PersistenceState{StateIdle},
	}
}

// State returns the current state.
func (c *PersistenceCycle) State() PersistenceState {
	return c.state
}

// History returns every state entered, starting with Idle.
func (c *PersistenceCycle) History() []PersistenceState {
	return append([]PersistenceState(nil), c.history...)
}

func (c *PersistenceCycle) enter(s PersistenceState) {
	util.WithPrefix(c.Prefix.String()).Debugf("persistence: %s -> %s", c.state, s)
	c.state = s
	c.history = append(c.history, s)
}

// Run drives the cycle; reverify is the verification pass run once the
// switch is back.
func (c *PersistenceCycle) Run(ctx context.Context, reverify func(ctx context.Context) error) error {
	if c.state != StateIdle {
		return fmt.Errorf("persistence cycle is in state %s, want Idle", c.state)
	}
	primary := c.Pair.Primary

	if err := SaveConfig(ctx, primary); err != nil {
		return err
	}
	c.enter(StateSaved)

	if err := c.reload(ctx, primary); err != nil {
		return err
	}

	if c.Pair.IsDualNode() {
		// A reload can flip the active/standby roles.
		if err := c.reassertRoles(ctx); err != nil {
			return err
		}
	}
	c.enter(StateRoleConverged)

	res, err := WaitSessionsUp(ctx, primary, c.Timing.SessionsUp)
	if err != nil {
		return err
	}
	if res.Outcome != Satisfied {
		return timeoutError("bgp-sessions", c.Prefix.String(), "all BGP sessions Established", res, c.Timing.SessionsUp)
	}
	c.enter(StateSessionsUp)

	if err := reverify(ctx); err != nil {
		return err
	}
	c.enter(StateReverified)
	c.enter(StateIdle)
	return nil
}

func (c *PersistenceCycle) reload(ctx context.Context, n Node) error {
	policy := c.Timing.ReloadPolicy(n.Platform())
	util.WithDevice(n.Name()).Infof("config reload (budget %s)", policy.MaxWait)
	if _, err := n.Exec(ctx, "sudo config reload -y"); err != nil {
		return fmt.Errorf("config reload on %s: %w", n.Name(), err)
	}
	c.enter(StateReloading)

	cmd := "systemctl is-active " + strings.Join(CriticalServices, " ")
	res, err := Poll(ctx, policy, func(ctx context.Context) (bool, string, error) {
		out, err := n.Exec(ctx, cmd)
		states := strings.Fields(out)
		if err == nil && len(states) == len(CriticalServices) && allEqual(states, "active") {
			return true, "critical services active", nil
		}
		return false, fmt.Sprintf("services %v: %s", CriticalServices, strings.Join(states, " ")), nil
	})
	if err != nil {
		return err
	}
	if res.Outcome != Satisfied {
		return timeoutError("config-reload", c.Prefix.String(), "critical services active", res, policy)
	}
	return nil
}

func (c *PersistenceCycle) reassertRoles(ctx context.Context) error {
	roles := []struct {
		node Node
		role Role
	}{
		{c.Pair.Primary, RoleActive},
		{c.Pair.Secondary, RoleStandby},
	}
	for _, r := range roles {
		if err := SetRole(ctx, r.node, r.role); err != nil {
			return err
		}
	}
	for _, r := range roles {
		res, err := WaitRole(ctx, r.node, r.role, c.Timing.Role)
		if err != nil {
			return err
		}
		if res.Outcome != Satisfied {
			return timeoutError("mux-role", c.Prefix.String(),
				fmt.Sprintf("%s %s on all ports", r.node.Name(), r.role), res, c.Timing.Role)
		}
	}
	return nil
}

func allEqual(values []string, want string) bool {
	for _, v := range values {
		if v != want {
			return false
		}
	}
	return true
}
