package routetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/newtron-network/routecheck/pkg/util"
)

// FlowCounterScope measures route flow counters around a traffic phase. Begin
// binds a counter to each prefix and snapshots it; End asserts the packet
// delta and unbinds the counters. Exactly one of End or Abort takes effect.
type FlowCounterScope struct {
	node     Node
	expected map[string]uint64
	before   map[string]uint64
	bound    []string
	policy   RetryPolicy

	once sync.Once
	err  error
}

// BeginFlowCounters starts a scope on n expecting expected[prefix] packets per
// prefix. When disabled, the returned scope does nothing.
func BeginFlowCounters(ctx context.Context, enabled bool, n Node, expected map[string]uint64, policy RetryPolicy) (*FlowCounterScope, error) {
	s := &FlowCounterScope{node: n, expected: expected, before: map[string]uint64{}, policy: policy}
	if !enabled {
		s.once.Do(func() {})
		return s, nil
	}

	prefixes := make([]string, 0, len(expected))
	for p := range expected {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	for _, p := range prefixes {
		if _, err := n.Exec(ctx, fmt.Sprintf("sudo config flowcnt-route pattern add %s", p)); err != nil {
			s.unbind(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("binding route flow counter %s on %s: %w", p, n.Name(), err)
		}
		s.bound = append(s.bound, p)
	}

	for _, p := range prefixes {
		var count uint64
		res, err := Poll(ctx, policy, func(ctx context.Context) (bool, string, error) {
			c, err := n.RoutePackets(ctx, p)
			if errors.Is(err, util.ErrNoRouteCounter) {
				return false, "counter not created yet", nil
			}
			if err != nil {
				return false, "", err
			}
			count = c
			return true, fmt.Sprintf("%d packets", c), nil
		})
		if err == nil && res.Outcome != Satisfied {
			err = timeoutError("flow-counter", p, "route flow counter bound", res, policy)
		}
		if err != nil {
			s.unbind(context.WithoutCancel(ctx))
			return nil, err
		}
		s.before[p] = count
	}
	return s, nil
}

// End asserts that every counter grew by exactly its expected packet count
// and unbinds the counters. Counters are published by periodic polling on
// the switch, so the delta is polled within the scope's policy. Later calls
// return the first call's result.
func (s *FlowCounterScope) End(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.verify(ctx)
		s.unbind(context.WithoutCancel(ctx))
	})
	return s.err
}

// Abort unbinds the counters without checking them. It is used when the
// traffic phase failed before the counters could mean anything. It does
// nothing after End.
func (s *FlowCounterScope) Abort(ctx context.Context) {
	s.once.Do(func() {
		s.unbind(context.WithoutCancel(ctx))
	})
}

func (s *FlowCounterScope) verify(ctx context.Context) error {
	for _, p := range s.bound {
		want, before := s.expected[p], s.before[p]
		var (
			delta uint64
			reset bool
			now   uint64
		)
		res, err := Poll(ctx, s.policy, func(ctx context.Context) (bool, string, error) {
			var err error
			now, err = s.node.RoutePackets(ctx, p)
			if err != nil {
				return false, "", err
			}
			if now < before {
				reset = true
				return true, fmt.Sprintf("counter reset from %d to %d", before, now), nil
			}
			delta = now - before
			return delta >= want, fmt.Sprintf("%d packets", delta), nil
		})
		if err != nil {
			return fmt.Errorf("reading route flow counter %s on %s: %w", p, s.node.Name(), err)
		}
		if reset {
			return &util.AssertionMismatchError{
				Phase:    "flow-counter",
				Prefix:   p,
				Expected: fmt.Sprintf("packets=%d", want),
				Observed: fmt.Sprintf("counter reset (before=%d now=%d)", before, now),
			}
		}
		if res.Outcome != Satisfied || delta != want {
			return &util.AssertionMismatchError{
				Phase:    "flow-counter",
				Prefix:   p,
				Expected: fmt.Sprintf("packets=%d", want),
				Observed: fmt.Sprintf("packets=%d", delta),
			}
		}
	}
	return nil
}

func (s *FlowCounterScope) unbind(ctx context.Context) {
	for _, p := range s.bound {
		if _, err := s.node.Exec(ctx, fmt.Sprintf("sudo config flowcnt-route pattern remove %s", p)); err != nil {
			util.WithDevice(s.node.Name()).Warnf("unbinding route flow counter %s: %v", p, err)
		}
	}
	s.bound = nil
}
