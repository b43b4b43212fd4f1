package routetest

import (
	"context"
	"errors"
	"testing"

	"github.com/newtron-network/routecheck/pkg/util"
)

func TestFlowCounterScope_ExactDelta(t *testing.T) {
	ctx := context.Background()
	n := newFakeNode("dut")
	Apply(ctx, n, testRoute("1.1.1.0/24", "192.168.0.2"))

	scope, err := BeginFlowCounters(ctx, true, n, map[string]uint64{"1.1.1.0/24": 1}, fastPolicy())
	if err != nil {
		t.Fatalf("BeginFlowCounters: %v", err)
	}
	if n.ran("sudo config flowcnt-route pattern add 1.1.1.0/24") != 1 {
		t.Errorf("counter not bound: %v", n.commands())
	}
	n.forwarded("1.1.1.0/24")

	if err := scope.End(ctx); err != nil {
		t.Errorf("End: %v", err)
	}
	if n.ran("sudo config flowcnt-route pattern remove 1.1.1.0/24") != 1 {
		t.Errorf("counter not unbound: %v", n.commands())
	}
}

func TestFlowCounterScope_WrongDelta(t *testing.T) {
	tests := []struct {
		name    string
		packets int
		extra   uint64
	}{
		{"no packets", 0, 0},
		{"too many", 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			n := newFakeNode("dut")
			n.extraPackets = tt.extra
			scope, err := BeginFlowCounters(ctx, true, n, map[string]uint64{"2.2.2.0/24": 1}, fastPolicy())
			if err != nil {
				t.Fatalf("BeginFlowCounters: %v", err)
			}
			for i := 0; i < tt.packets; i++ {
				n.forwarded("2.2.2.0/24")
			}
			err = scope.End(ctx)
			var ame *util.AssertionMismatchError
			if !errors.As(err, &ame) {
				t.Fatalf("End = %v, want *util.AssertionMismatchError", err)
			}
			if ame.Expected != "packets=1" {
				t.Errorf("Expected = %q, want %q", ame.Expected, "packets=1")
			}
		})
	}
}

func TestFlowCounterScope_EndOnce(t *testing.T) {
	ctx := context.Background()
	n := newFakeNode("dut")
	scope, err := BeginFlowCounters(ctx, true, n, map[string]uint64{"1.1.1.0/24": 1}, fastPolicy())
	if err != nil {
		t.Fatalf("BeginFlowCounters: %v", err)
	}
	first := scope.End(ctx)
	if first == nil {
		t.Fatal("End without traffic succeeded")
	}
	if second := scope.End(ctx); second != first {
		t.Errorf("second End = %v, want the first result %v", second, first)
	}
	if got := n.ran("sudo config flowcnt-route pattern remove 1.1.1.0/24"); got != 1 {
		t.Errorf("counter unbound %d times, want 1", got)
	}
}

func TestFlowCounterScope_Disabled(t *testing.T) {
	n := newFakeNode("dut")
	scope, err := BeginFlowCounters(context.Background(), false, n, map[string]uint64{"1.1.1.0/24": 1}, fastPolicy())
	if err != nil {
		t.Fatalf("BeginFlowCounters: %v", err)
	}
	if err := scope.End(context.Background()); err != nil {
		t.Errorf("End = %v", err)
	}
	if len(n.commands()) != 0 {
		t.Errorf("disabled scope ran %v", n.commands())
	}
}

func TestFlowCounterScope_BindFailure(t *testing.T) {
	n := newFakeNode("dut")
	n.execErr["sudo config flowcnt-route pattern add 1.1.1.0/24"] = errors.New("not supported")
	_, err := BeginFlowCounters(context.Background(), true, n, map[string]uint64{"1.1.1.0/24": 1}, fastPolicy())
	if err == nil {
		t.Error("BeginFlowCounters succeeded with a failing bind")
	}
}

func TestFlowCounterScope_AbortSkipsDelta(t *testing.T) {
	ctx := context.Background()
	n := newFakeNode("dut")
	scope, err := BeginFlowCounters(ctx, true, n, map[string]uint64{"1.1.1.0/24": 1}, fastPolicy())
	if err != nil {
		t.Fatalf("BeginFlowCounters: %v", err)
	}
	reads := n.routeCounterReads()

	scope.Abort(ctx)
	scope.Abort(ctx)
	if err := scope.End(ctx); err != nil {
		t.Errorf("End after Abort = %v, want nil", err)
	}
	if got := n.routeCounterReads(); got != reads {
		t.Errorf("counter read %d more times after Abort, want 0", got-reads)
	}
	if got := n.ran("sudo config flowcnt-route pattern remove 1.1.1.0/24"); got != 1 {
		t.Errorf("counter unbound %d times, want 1", got)
	}
}

func TestFlowCounterScope_CounterReset(t *testing.T) {
	ctx := context.Background()
	n := newFakeNode("dut")
	Apply(ctx, n, testRoute("1.1.1.0/24", "192.168.0.2"))
	scope, err := BeginFlowCounters(ctx, true, n, map[string]uint64{"1.1.1.0/24": 1}, fastPolicy())
	if err != nil {
		t.Fatalf("BeginFlowCounters: %v", err)
	}
	// The switch restarted its counter poll after the snapshot.
	scope.before["1.1.1.0/24"] = 5
	n.resetCounter("1.1.1.0/24")

	err = scope.End(ctx)
	var ame *util.AssertionMismatchError
	if !errors.As(err, &ame) {
		t.Fatalf("End = %v, want *util.AssertionMismatchError", err)
	}
	if want := "counter reset (before=5 now=0)"; ame.Observed != want {
		t.Errorf("Observed = %q, want %q", ame.Observed, want)
	}
}
