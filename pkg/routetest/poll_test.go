package routetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPoll_SatisfiedImmediately(t *testing.T) {
	res, err := Poll(context.Background(), fastPolicy(), func(ctx context.Context) (bool, string, error) {
		return true, "ok", nil
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Outcome != Satisfied {
		t.Errorf("Outcome = %s, want %s", res.Outcome, Satisfied)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.LastObserved != "ok" {
		t.Errorf("LastObserved = %q, want %q", res.LastObserved, "ok")
	}
}

func TestPoll_SatisfiedAfterRetries(t *testing.T) {
	calls := 0
	policy := RetryPolicy{Interval: time.Millisecond, MaxWait: time.Second}
	res, err := Poll(context.Background(), policy, func(ctx context.Context) (bool, string, error) {
		calls++
		return calls == 3, fmt.Sprintf("call %d", calls), nil
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Outcome != Satisfied || res.Attempts != 3 {
		t.Errorf("got %s after %d attempts, want satisfied after 3", res.Outcome, res.Attempts)
	}
}

func TestPoll_TimesOut(t *testing.T) {
	policy := RetryPolicy{Interval: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond}
	res, err := Poll(context.Background(), policy, func(ctx context.Context) (bool, string, error) {
		return false, "still waiting", nil
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Outcome != TimedOut {
		t.Errorf("Outcome = %s, want %s", res.Outcome, TimedOut)
	}
	if res.LastObserved != "still waiting" {
		t.Errorf("LastObserved = %q", res.LastObserved)
	}
	if res.Elapsed < policy.MaxWait {
		t.Errorf("Elapsed = %s, want at least %s", res.Elapsed, policy.MaxWait)
	}
	if res.Attempts < 2 {
		t.Errorf("Attempts = %d, want an attempt at the deadline too", res.Attempts)
	}
}

func TestPoll_ZeroBudgetEvaluatesOnce(t *testing.T) {
	calls := 0
	res, err := Poll(context.Background(), RetryPolicy{}, func(ctx context.Context) (bool, string, error) {
		calls++
		return false, "", nil
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Outcome != TimedOut || calls != 1 {
		t.Errorf("got %s after %d calls, want timed out after 1", res.Outcome, calls)
	}
}

func TestPoll_PredicateError(t *testing.T) {
	boom := errors.New("boom")
	res, err := Poll(context.Background(), fastPolicy(), func(ctx context.Context) (bool, string, error) {
		return false, "", boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if res.Outcome != Unknown {
		t.Errorf("Outcome = %s, want %s", res.Outcome, Unknown)
	}
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Interval: time.Hour, MaxWait: time.Hour}
	res, err := Poll(ctx, policy, func(ctx context.Context) (bool, string, error) {
		cancel()
		return false, "", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if res.Outcome == Satisfied {
		t.Error("cancelled poll reported satisfied")
	}
}

func TestOutcomeString(t *testing.T) {
	tests := map[Outcome]string{
		Unknown:     "unknown",
		Satisfied:   "satisfied",
		Unsatisfied: "unsatisfied",
		TimedOut:    "timed out",
		Outcome(9):  "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}
