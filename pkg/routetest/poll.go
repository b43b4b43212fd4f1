package routetest

import (
	"context"
	"time"

	"github.com/newtron-network/routecheck/pkg/util"
)

// Outcome is the result of a verification: the predicate held, did not
// hold, or never held within the retry budget. The zero value is Unknown,
// which is what a poll aborted by an error reports.
type Outcome int

const (
	Unknown Outcome = iota
	Satisfied
	Unsatisfied
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Satisfied:
		return "satisfied"
	case Unsatisfied:
		return "unsatisfied"
	case TimedOut:
		return "timed out"
	}
	return "unknown"
}

// RetryPolicy bounds a poll loop: the predicate is evaluated every Interval
// until it holds or MaxWait has elapsed.
type RetryPolicy struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// Predicate evaluates eventually-consistent state once. It returns whether
// the state converged and a short description of what was observed. An error
// aborts the poll.
type Predicate func(ctx context.Context) (done bool, observed string, err error)

// PollResult describes how a poll ended.
type PollResult struct {
	Outcome      Outcome
	LastObserved string
	Elapsed      time.Duration
	Attempts     int
}

// Poll evaluates fn immediately and then every policy.Interval until it
// reports done (Satisfied) or policy.MaxWait has elapsed (TimedOut). The last
// attempt happens at the deadline. The first success wins. Cancelling ctx
// ends the loop with ctx's error.
func Poll(ctx context.Context, policy RetryPolicy, fn Predicate) (PollResult, error) {
	start := time.Now()
	deadline := start.Add(policy.MaxWait)
	var res PollResult

	for {
		done, observed, err := fn(ctx)
		res.Attempts++
		res.LastObserved = observed
		res.Elapsed = time.Since(start)
		if err != nil {
			return res, err
		}
		if done {
			res.Outcome = Satisfied
			return res, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			res.Outcome = TimedOut
			res.Elapsed = time.Since(start)
			return res, nil
		}
		wait := min(policy.Interval, remaining)
		if wait <= 0 {
			wait = remaining
		}
		util.Debugf("poll attempt %d: %s (next in %s)", res.Attempts, observed, wait)

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
