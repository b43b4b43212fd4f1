package routetest

import (
	"errors"
	"fmt"

	"github.com/newtron-network/routecheck/pkg/util"
)

// PhaseError attributes a failure to the orchestration phase it occurred in.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// InfraError is a failure to reach the testbed (connect, SSH, dataplane)
// before any case ran.
type InfraError struct {
	Op     string // "connect", "dataplane", "load"
	Device string // device name, or "" for testbed-level failures
	Err    error
}

func (e *InfraError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("routecheck: %s %s: %v", e.Op, e.Device, e.Err)
	}
	return fmt.Sprintf("routecheck: %s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error {
	return e.Err
}

// IsAssertionFailure reports whether err is a verification failure (the
// device did not converge or did not forward as expected) rather than an
// infrastructure problem.
func IsAssertionFailure(err error) bool {
	return errors.Is(err, util.ErrConvergenceTimeout) || errors.Is(err, util.ErrAssertionMismatch)
}

func timeoutError(phase, prefix string, expected string, res PollResult, policy RetryPolicy) error {
	return &util.ConvergenceTimeoutError{
		Phase:        phase,
		Prefix:       prefix,
		Expected:     expected,
		LastObserved: res.LastObserved,
		Elapsed:      res.Elapsed,
		Budget:       policy.MaxWait,
	}
}
