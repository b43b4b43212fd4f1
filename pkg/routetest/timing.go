package routetest

import (
	"time"

	"github.com/newtron-network/routecheck/pkg/dataplane"
)

// Timing holds every delay and retry budget of a test case.
type Timing struct {
	// Settle is the fixed wait after writing or removing the route before
	// the kernel route and advertisements are inspected.
	Settle         time.Duration
	Redistribution RetryPolicy
	SessionsUp     RetryPolicy
	Role           RetryPolicy
	FlowCounter    RetryPolicy
	// ServicesInterval is the poll interval while waiting for a reload.
	ServicesInterval time.Duration
	// ReloadBudget bounds a config reload unless the platform has its own
	// entry in PlatformReloadBudgets.
	ReloadBudget          time.Duration
	PlatformReloadBudgets map[string]time.Duration
	Traffic               dataplane.VerifyOptions
}

// DefaultTiming returns the budgets used against real switches.
func DefaultTiming() Timing {
	return Timing{
		Settle:           5 * time.Second,
		Redistribution:   RetryPolicy{Interval: 15 * time.Second, MaxWait: 60 * time.Second},
		SessionsUp:       RetryPolicy{Interval: 10 * time.Second, MaxWait: 300 * time.Second},
		Role:             RetryPolicy{Interval: 5 * time.Second, MaxWait: 60 * time.Second},
		FlowCounter:      RetryPolicy{Interval: 2 * time.Second, MaxWait: 30 * time.Second},
		ServicesInterval: 10 * time.Second,
		ReloadBudget:     450 * time.Second,
		PlatformReloadBudgets: map[string]time.Duration{
			"x86_64-cel_e1031-r0": 500 * time.Second,
		},
		Traffic: dataplane.DefaultVerifyOptions,
	}
}

// ReloadPolicy returns the reload wait policy for platform.
func (t Timing) ReloadPolicy(platform string) RetryPolicy {
	budget := t.ReloadBudget
	if b, ok := t.PlatformReloadBudgets[platform]; ok {
		budget = b
	}
	return RetryPolicy{Interval: t.ServicesInterval, MaxWait: budget}
}
