package routetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/newtron-network/routecheck/pkg/util"
)

type cleanupAction struct {
	name  string
	fn    func(ctx context.Context) error
	check bool
}

// CleanupPlan accumulates the compensating actions of a test case as state
// is injected, and runs all of them at scope exit in reverse order.
//
// A failing action never stops the remaining ones. Failures of ordinary
// actions are logged; failures of check actions (final-state verification)
// are returned by Execute.
type CleanupPlan struct {
	mu       sync.Mutex
	actions  []cleanupAction
	executed bool
}

// Defer registers a compensating action.
func (p *CleanupPlan) Defer(name string, fn func(ctx context.Context) error) {
	p.push(cleanupAction{name: name, fn: fn})
}

// DeferCheck registers a final-state check whose failure fails the run.
func (p *CleanupPlan) DeferCheck(name string, fn func(ctx context.Context) error) {
	p.push(cleanupAction{name: name, fn: fn, check: true})
}

func (p *CleanupPlan) push(a cleanupAction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, a)
}

// Len returns the number of registered actions.
func (p *CleanupPlan) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.actions)
}

// Execute runs every action, last registered first. It runs at most once;
// later calls return nil. The first failing check is returned.
func (p *CleanupPlan) Execute(ctx context.Context) error {
	p.mu.Lock()
	if p.executed {
		p.mu.Unlock()
		return nil
	}
	p.executed = true
	actions := p.actions
	p.mu.Unlock()

	var firstCheckErr error
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		err := runAction(ctx, a)
		if err == nil {
			util.Debugf("cleanup: %s: done", a.name)
			continue
		}
		if a.check {
			util.Logger.Errorf("cleanup check %s failed: %v", a.name, err)
			if firstCheckErr == nil {
				firstCheckErr = fmt.Errorf("%s: %w", a.name, err)
			}
			continue
		}
		util.Warnf("cleanup: %s failed (ignored): %v", a.name, err)
	}
	return firstCheckErr
}

// runAction converts a panicking action into an error so the rest of the
// plan still runs.
func runAction(ctx context.Context, a cleanupAction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.fn(ctx)
}
