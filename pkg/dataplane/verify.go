package dataplane

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/newtron-network/routecheck/pkg/util"
)

// PacketIO is the traffic host's view of its emulated ports.
type PacketIO interface {
	// Flush discards every frame received so far.
	Flush()
	// Send transmits one frame on port.
	Send(port int, frame []byte) error
	// Recv returns the next queued frame on port, or ok=false when none is
	// pending.
	Recv(port int) (frame []byte, ok bool, err error)
}

// VerifyOptions bounds VerifyAnyPort.
type VerifyOptions struct {
	// Timeout is how long to wait for the first matching frame.
	Timeout time.Duration
	// Linger keeps listening after the first match to catch copies on
	// other ports.
	Linger time.Duration
	// Tick is the receive polling interval.
	Tick time.Duration
}

// DefaultVerifyOptions are the budgets used against real ports.
var DefaultVerifyOptions = VerifyOptions{
	Timeout: 2 * time.Second,
	Linger:  200 * time.Millisecond,
	Tick:    10 * time.Millisecond,
}

// MatchError reports a probe that was not seen on exactly one expected port.
type MatchError struct {
	Ports   []int
	Matched map[int]int
}

func (e *MatchError) Error() string {
	if len(e.Matched) == 0 {
		return fmt.Sprintf("expected packet not received on any of ports %v", e.Ports)
	}
	var hit []int
	for p := range e.Matched {
		hit = append(hit, p)
	}
	sort.Ints(hit)
	return fmt.Sprintf("expected packet on exactly one of ports %v, received on %v", e.Ports, hit)
}

// VerifyAnyPort waits until a frame matching mask arrives on one of ports
// and fails unless exactly one port received it. It returns that port.
func VerifyAnyPort(ctx context.Context, io PacketIO, mask *Mask, ports []int, opts VerifyOptions) (int, error) {
	if len(ports) == 0 {
		return -1, fmt.Errorf("no candidate ports")
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultVerifyOptions.Tick
	}

	matched := make(map[int]int)
	deadline := time.Now().Add(opts.Timeout)
	lingering := false

	for {
		for _, p := range ports {
			for {
				frame, ok, err := io.Recv(p)
				if err != nil {
					return -1, fmt.Errorf("receiving on port %d: %w", p, err)
				}
				if !ok {
					break
				}
				if mask.Matches(frame) {
					matched[p]++
					util.Debugf("port %d: matched %s", p, Describe(frame))
				}
			}
		}

		if len(matched) > 0 && !lingering {
			lingering = true
			deadline = time.Now().Add(opts.Linger)
		}
		if time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(opts.Tick):
		}
	}

	if len(matched) != 1 {
		return -1, &MatchError{Ports: ports, Matched: matched}
	}
	for p := range matched {
		return p, nil
	}
	return -1, nil
}
