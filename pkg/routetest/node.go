package routetest

import (
	"context"
	"net"
)

// Node is the device surface the orchestrator drives. *device.Device
// implements it.
type Node interface {
	Name() string
	Platform() string
	// Exec runs a shell command and returns its combined output.
	Exec(ctx context.Context, cmd string) (string, error)
	SetEntry(ctx context.Context, table, key string, fields map[string]string) error
	DeleteEntry(ctx context.Context, table, key string) error
	// BGPSessionStates maps every configured BGP neighbor to its session state.
	BGPSessionStates(ctx context.Context) (map[string]string, error)
	// MuxStates maps every mux cable port to its state.
	MuxStates(ctx context.Context) (map[string]string, error)
	// RoutePackets returns the packet count of the route flow counter on prefix.
	RoutePackets(ctx context.Context, prefix string) (uint64, error)
	RouterMAC(ctx context.Context) (net.HardwareAddr, error)
}

// NodePair is the switch under test plus, on dual-node testbeds, its
// standby peer. Every mutation of Primary is mirrored on Secondary.
type NodePair struct {
	Primary   Node
	Secondary Node
}

// IsDualNode reports whether a secondary node is present.
func (p NodePair) IsDualNode() bool {
	return p.Secondary != nil
}

// Nodes returns the primary followed by the secondary when present.
func (p NodePair) Nodes() []Node {
	if p.Secondary == nil {
		return []Node{p.Primary}
	}
	return []Node{p.Primary, p.Secondary}
}

// Each calls fn on the primary and then the secondary, stopping at the first
// error.
func (p NodePair) Each(fn func(Node) error) error {
	for _, n := range p.Nodes() {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}
