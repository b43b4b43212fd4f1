package routetest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newtron-network/routecheck/pkg/dataplane"
	"github.com/newtron-network/routecheck/pkg/topology"
	"github.com/newtron-network/routecheck/pkg/util"
)

type peer struct {
	addr string
	name string
}

// fakeNode is an in-memory switch. Static routes written through SetEntry
// show up in the kernel route output and in the advertisements to every
// peer.
type fakeNode struct {
	mu sync.Mutex

	name     string
	platform string
	mac      net.HardwareAddr

	entries  map[string]map[string]string
	peers    []peer
	sessions map[string]string
	mux      map[string]string
	counters map[string]uint64
	bound    map[string]bool
	cmds     []string

	withdrawn []string
	// counterReads counts RoutePackets calls.
	counterReads int

	// Fault injection.
	notInstalled   bool // routes never reach the kernel
	neverAdvertise bool
	stickyAdvert   bool // withdrawn routes stay advertised
	servicesDown   bool
	muxStuck       bool
	extraPackets   uint64 // added to every route counter bump
	execErr        map[string]error
	setErr         error
	onReload       func(*fakeNode)
}

func newFakeNode(name string) *fakeNode {
	return &fakeNode{
		name:     name,
		platform: "x86_64-kvm_x86_64-r0",
		mac:      net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56},
		entries:  map[string]map[string]string{},
		peers: []peer{
			{"10.0.0.57", "ARISTA01T1"},
			{"10.0.0.59", "ARISTA02T1"},
			{"10.10.246.254", "exabgp_v4_PT0"},
			{"fc00::72", "ARISTA01T1"},
			{"fc00::76", "ARISTA02T1"},
			{"fc00::7a", "exabgp_v6_PT0"},
		},
		sessions: map[string]string{"10.0.0.57": "Established", "10.0.0.59": "Established"},
		mux:      map[string]string{},
		counters: map[string]uint64{},
		bound:    map[string]bool{},
		execErr:  map[string]error{},
	}
}

var _ Node = (*fakeNode)(nil)

func (n *fakeNode) Name() string     { return n.name }
func (n *fakeNode) Platform() string { return n.platform }

func (n *fakeNode) RouterMAC(ctx context.Context) (net.HardwareAddr, error) {
	return n.mac, nil
}

func (n *fakeNode) SetEntry(ctx context.Context, table, key string, fields map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.setErr != nil {
		return n.setErr
	}
	n.entries[table+"|"+key] = fields
	return nil
}

func (n *fakeNode) DeleteEntry(ctx context.Context, table, key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.entries[table+"|"+key]; ok && table == StaticRouteTable {
		n.withdrawn = append(n.withdrawn, key)
	}
	delete(n.entries, table+"|"+key)
	return nil
}

func (n *fakeNode) entry(table, key string) (map[string]string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.entries[table+"|"+key]
	return e, ok
}

func (n *fakeNode) hasRoute(prefix string) bool {
	_, ok := n.entry(StaticRouteTable, prefix)
	return ok
}

func (n *fakeNode) BGPSessionStates(ctx context.Context) (map[string]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]string, len(n.sessions))
	for k, v := range n.sessions {
		out[k] = v
	}
	return out, nil
}

func (n *fakeNode) MuxStates(ctx context.Context) (map[string]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]string, len(n.mux))
	for k, v := range n.mux {
		out[k] = v
	}
	return out, nil
}

func (n *fakeNode) RoutePackets(ctx context.Context, prefix string) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counterReads++
	if !n.bound[prefix] {
		return 0, util.ErrNoRouteCounter
	}
	return n.counters[prefix], nil
}

func (n *fakeNode) routeCounterReads() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counterReads
}

// resetCounter zeroes the route counter on prefix, as a counter poll restart
// on the switch would.
func (n *fakeNode) resetCounter(prefix string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counters[prefix] = 0
}

// forwarded counts one packet routed through prefix.
func (n *fakeNode) forwarded(prefix string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bound[prefix] {
		n.counters[prefix] += 1 + n.extraPackets
	}
}

func (n *fakeNode) commands() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.cmds...)
}

func (n *fakeNode) ran(cmd string) int {
	count := 0
	for _, c := range n.commands() {
		if c == cmd {
			count++
		}
	}
	return count
}

func (n *fakeNode) Exec(ctx context.Context, cmd string) (string, error) {
	n.mu.Lock()
	n.cmds = append(n.cmds, cmd)
	err := n.execErr[cmd]
	n.mu.Unlock()
	if err != nil {
		return "", err
	}

	f := strings.Fields(cmd)
	switch {
	case strings.HasPrefix(cmd, "ip route show "), strings.HasPrefix(cmd, "ip -6 route show "):
		return n.routeShow(f[len(f)-1]), nil
	case cmd == "show ip bgp summary":
		return n.bgpSummary(false), nil
	case cmd == "show ipv6 bgp summary":
		return n.bgpSummary(true), nil
	case strings.HasSuffix(cmd, "advertised-routes"):
		return n.advertised(), nil
	case strings.HasPrefix(cmd, "sudo config mux mode "):
		n.setMux(f[4])
	case strings.HasPrefix(cmd, "systemctl is-active"):
		if n.servicesDown {
			return "active\nactivating\nactive\n", fmt.Errorf("exit status 3")
		}
		return "active\nactive\nactive\n", nil
	case strings.HasPrefix(cmd, "sudo config flowcnt-route pattern add "):
		n.mu.Lock()
		n.bound[f[len(f)-1]] = true
		n.mu.Unlock()
	case strings.HasPrefix(cmd, "sudo config flowcnt-route pattern remove "):
		n.mu.Lock()
		delete(n.bound, f[len(f)-1])
		n.mu.Unlock()
	case cmd == "sudo config reload -y":
		// A reload brings every mux port up in standby.
		n.setMux(string(RoleStandby))
		if n.onReload != nil {
			n.onReload(n)
		}
	}
	return "", nil
}

func (n *fakeNode) setMux(state string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.muxStuck {
		return
	}
	for port := range n.mux {
		n.mux[port] = state
	}
}

func (n *fakeNode) routeShow(prefix string) string {
	e, ok := n.entry(StaticRouteTable, prefix)
	if !ok || n.notInstalled {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s proto 196 metric 20\n", prefix)
	for _, nh := range util.SplitCommaSeparated(e["nexthop"]) {
		fmt.Fprintf(&b, "\tnexthop via %s dev Vlan1000 weight 1\n", nh)
	}
	return b.String()
}

var summaryColumns = []struct {
	name  string
	width int
}{
	{"Neighbhor", 15}, {"V", 3}, {"AS", 6}, {"MsgRcvd", 9}, {"MsgSent", 9},
	{"TblVer", 8}, {"InQ", 5}, {"OutQ", 6}, {"Up/Down", 9}, {"State/PfxRcd", 14},
	{"NeighborName", 14},
}

func summaryLine(values ...string) string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = fmt.Sprintf("%-*s", summaryColumns[i].width, v)
	}
	return strings.TrimRight(strings.Join(cells, "  "), " ") + "\n"
}

func (n *fakeNode) bgpSummary(v6 bool) string {
	var b strings.Builder
	b.WriteString("IPv4 Unicast Summary:\n")
	b.WriteString("BGP router identifier 10.1.0.32, local AS number 65100 vrf-id 0\n\n")
	headers := make([]string, len(summaryColumns))
	dashes := make([]string, len(summaryColumns))
	for i, c := range summaryColumns {
		headers[i] = c.name
		dashes[i] = strings.Repeat("-", c.width)
	}
	b.WriteString(summaryLine(headers...))
	b.WriteString(summaryLine(dashes...))
	count := 0
	for _, p := range n.peers {
		if strings.Contains(p.addr, ":") != v6 {
			continue
		}
		b.WriteString(summaryLine(p.addr, "4", "64600", "3208", "3212", "0", "0", "0", "2d01h11m", "6400", p.name))
		count++
	}
	fmt.Fprintf(&b, "\nTotal number of neighbors %d\n", count)
	return b.String()
}

func (n *fakeNode) advertised() string {
	if n.neverAdvertise {
		return "Total number of prefixes 0\n"
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	var routes []string
	for k := range n.entries {
		if p, ok := strings.CutPrefix(k, StaticRouteTable+"|"); ok {
			routes = append(routes, p)
		}
	}
	if n.stickyAdvert {
		routes = append(routes, n.withdrawn...)
	}
	sort.Strings(routes)
	var b strings.Builder
	b.WriteString("   Network          Next Hop            Metric LocPrf Weight Path\n")
	for _, r := range routes {
		fmt.Fprintf(&b, "*> %-16s 0.0.0.0                  0         32768 ?\n", r)
	}
	return b.String()
}

// fakeBinder records host address bindings.
type fakeBinder struct {
	mu      sync.Mutex
	bound   []string
	calls   []string
	bindErr error
}

func (b *fakeBinder) Bind(iface string, addr netip.Addr, prefixLen int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("bind %s %s/%d", iface, addr, prefixLen))
	if b.bindErr != nil {
		return b.bindErr
	}
	b.bound = append(b.bound, iface)
	return nil
}

func (b *fakeBinder) Unbind(iface string, addr netip.Addr, prefixLen int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("unbind %s %s/%d", iface, addr, prefixLen))
	for i, name := range b.bound {
		if name == iface {
			b.bound = append(b.bound[:i], b.bound[i+1:]...)
			break
		}
	}
	return nil
}

func (b *fakeBinder) interfaces() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bound...)
}

// fakeDataplane queues every sent frame on the ports egress returns.
type fakeDataplane struct {
	mu     sync.Mutex
	ports  []int
	queues map[int][][]byte
	sent   []int
	egress func(ingress int, frame []byte) []int
}

func newFakeDataplane(ports ...int) *fakeDataplane {
	return &fakeDataplane{ports: ports, queues: map[int][][]byte{}}
}

var _ Dataplane = (*fakeDataplane)(nil)

func (d *fakeDataplane) Ports() []int { return d.ports }

func (d *fakeDataplane) MAC(port int) (net.HardwareAddr, error) {
	return net.HardwareAddr{0x02, 0, 0, 0, 0, byte(port)}, nil
}

func (d *fakeDataplane) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues = map[int][][]byte{}
}

func (d *fakeDataplane) Send(port int, frame []byte) error {
	d.mu.Lock()
	d.sent = append(d.sent, port)
	egress := d.egress
	d.mu.Unlock()
	if egress == nil {
		return nil
	}
	out := egress(port, frame)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range out {
		d.queues[p] = append(d.queues[p], append([]byte(nil), frame...))
	}
	return nil
}

func (d *fakeDataplane) Recv(port int) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.queues[port]
	if len(q) == 0 {
		return nil, false, nil
	}
	d.queues[port] = q[1:]
	return q[0], true, nil
}

func (d *fakeDataplane) ingressPorts() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.sent...)
}

// routeThrough forwards probes for prefix out of the port of the first bound
// next-hop interface while the route is installed, counting them on node.
func routeThrough(node *fakeNode, binder *fakeBinder, prefix string) func(int, []byte) []int {
	return func(ingress int, frame []byte) []int {
		if !node.hasRoute(prefix) || node.notInstalled {
			return nil
		}
		ifaces := binder.interfaces()
		if len(ifaces) == 0 {
			return nil
		}
		var port int
		if _, err := fmt.Sscanf(ifaces[0], "eth%d", &port); err != nil {
			return nil
		}
		node.forwarded(prefix)
		return []int{port}
	}
}

func testTopology() *topology.TestTopology {
	return &topology.TestTopology{
		Name: "t0-64",
		Type: "t0",
		VLANs: []topology.VLAN{{
			Name:    "Vlan1000",
			ID:      1000,
			Members: []string{"Ethernet4", "Ethernet8", "Ethernet12", "Ethernet16"},
			IPv4:    netip.MustParsePrefix("192.168.0.1/21"),
			IPv6:    netip.MustParsePrefix("fc02:1000::1/64"),
		}},
		PTFIndices: map[string]int{"Ethernet4": 1, "Ethernet8": 2, "Ethernet12": 3, "Ethernet16": 4},
		Neighbors: map[string][]int{
			"ARISTA01T1": {28},
			"ARISTA02T1": {29},
		},
	}
}

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{Interval: time.Millisecond, MaxWait: 30 * time.Millisecond}
}

func fastTiming() Timing {
	return Timing{
		Settle:                0,
		Redistribution:        fastPolicy(),
		SessionsUp:            fastPolicy(),
		Role:                  fastPolicy(),
		FlowCounter:           fastPolicy(),
		ServicesInterval:      time.Millisecond,
		ReloadBudget:          30 * time.Millisecond,
		PlatformReloadBudgets: map[string]time.Duration{},
		Traffic: dataplane.VerifyOptions{
			Timeout: 100 * time.Millisecond,
			Linger:  5 * time.Millisecond,
			Tick:    time.Millisecond,
		},
	}
}
