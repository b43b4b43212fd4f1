// Package testbed loads the YAML testbed file: switch connections, traffic
// host ports, topology facts, timing overrides and the cases to run.
package testbed

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/routecheck/pkg/dataplane"
	"github.com/newtron-network/routecheck/pkg/device"
	"github.com/newtron-network/routecheck/pkg/routetest"
	"github.com/newtron-network/routecheck/pkg/topology"
	"github.com/newtron-network/routecheck/pkg/util"
)

// File is the on-disk testbed layout.
type File struct {
	Name    string `yaml:"name"`
	Devices struct {
		Primary   *DeviceFile `yaml:"primary"`
		Secondary *DeviceFile `yaml:"secondary,omitempty"`
	} `yaml:"devices"`
	Dataplane struct {
		Ports         map[int]string `yaml:"ports"`
		BindAddresses *bool          `yaml:"bind_addresses,omitempty"`
	} `yaml:"dataplane"`
	Topology          TopologyFile      `yaml:"topology"`
	UpstreamNeighbors map[string]string `yaml:"upstream_neighbors,omitempty"`
	FlowCounters      bool              `yaml:"flow_counters"`
	Timing            TimingFile        `yaml:"timing,omitempty"`
	Cases             []CaseFile        `yaml:"cases,omitempty"`
}

// DeviceFile describes one switch.
type DeviceFile struct {
	Name      string `yaml:"name"`
	MgmtIP    string `yaml:"mgmt_ip"`
	SSHUser   string `yaml:"ssh_user,omitempty"`
	SSHPass   string `yaml:"ssh_pass,omitempty"`
	SSHPort   int    `yaml:"ssh_port,omitempty"`
	Platform  string `yaml:"platform,omitempty"`
	RouterMAC string `yaml:"router_mac,omitempty"`
	RedisAddr string `yaml:"redis_addr,omitempty"`
}

// TopologyFile holds the topology facts, as discovered by the lab inventory.
type TopologyFile struct {
	Name       string           `yaml:"name"`
	Type       string           `yaml:"type"`
	Backend    bool             `yaml:"backend,omitempty"`
	VLANs      []VLANFile       `yaml:"vlans"`
	PTFIndices map[string]int   `yaml:"ptf_indices"`
	MuxServers []MuxServerFile  `yaml:"mux_servers,omitempty"`
	Neighbors  map[string][]int `yaml:"neighbors"`
}

type VLANFile struct {
	Name    string   `yaml:"name"`
	ID      int      `yaml:"id"`
	Members []string `yaml:"members"`
	IPv4    string   `yaml:"ipv4,omitempty"`
	IPv6    string   `yaml:"ipv6,omitempty"`
}

type MuxServerFile struct {
	Port string `yaml:"port"`
	IPv4 string `yaml:"ipv4,omitempty"`
	IPv6 string `yaml:"ipv6,omitempty"`
}

// PolicyFile overrides a retry policy; zero fields keep the default.
type PolicyFile struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	MaxWait  time.Duration `yaml:"max_wait,omitempty"`
}

type TimingFile struct {
	Settle                *time.Duration           `yaml:"settle,omitempty"`
	Redistribution        PolicyFile               `yaml:"redistribution,omitempty"`
	SessionsUp            PolicyFile               `yaml:"sessions_up,omitempty"`
	Role                  PolicyFile               `yaml:"role,omitempty"`
	FlowCounter           PolicyFile               `yaml:"flow_counter,omitempty"`
	ServicesInterval      time.Duration            `yaml:"services_interval,omitempty"`
	ReloadBudget          time.Duration            `yaml:"reload_budget,omitempty"`
	PlatformReloadBudgets map[string]time.Duration `yaml:"platform_reload_budgets,omitempty"`
	Traffic               struct {
		Timeout time.Duration `yaml:"timeout,omitempty"`
		Linger  time.Duration `yaml:"linger,omitempty"`
	} `yaml:"traffic,omitempty"`
}

type CaseFile struct {
	Name         string `yaml:"name"`
	Prefix       string `yaml:"prefix"`
	Count        int    `yaml:"count,omitempty"`
	ConfigReload bool   `yaml:"config_reload,omitempty"`
}

// Testbed is a loaded, validated testbed.
type Testbed struct {
	Name      string
	Primary   device.Profile
	Secondary *device.Profile
	// Ports maps a traffic-host port index to its interface name.
	Ports         map[int]string
	BindAddresses bool
	Topology      *topology.TestTopology
	UpstreamMap   map[string]string
	FlowCounters  bool
	Timing        routetest.Timing
	Cases         []routetest.Case
}

// Load reads and validates the testbed file at path.
func Load(path string) (*Testbed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading testbed %s: %w", path, err)
	}
	tb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("testbed %s: %w", path, err)
	}
	return tb, nil
}

// Parse decodes and validates a testbed document. Every problem found is
// reported at once.
func Parse(data []byte) (*Testbed, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing testbed: %w", err)
	}
	applyDefaults(&f)

	v := &util.ValidationBuilder{}
	tb := &Testbed{
		Name:          f.Name,
		Ports:         f.Dataplane.Ports,
		BindAddresses: *f.Dataplane.BindAddresses,
		FlowCounters:  f.FlowCounters,
		Timing:        f.Timing.resolve(),
		UpstreamMap:   f.UpstreamNeighbors,
	}

	if f.Devices.Primary == nil {
		v.AddErrorf("devices.primary is required")
	} else {
		tb.Primary = f.Devices.Primary.profile(v, "devices.primary")
	}
	if f.Devices.Secondary != nil {
		p := f.Devices.Secondary.profile(v, "devices.secondary")
		tb.Secondary = &p
	}
	v.Add(len(tb.Ports) > 0, "dataplane.ports must list at least one port")

	tb.Topology = f.Topology.build(v)
	if tb.Topology.IsDualNode() != (tb.Secondary != nil) {
		v.AddErrorf("topology %q: dual-node=%v but devices.secondary present=%v",
			tb.Topology.Name, tb.Topology.IsDualNode(), tb.Secondary != nil)
	}
	for _, idx := range tb.usedPorts() {
		if _, ok := tb.Ports[idx]; !ok {
			v.AddErrorf("topology references traffic-host port %d, which dataplane.ports does not define", idx)
		}
	}

	seen := map[string]bool{}
	for i, cf := range f.Cases {
		c, ok := cf.build(v, i)
		if !ok {
			continue
		}
		if seen[c.Name] {
			v.AddErrorf("duplicate case name %q", c.Name)
		}
		seen[c.Name] = true
		tb.Cases = append(tb.Cases, c)
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return tb, nil
}

// applyDefaults fills in optional fields.
func applyDefaults(f *File) {
	if f.Devices.Primary != nil && f.Devices.Primary.SSHPort == 0 {
		f.Devices.Primary.SSHPort = 22
	}
	if f.Devices.Secondary != nil && f.Devices.Secondary.SSHPort == 0 {
		f.Devices.Secondary.SSHPort = 22
	}
	if f.Dataplane.BindAddresses == nil {
		bind := true
		f.Dataplane.BindAddresses = &bind
	}
	upstream := make(map[string]string, len(topology.DefaultUpstreamNeighborMap))
	for k, v := range topology.DefaultUpstreamNeighborMap {
		upstream[k] = v
	}
	for k, v := range f.UpstreamNeighbors {
		upstream[k] = v
	}
	f.UpstreamNeighbors = upstream
	if f.Name == "" {
		f.Name = f.Topology.Name
	}
	for i := range f.Cases {
		if f.Cases[i].Count == 0 {
			f.Cases[i].Count = 1
		}
	}
}

func (d *DeviceFile) profile(v *util.ValidationBuilder, path string) device.Profile {
	v.Add(d.Name != "", path+".name is required")
	v.Add(d.MgmtIP != "" || d.RedisAddr != "", path+": mgmt_ip or redis_addr is required")
	return device.Profile{
		Name:      d.Name,
		MgmtIP:    d.MgmtIP,
		SSHUser:   d.SSHUser,
		SSHPass:   d.SSHPass,
		SSHPort:   d.SSHPort,
		Platform:  d.Platform,
		RouterMAC: d.RouterMAC,
		RedisAddr: d.RedisAddr,
	}
}

func parsePrefix(v *util.ValidationBuilder, path, s string) netip.Prefix {
	if s == "" {
		return netip.Prefix{}
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		v.AddErrorf("%s: invalid prefix %q", path, s)
	}
	return p
}

func (t *TopologyFile) build(v *util.ValidationBuilder) *topology.TestTopology {
	v.Add(t.Name != "", "topology.name is required")
	v.Add(t.Type != "", "topology.type is required")

	topo := &topology.TestTopology{
		Name:       t.Name,
		Type:       t.Type,
		Backend:    t.Backend,
		PTFIndices: t.PTFIndices,
		Neighbors:  t.Neighbors,
	}
	for i, vf := range t.VLANs {
		path := fmt.Sprintf("topology.vlans[%d]", i)
		vlan := topology.VLAN{
			Name:    vf.Name,
			ID:      vf.ID,
			Members: vf.Members,
			IPv4:    parsePrefix(v, path+".ipv4", vf.IPv4),
			IPv6:    parsePrefix(v, path+".ipv6", vf.IPv6),
		}
		v.Add(vf.Name != "", path+".name is required")
		topo.VLANs = append(topo.VLANs, vlan)
	}
	for i, mf := range t.MuxServers {
		path := fmt.Sprintf("topology.mux_servers[%d]", i)
		v.Add(mf.Port != "", path+".port is required")
		topo.MuxServers = append(topo.MuxServers, topology.MuxServer{
			Port: mf.Port,
			IPv4: parsePrefix(v, path+".ipv4", mf.IPv4),
			IPv6: parsePrefix(v, path+".ipv6", mf.IPv6),
		})
	}
	return topo
}

func (c CaseFile) build(v *util.ValidationBuilder, i int) (routetest.Case, bool) {
	path := fmt.Sprintf("cases[%d]", i)
	p, err := netip.ParsePrefix(c.Prefix)
	if err != nil {
		v.AddErrorf("%s: invalid prefix %q", path, c.Prefix)
		return routetest.Case{}, false
	}
	rc := routetest.Case{Name: c.Name, Prefix: p.Masked(), Count: c.Count, ConfigReload: c.ConfigReload}
	if err := rc.Validate(); err != nil {
		v.AddErrorf("%s: %v", path, err)
		return routetest.Case{}, false
	}
	return rc, true
}

func (p PolicyFile) merge(def routetest.RetryPolicy) routetest.RetryPolicy {
	if p.Interval > 0 {
		def.Interval = p.Interval
	}
	if p.MaxWait > 0 {
		def.MaxWait = p.MaxWait
	}
	return def
}

// resolve overlays the file's timing on DefaultTiming.
func (t TimingFile) resolve() routetest.Timing {
	out := routetest.DefaultTiming()
	if t.Settle != nil {
		out.Settle = *t.Settle
	}
	out.Redistribution = t.Redistribution.merge(out.Redistribution)
	out.SessionsUp = t.SessionsUp.merge(out.SessionsUp)
	out.Role = t.Role.merge(out.Role)
	out.FlowCounter = t.FlowCounter.merge(out.FlowCounter)
	if t.ServicesInterval > 0 {
		out.ServicesInterval = t.ServicesInterval
	}
	if t.ReloadBudget > 0 {
		out.ReloadBudget = t.ReloadBudget
	}
	for platform, budget := range t.PlatformReloadBudgets {
		out.PlatformReloadBudgets[platform] = budget
	}
	traffic := dataplane.DefaultVerifyOptions
	if t.Traffic.Timeout > 0 {
		traffic.Timeout = t.Traffic.Timeout
	}
	if t.Traffic.Linger > 0 {
		traffic.Linger = t.Traffic.Linger
	}
	out.Traffic = traffic
	return out
}

// usedPorts lists every traffic-host port the topology refers to.
func (tb *Testbed) usedPorts() []int {
	set := map[int]bool{}
	for _, idx := range tb.Topology.PTFIndices {
		set[idx] = true
	}
	for _, ports := range tb.Topology.Neighbors {
		for _, idx := range ports {
			set[idx] = true
		}
	}
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// SelectCases returns the cases to run: the named one, or all of them. The
// canonical cases stand in when the file defines none.
func (tb *Testbed) SelectCases(name string) ([]routetest.Case, error) {
	cases := tb.Cases
	if len(cases) == 0 {
		cases = routetest.DefaultCases()
	}
	if name == "" {
		return cases, nil
	}
	for _, c := range cases {
		if c.Name == name {
			return []routetest.Case{c}, nil
		}
	}
	return nil, fmt.Errorf("case %q not found in testbed %s", name, tb.Name)
}
