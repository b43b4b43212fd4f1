// Package device connects to a SONiC switch: Redis databases through an SSH
// tunnel, and a shell over the same SSH connection.
package device

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/newtron-network/routecheck/pkg/util"
)

// Profile holds the connection facts of one switch.
type Profile struct {
	Name     string
	MgmtIP   string
	SSHUser  string
	SSHPass  string
	SSHPort  int
	Platform string
	// RouterMAC overrides DEVICE_METADATA|localhost mac when set.
	RouterMAC string
	// RedisAddr connects to Redis directly instead of through SSH.
	RedisAddr string
}

// Device represents a connected SONiC switch.
type Device struct {
	profile Profile

	tunnel     *SSHTunnel
	configDB   *ConfigDBClient
	stateDB    *StateDBClient
	countersDB *CountersDBClient
	connected  bool

	mu sync.Mutex
}

// New creates an unconnected device.
func New(p Profile) *Device {
	return &Device{profile: p}
}

// Name returns the device name.
func (d *Device) Name() string { return d.profile.Name }

// Platform returns the platform identifier (e.g. "x86_64-cel_e1031-r0").
func (d *Device) Platform() string { return d.profile.Platform }

// Connect opens the SSH tunnel and the CONFIG_DB, STATE_DB and COUNTERS_DB
// clients. Connecting an already connected device is a no-op.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil
	}

	addr := d.profile.RedisAddr
	if d.profile.SSHUser != "" && d.profile.SSHPass != "" {
		tun, err := NewSSHTunnel(d.profile.MgmtIP, d.profile.SSHUser, d.profile.SSHPass, d.profile.SSHPort)
		if err != nil {
			return fmt.Errorf("SSH tunnel to %s: %w", d.profile.Name, err)
		}
		d.tunnel = tun
		if addr == "" {
			addr = tun.LocalAddr()
		}
	} else if addr == "" {
		addr = net.JoinHostPort(d.profile.MgmtIP, "6379")
	}

	d.configDB = NewConfigDBClient(addr)
	if err := d.configDB.Connect(ctx); err != nil {
		d.closeLocked()
		return fmt.Errorf("connecting to config_db on %s: %w", d.profile.Name, err)
	}

	d.stateDB = NewStateDBClient(addr)
	if err := d.stateDB.Connect(ctx); err != nil {
		d.closeLocked()
		return fmt.Errorf("connecting to state_db on %s: %w", d.profile.Name, err)
	}

	// Route flow counters are optional; a missing COUNTERS_DB only disables them.
	d.countersDB = NewCountersDBClient(addr)
	if err := d.countersDB.Connect(ctx); err != nil {
		util.WithDevice(d.profile.Name).Warnf("Failed to connect to counters_db: %v", err)
		d.countersDB.Close()
		d.countersDB = nil
	}

	d.connected = true
	util.WithDevice(d.profile.Name).Info("Connected")
	return nil
}

// Disconnect closes the connection
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	d.closeLocked()
	d.connected = false
	util.WithDevice(d.profile.Name).Info("Disconnected")
	return nil
}

func (d *Device) closeLocked() {
	if d.configDB != nil {
		d.configDB.Close()
		d.configDB = nil
	}
	if d.stateDB != nil {
		d.stateDB.Close()
		d.stateDB = nil
	}
	if d.countersDB != nil {
		d.countersDB.Close()
		d.countersDB = nil
	}
	if d.tunnel != nil {
		d.tunnel.Close()
		d.tunnel = nil
	}
}

// IsConnected returns true if connected
func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Exec runs a shell command on the switch and returns its combined output.
func (d *Device) Exec(ctx context.Context, cmd string) (string, error) {
	d.mu.Lock()
	tun := d.tunnel
	d.mu.Unlock()
	if tun == nil {
		return "", fmt.Errorf("%s: no SSH session: %w", d.profile.Name, util.ErrNotConnected)
	}
	util.WithDevice(d.profile.Name).Debugf("exec: %s", cmd)
	return tun.ExecCommand(ctx, cmd)
}

// SetEntry writes a CONFIG_DB entry.
func (d *Device) SetEntry(ctx context.Context, table, key string, fields map[string]string) error {
	c, err := d.config()
	if err != nil {
		return err
	}
	return c.Set(ctx, table, key, fields)
}

// DeleteEntry removes a CONFIG_DB entry. Missing entries are not an error.
func (d *Device) DeleteEntry(ctx context.Context, table, key string) error {
	c, err := d.config()
	if err != nil {
		return err
	}
	return c.Delete(ctx, table, key)
}

// GetEntry reads a CONFIG_DB entry; a missing entry yields an empty map.
func (d *Device) GetEntry(ctx context.Context, table, key string) (map[string]string, error) {
	c, err := d.config()
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, table, key)
}

// MuxStates returns the mux cable state of every port on the switch.
func (d *Device) MuxStates(ctx context.Context) (map[string]string, error) {
	s, err := d.state()
	if err != nil {
		return nil, err
	}
	return s.MuxStates(ctx)
}

// RoutePackets returns the packet count of the route flow counter on prefix.
func (d *Device) RoutePackets(ctx context.Context, prefix string) (uint64, error) {
	d.mu.Lock()
	c := d.countersDB
	d.mu.Unlock()
	if c == nil {
		return 0, fmt.Errorf("%s: counters_db: %w", d.profile.Name, util.ErrNotConnected)
	}
	return c.RoutePackets(ctx, prefix)
}

// RouterMAC returns the switch's router MAC, from the profile or from
// DEVICE_METADATA|localhost.
func (d *Device) RouterMAC(ctx context.Context) (net.HardwareAddr, error) {
	raw := d.profile.RouterMAC
	if raw == "" {
		meta, err := d.GetEntry(ctx, "DEVICE_METADATA", "localhost")
		if err != nil {
			return nil, fmt.Errorf("reading DEVICE_METADATA on %s: %w", d.profile.Name, err)
		}
		raw = meta["mac"]
	}
	if raw == "" {
		return nil, fmt.Errorf("%s: router MAC not configured", d.profile.Name)
	}
	return net.ParseMAC(raw)
}

func (d *Device) config() (*ConfigDBClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configDB == nil {
		return nil, fmt.Errorf("%s: %w", d.profile.Name, util.ErrNotConnected)
	}
	return d.configDB, nil
}

func (d *Device) state() (*StateDBClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stateDB == nil {
		return nil, fmt.Errorf("%s: %w", d.profile.Name, util.ErrNotConnected)
	}
	return d.stateDB, nil
}
