package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/newtron-network/routecheck/pkg/device"
	"github.com/newtron-network/routecheck/pkg/routetest"
	"github.com/newtron-network/routecheck/pkg/settings"
	"github.com/newtron-network/routecheck/pkg/testbed"
	"github.com/newtron-network/routecheck/pkg/util"
)

const defaultTestbed = "testbed.yaml"

func loadSettings() *settings.Settings {
	s, err := settings.Load()
	if err != nil {
		util.Warnf("Could not load settings: %v", err)
		return &settings.Settings{}
	}
	return s
}

// resolveTestbed picks the testbed file: flag > env > settings > default.
func resolveTestbed(flagVal string, s *settings.Settings) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv("ROUTECHECK_TESTBED"); v != "" {
		return v
	}
	if s.Testbed != "" {
		return s.Testbed
	}
	return defaultTestbed
}

func loadTestbed(flagVal string, s *settings.Settings) (*testbed.Testbed, error) {
	path := resolveTestbed(flagVal, s)
	tb, err := testbed.Load(path)
	if err != nil {
		return nil, &routetest.InfraError{Op: "load", Err: err}
	}
	return tb, nil
}

// fillPassword asks for the SSH password when the testbed leaves it out.
// ROUTECHECK_SSH_PASS is used when stdin is not a terminal.
func fillPassword(p *device.Profile) error {
	if p.SSHUser == "" || p.SSHPass != "" {
		return nil
	}
	if v := os.Getenv("ROUTECHECK_SSH_PASS"); v != "" {
		p.SSHPass = v
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("no SSH password for %s@%s: set ssh_pass or ROUTECHECK_SSH_PASS", p.SSHUser, p.Name)
	}
	fmt.Fprintf(os.Stderr, "SSH password for %s@%s: ", p.SSHUser, p.Name)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	p.SSHPass = strings.TrimRight(string(pass), "\r\n")
	return nil
}

// connectPair connects the testbed's switches. The returned function
// disconnects them.
func connectPair(ctx context.Context, tb *testbed.Testbed) (routetest.NodePair, func(), error) {
	profiles := []*device.Profile{&tb.Primary}
	if tb.Secondary != nil {
		profiles = append(profiles, tb.Secondary)
	}

	var devices []*device.Device
	closeAll := func() {
		for _, d := range devices {
			d.Disconnect()
		}
	}
	for _, p := range profiles {
		if err := fillPassword(p); err != nil {
			closeAll()
			return routetest.NodePair{}, nil, &routetest.InfraError{Op: "connect", Device: p.Name, Err: err}
		}
		d := device.New(*p)
		if err := d.Connect(ctx); err != nil {
			closeAll()
			return routetest.NodePair{}, nil, &routetest.InfraError{Op: "connect", Device: p.Name, Err: err}
		}
		util.WithDevice(p.Name).Info("connected")
		devices = append(devices, d)
	}

	pair := routetest.NodePair{Primary: devices[0]}
	if len(devices) > 1 {
		pair.Secondary = devices[1]
	}
	return pair, closeAll, nil
}
