//go:build e2e && linux

package e2e_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/newtron-network/routecheck/pkg/dataplane"
	"github.com/newtron-network/routecheck/pkg/device"
	"github.com/newtron-network/routecheck/pkg/hostbind"
	"github.com/newtron-network/routecheck/pkg/netlinkwrapper"
	"github.com/newtron-network/routecheck/pkg/routetest"
	"github.com/newtron-network/routecheck/pkg/testbed"
)

// lab is the connected testbed shared by every test. It is nil when
// ROUTECHECK_E2E_TESTBED is unset.
var lab *labEnv

type labEnv struct {
	tb      *testbed.Testbed
	pair    routetest.NodePair
	devices []*device.Device
	dp      *dataplane.AFPacket
	binder  routetest.HostBinder
	results []*routetest.CaseResult
}

func TestMain(m *testing.M) {
	path := os.Getenv("ROUTECHECK_E2E_TESTBED")
	if path == "" {
		fmt.Fprintln(os.Stderr, "ROUTECHECK_E2E_TESTBED not set, e2e tests will skip")
		os.Exit(m.Run())
	}

	env, err := openLab(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening testbed %s: %v\n", path, err)
		os.Exit(2)
	}
	lab = env

	code := m.Run()
	env.close()

	reportPath := filepath.Join(os.TempDir(), "routecheck-e2e-report.md")
	gen := &routetest.ReportGenerator{Results: env.results}
	if err := gen.WriteMarkdown(reportPath); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: failed to write E2E report: %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "E2E report written to %s\n", reportPath)
	}
	os.Exit(code)
}

func openLab(ctx context.Context, path string) (*labEnv, error) {
	tb, err := testbed.Load(path)
	if err != nil {
		return nil, err
	}
	env := &labEnv{tb: tb}

	profiles := []device.Profile{tb.Primary}
	if tb.Secondary != nil {
		profiles = append(profiles, *tb.Secondary)
	}
	for _, p := range profiles {
		if p.SSHPass == "" {
			p.SSHPass = os.Getenv("ROUTECHECK_SSH_PASS")
		}
		d := device.New(p)
		if err := d.Connect(ctx); err != nil {
			env.close()
			return nil, fmt.Errorf("connect %s: %w", p.Name, err)
		}
		env.devices = append(env.devices, d)
	}
	env.pair.Primary = env.devices[0]
	if len(env.devices) > 1 {
		env.pair.Secondary = env.devices[1]
	}

	nl := netlinkwrapper.NewNetLink()
	env.dp, err = dataplane.OpenAFPacket(tb.Ports, nl)
	if err != nil {
		env.close()
		return nil, err
	}
	if tb.BindAddresses {
		env.binder = hostbind.New(nl)
	}
	return env, nil
}

func (e *labEnv) close() {
	if e.dp != nil {
		e.dp.Close()
	}
	for _, d := range e.devices {
		d.Disconnect()
	}
}

func skipIfNoLab(t *testing.T) {
	t.Helper()
	if lab == nil {
		t.Skip("ROUTECHECK_E2E_TESTBED not set")
	}
}
