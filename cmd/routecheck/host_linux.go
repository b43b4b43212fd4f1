//go:build linux

package main

import (
	"github.com/newtron-network/routecheck/pkg/dataplane"
	"github.com/newtron-network/routecheck/pkg/hostbind"
	"github.com/newtron-network/routecheck/pkg/netlinkwrapper"
	"github.com/newtron-network/routecheck/pkg/routetest"
	"github.com/newtron-network/routecheck/pkg/testbed"
)

// openHost opens the traffic-host ports and, when the testbed asks for it,
// a binder for next-hop addresses. The returned function closes the ports.
func openHost(tb *testbed.Testbed) (routetest.Dataplane, routetest.HostBinder, func(), error) {
	nl := netlinkwrapper.NewNetLink()
	dp, err := dataplane.OpenAFPacket(tb.Ports, nl)
	if err != nil {
		return nil, nil, nil, &routetest.InfraError{Op: "dataplane", Err: err}
	}
	var binder routetest.HostBinder
	if tb.BindAddresses {
		binder = hostbind.New(nl)
	}
	return dp, binder, func() { dp.Close() }, nil
}
