//go:build !linux

package main

import (
	"fmt"
	"runtime"

	"github.com/newtron-network/routecheck/pkg/routetest"
	"github.com/newtron-network/routecheck/pkg/testbed"
)

func openHost(tb *testbed.Testbed) (routetest.Dataplane, routetest.HostBinder, func(), error) {
	return nil, nil, nil, &routetest.InfraError{
		Op:  "dataplane",
		Err: fmt.Errorf("AF_PACKET ports are not available on %s", runtime.GOOS),
	}
}
