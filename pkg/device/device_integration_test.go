//go:build integration

package device

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/routecheck/internal/testutil"
)

func connectTestDevice(t *testing.T) *Device {
	t.Helper()
	testutil.SkipIfNoRedis(t)

	d := New(Profile{Name: "switch1", RedisAddr: testutil.RedisAddr()})
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { d.Disconnect() })
	return d
}

func TestIntegration_StaticRouteRoundTrip(t *testing.T) {
	d := connectTestDevice(t)
	addr := testutil.RedisAddr()
	testutil.FlushDB(t, addr, ConfigDBNum)
	ctx := context.Background()

	fields := map[string]string{"nexthop": "192.168.0.2,192.168.0.3"}
	if err := d.SetEntry(ctx, "STATIC_ROUTE", "2.2.2.0/24", fields); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}
	got := testutil.ReadEntry(t, addr, ConfigDBNum, "STATIC_ROUTE", "2.2.2.0/24")
	if diff := cmp.Diff(fields, got); diff != "" {
		t.Errorf("STATIC_ROUTE entry mismatch (-want +got):\n%s", diff)
	}

	for i := 0; i < 2; i++ {
		if err := d.DeleteEntry(ctx, "STATIC_ROUTE", "2.2.2.0/24"); err != nil {
			t.Fatalf("DeleteEntry #%d: %v", i+1, err)
		}
	}
	if testutil.EntryExists(t, addr, ConfigDBNum, "STATIC_ROUTE", "2.2.2.0/24") {
		t.Error("STATIC_ROUTE|2.2.2.0/24 still present after delete")
	}
}

func TestIntegration_MuxStates(t *testing.T) {
	d := connectTestDevice(t)
	testutil.SeedRedis(t, testutil.RedisAddr(), StateDBNum, testutil.Tables{
		"MUX_CABLE_TABLE": {
			"Ethernet4": {"state": "active"},
			"Ethernet8": {"state": "standby"},
		},
	})

	got, err := d.MuxStates(context.Background())
	if err != nil {
		t.Fatalf("MuxStates: %v", err)
	}
	want := map[string]string{"Ethernet4": "active", "Ethernet8": "standby"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MuxStates mismatch (-want +got):\n%s", diff)
	}
}

func TestIntegration_BGPSessionStatesFromStateDB(t *testing.T) {
	d := connectTestDevice(t)
	addr := testutil.RedisAddr()
	testutil.SeedRedis(t, addr, ConfigDBNum, testutil.Tables{
		"BGP_NEIGHBOR": {
			"10.0.0.57": {"asn": "64600"},
			"fc00::72":  {"asn": "64600"},
		},
	})
	testutil.SeedRedis(t, addr, StateDBNum, testutil.Tables{
		"BGP_NEIGHBOR_TABLE": {
			"10.0.0.57": {"state": "Established"},
			"fc00::72":  {"state": "Connect"},
		},
	})

	got, err := d.BGPSessionStates(context.Background())
	if err != nil {
		t.Fatalf("BGPSessionStates: %v", err)
	}
	want := map[string]string{"10.0.0.57": "Established", "fc00::72": "Connect"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BGPSessionStates mismatch (-want +got):\n%s", diff)
	}
}

func TestIntegration_RoutePackets(t *testing.T) {
	d := connectTestDevice(t)
	addr := testutil.RedisAddr()
	testutil.FlushDB(t, addr, CountersDBNum)
	testutil.WriteSingleEntry(t, addr, CountersDBNum, "", "COUNTERS_ROUTE_NAME_MAP",
		map[string]string{"1.1.1.0/24": "oid:0x1600000000034d"})
	testutil.WriteSingleEntry(t, addr, CountersDBNum, "", "COUNTERS:oid:0x1600000000034d",
		map[string]string{"SAI_COUNTER_STAT_PACKETS": "7", "SAI_COUNTER_STAT_BYTES": "700"})

	n, err := d.RoutePackets(context.Background(), "1.1.1.0/24")
	if err != nil {
		t.Fatalf("RoutePackets: %v", err)
	}
	if n != 7 {
		t.Errorf("RoutePackets = %d, want 7", n)
	}

	if _, err := d.RoutePackets(context.Background(), "9.9.9.0/24"); err == nil {
		t.Error("expected error for prefix without a counter")
	}
}
