package device

import (
	"context"
	"errors"
	"testing"

	"github.com/newtron-network/routecheck/pkg/util"
)

func TestDevice_NotConnected(t *testing.T) {
	d := New(Profile{Name: "switch1"})
	ctx := context.Background()

	if _, err := d.Exec(ctx, "show version"); !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("Exec error = %v, want ErrNotConnected", err)
	}
	if err := d.SetEntry(ctx, "STATIC_ROUTE", "1.1.1.0/24", map[string]string{"nexthop": "192.168.0.2"}); !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("SetEntry error = %v, want ErrNotConnected", err)
	}
	if err := d.DeleteEntry(ctx, "STATIC_ROUTE", "1.1.1.0/24"); !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("DeleteEntry error = %v, want ErrNotConnected", err)
	}
	if _, err := d.MuxStates(ctx); !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("MuxStates error = %v, want ErrNotConnected", err)
	}
	if _, err := d.RoutePackets(ctx, "1.1.1.0/24"); !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("RoutePackets error = %v, want ErrNotConnected", err)
	}
	if d.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
	if err := d.Disconnect(); err != nil {
		t.Errorf("Disconnect on unconnected device: %v", err)
	}
}

func TestDevice_Accessors(t *testing.T) {
	d := New(Profile{Name: "switch1", Platform: "x86_64-cel_e1031-r0"})
	if d.Name() != "switch1" {
		t.Errorf("Name() = %q, want %q", d.Name(), "switch1")
	}
	if d.Platform() != "x86_64-cel_e1031-r0" {
		t.Errorf("Platform() = %q, want %q", d.Platform(), "x86_64-cel_e1031-r0")
	}
}

func TestDevice_RouterMACFromProfile(t *testing.T) {
	d := New(Profile{Name: "switch1", RouterMAC: "52:54:00:12:34:56"})
	mac, err := d.RouterMAC(context.Background())
	if err != nil {
		t.Fatalf("RouterMAC: %v", err)
	}
	if mac.String() != "52:54:00:12:34:56" {
		t.Errorf("RouterMAC() = %s, want 52:54:00:12:34:56", mac)
	}
}

func TestDevice_RouterMACInvalid(t *testing.T) {
	d := New(Profile{Name: "switch1", RouterMAC: "not-a-mac"})
	if _, err := d.RouterMAC(context.Background()); err == nil {
		t.Error("expected error for invalid router MAC")
	}
}
