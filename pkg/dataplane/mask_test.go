package dataplane

import (
	"net/netip"
	"testing"
)

// routed simulates one forwarding hop: new MACs, TTL/hop limit decremented,
// IPv4 checksum changed.
func routed(frame []byte, v6 bool) []byte {
	out := append([]byte(nil), frame...)
	copy(out[0:6], []byte{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f})
	copy(out[6:12], []byte{0x52, 0x54, 0x00, 0xaa, 0xbb, 0xcc})
	if v6 {
		out[14+7]--
	} else {
		out[14+8]--
		out[14+10] ^= 0xff
		out[14+11] ^= 0xff
	}
	return out
}

func TestProbeMask(t *testing.T) {
	tests := []struct {
		name string
		dst  string
		v6   bool
	}{
		{"ipv4", "1.1.1.1", false},
		{"ipv6", "2000:1::1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewTCPProbe(routerMAC, portMAC, netip.MustParseAddr(tt.dst)).Serialize()
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			m, err := ProbeMask(frame)
			if err != nil {
				t.Fatalf("ProbeMask: %v", err)
			}

			if !m.Matches(frame) {
				t.Error("mask does not match the original frame")
			}
			if !m.Matches(routed(frame, tt.v6)) {
				t.Error("mask does not match the routed frame")
			}
			if !m.Matches(append(routed(frame, tt.v6), 0, 0, 0, 0)) {
				t.Error("mask does not match a padded frame")
			}
			if m.Matches(frame[:len(frame)-1]) {
				t.Error("mask matches a truncated frame")
			}

			other := routed(frame, tt.v6)
			other[len(other)-1] ^= 0xff // payload
			if m.Matches(other) {
				t.Error("mask matches a frame with a different payload")
			}
		})
	}
}

func TestProbeMask_DifferentDestination(t *testing.T) {
	a, _ := NewTCPProbe(routerMAC, portMAC, netip.MustParseAddr("1.1.1.1")).Serialize()
	b, _ := NewTCPProbe(routerMAC, portMAC, netip.MustParseAddr("2.2.2.1")).Serialize()
	m, err := ProbeMask(a)
	if err != nil {
		t.Fatalf("ProbeMask: %v", err)
	}
	if m.Matches(b) {
		t.Error("mask for 1.1.1.1 matches a probe to 2.2.2.1")
	}
}

func TestProbeMask_NotIP(t *testing.T) {
	arp := make([]byte, 60)
	arp[12], arp[13] = 0x08, 0x06
	if _, err := ProbeMask(arp); err == nil {
		t.Error("expected error for ARP frame")
	}
}

func TestMask_DontCareBounds(t *testing.T) {
	m := NewMask([]byte{1, 2, 3})
	m.DontCare(-1, 2)
	m.DontCare(2, 10)
	if !m.Matches([]byte{9, 2, 9}) {
		t.Error("out-of-range DontCare should clamp to the frame")
	}
	if m.Matches([]byte{9, 9, 9}) {
		t.Error("byte 1 is cared about")
	}
}
