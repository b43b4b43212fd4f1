package dataplane

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Mask compares received frames against an expected frame, ignoring the
// bytes marked don't-care.
type Mask struct {
	expected []byte
	care     []bool
}

// NewMask returns a mask that cares about every byte of expected.
func NewMask(expected []byte) *Mask {
	care := make([]bool, len(expected))
	for i := range care {
		care[i] = true
	}
	return &Mask{expected: append([]byte(nil), expected...), care: care}
}

// DontCare ignores length bytes starting at offset.
func (m *Mask) DontCare(offset, length int) {
	for i := offset; i < offset+length && i < len(m.care); i++ {
		if i >= 0 {
			m.care[i] = false
		}
	}
}

// Matches reports whether frame carries the expected bytes at every cared
// position. Bytes past the expected length (padding) are ignored.
func (m *Mask) Matches(frame []byte) bool {
	if len(frame) < len(m.expected) {
		return false
	}
	for i, c := range m.care {
		if c && frame[i] != m.expected[i] {
			return false
		}
	}
	return true
}

// ProbeMask builds the mask used to recognize a routed probe: the switch
// rewrites both MAC addresses and decrements the TTL (IPv4, which also
// changes the header checksum) or hop limit (IPv6).
func ProbeMask(frame []byte) (*Mask, error) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return nil, fmt.Errorf("frame has no Ethernet header")
	}
	m := NewMask(frame)
	m.DontCare(0, 6)  // dst MAC
	m.DontCare(6, 6)  // src MAC
	ipStart := len(eth.Contents)

	switch pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		m.DontCare(ipStart+8, 1)  // TTL
		m.DontCare(ipStart+10, 2) // header checksum
	case *layers.IPv6:
		m.DontCare(ipStart+7, 1) // hop limit
	default:
		return nil, fmt.Errorf("frame carries neither IPv4 nor IPv6")
	}
	return m, nil
}
