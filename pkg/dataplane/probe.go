// Package dataplane builds probe frames with gopacket and sends/receives them
// on the traffic host's emulated ports.
package dataplane

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/newtron-network/routecheck/pkg/util"
)

// Probe defaults.
const (
	DefaultIPv4Src   = "1.1.1.1"
	DefaultIPv6Src   = "2001:db8:85a3::8a2e:370:7334"
	DefaultTTL       = 64
	DefaultSrcPort   = 1234
	DefaultDstPort   = 4321
	DefaultFrameSize = 100
)

// TCPProbe describes one TCP probe frame.
type TCPProbe struct {
	EthDst  net.HardwareAddr
	EthSrc  net.HardwareAddr
	Src     netip.Addr
	Dst     netip.Addr
	TTL     uint8
	SrcPort uint16
	DstPort uint16
	// FrameSize pads the frame with zero payload up to this many bytes.
	FrameSize int
}

// NewTCPProbe returns a probe to dst with the default source address of
// dst's family, TTL/hop limit, ports and frame size.
func NewTCPProbe(ethDst, ethSrc net.HardwareAddr, dst netip.Addr) *TCPProbe {
	src := netip.MustParseAddr(DefaultIPv4Src)
	if util.FamilyOf(dst).IsV6() {
		src = netip.MustParseAddr(DefaultIPv6Src)
	}
	return &TCPProbe{
		EthDst:    ethDst,
		EthSrc:    ethSrc,
		Src:       src,
		Dst:       dst,
		TTL:       DefaultTTL,
		SrcPort:   DefaultSrcPort,
		DstPort:   DefaultDstPort,
		FrameSize: DefaultFrameSize,
	}
}

// Family returns the address family of the probe.
func (p *TCPProbe) Family() util.Family {
	return util.FamilyOf(p.Dst)
}

// Serialize renders the probe as an Ethernet frame with lengths and
// checksums filled in.
func (p *TCPProbe) Serialize() ([]byte, error) {
	if util.FamilyOf(p.Src) != util.FamilyOf(p.Dst) {
		return nil, fmt.Errorf("probe source %s and destination %s differ in family", p.Src, p.Dst)
	}

	eth := &layers.Ethernet{
		SrcMAC: p.EthSrc,
		DstMAC: p.EthDst,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(p.SrcPort),
		DstPort: layers.TCPPort(p.DstPort),
		Window:  8192,
		SYN:     true,
	}

	var ip gopacket.SerializableLayer
	headerLen := 14 + 20
	if p.Family().IsV6() {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip6 := &layers.IPv6{
			Version:    6,
			HopLimit:   p.TTL,
			NextHeader: layers.IPProtocolTCP,
			SrcIP:      p.Src.AsSlice(),
			DstIP:      p.Dst.AsSlice(),
		}
		if err := tcp.SetNetworkLayerForChecksum(ip6); err != nil {
			return nil, err
		}
		ip = ip6
		headerLen += 40
	} else {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip4 := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      p.TTL,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    p.Src.Unmap().AsSlice(),
			DstIP:    p.Dst.Unmap().AsSlice(),
		}
		if err := tcp.SetNetworkLayerForChecksum(ip4); err != nil {
			return nil, err
		}
		ip = ip4
		headerLen += 20
	}

	payload := make([]byte, max(p.FrameSize-headerLen, 0))
	for i := range payload {
		payload[i] = byte(i)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serializing probe: %w", err)
	}
	return buf.Bytes(), nil
}

// Describe decodes a frame into a one-line summary for logs and failure text.
func Describe(frame []byte) string {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	var src, dst, proto string
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		src, dst, proto = ip.SrcIP.String(), ip.DstIP.String(), fmt.Sprintf("ttl=%d", ip.TTL)
	case *layers.IPv6:
		src, dst, proto = ip.SrcIP.String(), ip.DstIP.String(), fmt.Sprintf("hlim=%d", ip.HopLimit)
	default:
		return fmt.Sprintf("non-IP frame, %d bytes", len(frame))
	}
	if tcp, ok := pkt.TransportLayer().(*layers.TCP); ok {
		return fmt.Sprintf("%s:%d > %s:%d %s, %d bytes", src, tcp.SrcPort, dst, tcp.DstPort, proto, len(frame))
	}
	return fmt.Sprintf("%s > %s %s, %d bytes", src, dst, proto, len(frame))
}
