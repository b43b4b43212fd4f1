//go:build linux

package dataplane

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/gopacket/afpacket"

	"github.com/newtron-network/routecheck/pkg/netlinkwrapper"
	"github.com/newtron-network/routecheck/pkg/util"
)

const portQueueLen = 1024

// AFPacket drives traffic-host ports through AF_PACKET sockets. Each port
// has a reader goroutine queueing received frames until Recv or Flush.
type AFPacket struct {
	netLink netlinkwrapper.NetLink
	ports   map[int]*afPort
}

type afPort struct {
	name   string
	handle *afpacket.TPacket
	frames chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
}

// OpenAFPacket opens one AF_PACKET socket per entry of ifaces (port index ->
// interface name, e.g. 3 -> "eth3").
func OpenAFPacket(ifaces map[int]string, nl netlinkwrapper.NetLink) (*AFPacket, error) {
	d := &AFPacket{netLink: nl, ports: make(map[int]*afPort, len(ifaces))}
	for idx, name := range ifaces {
		handle, err := afpacket.NewTPacket(
			afpacket.OptInterface(name),
			afpacket.OptPollTimeout(50*time.Millisecond),
		)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("opening AF_PACKET on %s: %w", name, err)
		}
		p := &afPort{
			name:   name,
			handle: handle,
			frames: make(chan []byte, portQueueLen),
			done:   make(chan struct{}),
		}
		p.wg.Add(1)
		go p.readLoop()
		d.ports[idx] = p
	}
	util.Debugf("dataplane: opened %d ports", len(d.ports))
	return d, nil
}

func (p *afPort) readLoop() {
	defer p.wg.Done()
	for {
		data, _, err := p.handle.ReadPacketData()
		select {
		case <-p.done:
			return
		default:
		}
		if err != nil {
			if !errors.Is(err, afpacket.ErrTimeout) {
				util.WithField("interface", p.name).Debugf("read: %v", err)
			}
			continue
		}
		frame := append([]byte(nil), data...)
		select {
		case p.frames <- frame:
		default:
			// Queue full; the oldest unread frames are the ones that matter.
		}
	}
}

// Ports returns the open port indices in ascending order.
func (d *AFPacket) Ports() []int {
	idx := make([]int, 0, len(d.ports))
	for i := range d.ports {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Flush discards every queued frame.
func (d *AFPacket) Flush() {
	for _, p := range d.ports {
		for drained := false; !drained; {
			select {
			case <-p.frames:
			default:
				drained = true
			}
		}
	}
}

// Send transmits frame on port.
func (d *AFPacket) Send(port int, frame []byte) error {
	p, ok := d.ports[port]
	if !ok {
		return fmt.Errorf("port %d not open", port)
	}
	return p.handle.WritePacketData(frame)
}

// Recv returns the next queued frame of port without blocking.
func (d *AFPacket) Recv(port int) ([]byte, bool, error) {
	p, ok := d.ports[port]
	if !ok {
		return nil, false, fmt.Errorf("port %d not open", port)
	}
	select {
	case f := <-p.frames:
		return f, true, nil
	default:
		return nil, false, nil
	}
}

// MAC returns the hardware address of port's interface.
func (d *AFPacket) MAC(port int) (net.HardwareAddr, error) {
	p, ok := d.ports[port]
	if !ok {
		return nil, fmt.Errorf("port %d not open", port)
	}
	link, err := d.netLink.LinkByName(p.name)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", p.name, err)
	}
	return link.Attrs().HardwareAddr, nil
}

// Close stops every reader and closes the sockets.
func (d *AFPacket) Close() error {
	for _, p := range d.ports {
		close(p.done)
		p.wg.Wait()
		p.handle.Close()
	}
	d.ports = nil
	return nil
}
