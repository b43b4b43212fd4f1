//go:build linux

// Package hostbind assigns next-hop addresses to traffic-host interfaces so
// the switch can resolve them, and removes them again.
package hostbind

import (
	"fmt"
	"net/netip"
	"syscall"

	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/newtron-network/routecheck/pkg/netlinkwrapper"
	"github.com/newtron-network/routecheck/pkg/util"
)

// Binder adds and removes interface addresses through netlink.
type Binder struct {
	netLink netlinkwrapper.NetLink
	sysctl  func(name []string, value string) error
}

// New creates a Binder using nl.
func New(nl netlinkwrapper.NetLink) *Binder {
	return &Binder{netLink: nl, sysctl: writeSysctl}
}

// Bind assigns addr/prefixLen to iface and brings the link up. An address
// already present is not an error.
//
// All traffic-host ports sit in the same VLAN, so with the kernel defaults
// every port would answer an ARP request for any bound IPv4 address. Before
// an IPv4 address is bound, iface is set to answer only for its own
// addresses (arp_ignore=1) and to source ARP from them (arp_announce=2).
// The settings are left in place on Unbind.
func (b *Binder) Bind(iface string, addr netip.Addr, prefixLen int) error {
	link, err := b.netLink.LinkByName(iface)
	if err != nil {
		return errors.Wrapf(err, "hostbind: unable to get link for device '%s'", iface)
	}
	nlAddr, err := b.parse(addr, prefixLen)
	if err != nil {
		return err
	}
	if addr.Unmap().Is4() {
		if err := b.isolateARP(iface); err != nil {
			return err
		}
	} else {
		// Skip duplicate address detection so the address answers NDP at once.
		nlAddr.Flags |= unix.IFA_F_NODAD
	}

	if err := b.netLink.AddrAdd(link, nlAddr); err != nil && !errors.Is(err, syscall.EEXIST) {
		return errors.Wrapf(err, "hostbind: unable to add %s to %s", nlAddr.IPNet, iface)
	}
	if err := b.netLink.LinkSetUp(link); err != nil {
		return errors.Wrapf(err, "hostbind: unable to bring up %s", iface)
	}
	util.WithField("interface", iface).Debugf("bound %s/%d", addr, prefixLen)
	return nil
}

// Unbind removes addr/prefixLen from iface. An address that is not present
// is not an error.
func (b *Binder) Unbind(iface string, addr netip.Addr, prefixLen int) error {
	link, err := b.netLink.LinkByName(iface)
	if err != nil {
		return errors.Wrapf(err, "hostbind: unable to get link for device '%s'", iface)
	}
	nlAddr, err := b.parse(addr, prefixLen)
	if err != nil {
		return err
	}
	if err := b.netLink.AddrDel(link, nlAddr); err != nil && !errors.Is(err, syscall.EADDRNOTAVAIL) {
		return errors.Wrapf(err, "hostbind: unable to delete %s from %s", nlAddr.IPNet, iface)
	}
	util.WithField("interface", iface).Debugf("unbound %s/%d", addr, prefixLen)
	return nil
}

func (b *Binder) isolateARP(iface string) error {
	for _, s := range []struct{ key, value string }{
		{"arp_ignore", "1"},
		{"arp_announce", "2"},
	} {
		if err := b.sysctl([]string{"net", "ipv4", "conf", iface, s.key}, s.value); err != nil {
			return errors.Wrapf(err, "hostbind: unable to set %s on %s", s.key, iface)
		}
	}
	return nil
}

func (b *Binder) parse(addr netip.Addr, prefixLen int) (*netlink.Addr, error) {
	if !addr.IsValid() {
		return nil, errors.New("hostbind: invalid address")
	}
	if prefixLen < 0 || prefixLen > addr.BitLen() {
		return nil, errors.Errorf("hostbind: prefix length %d out of range for %s", prefixLen, addr)
	}
	nlAddr, err := b.netLink.ParseAddr(fmt.Sprintf("%s/%d", addr, prefixLen))
	if err != nil {
		return nil, errors.Wrapf(err, "hostbind: unable to parse %s/%d", addr, prefixLen)
	}
	return nlAddr, nil
}
