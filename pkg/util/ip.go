package util

import (
	"fmt"
	"math/big"
	"net/netip"
	"strings"
)

// Family is an IP address family.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "ipv6"
	}
	return "ipv4"
}

// IsV6 reports whether f is the IPv6 family.
func (f Family) IsV6() bool {
	return f == FamilyV6
}

// ParseFamily accepts "ipv4"/"v4"/"4" and "ipv6"/"v6"/"6".
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ipv4", "v4", "4":
		return FamilyV4, nil
	case "ipv6", "v6", "6":
		return FamilyV6, nil
	}
	return FamilyV4, fmt.Errorf("unknown address family %q", s)
}

// FamilyOf returns the family of addr; IPv4-mapped IPv6 addresses count as IPv4.
func FamilyOf(addr netip.Addr) Family {
	if addr.Unmap().Is4() {
		return FamilyV4
	}
	return FamilyV6
}

// HostAt returns the address at offset inside p, counting from the network
// address (offset 0). It fails if the offset falls outside the prefix.
func HostAt(p netip.Prefix, offset int) (netip.Addr, error) {
	if !p.IsValid() {
		return netip.Addr{}, fmt.Errorf("invalid prefix")
	}
	if offset < 0 {
		return netip.Addr{}, fmt.Errorf("negative offset %d", offset)
	}
	p = p.Masked()
	base := p.Addr()
	hostBits := base.BitLen() - p.Bits()
	if hostBits < 63 && uint64(offset) >= uint64(1)<<hostBits {
		return netip.Addr{}, fmt.Errorf("offset %d outside %s", offset, p)
	}

	raw := base.AsSlice()
	n := new(big.Int).SetBytes(raw)
	n.Add(n, big.NewInt(int64(offset)))
	buf := n.FillBytes(make([]byte, len(raw)))
	addr, ok := netip.AddrFromSlice(buf)
	if !ok {
		return netip.Addr{}, fmt.Errorf("offset %d outside %s", offset, p)
	}
	return addr, nil
}

// FirstHost returns the first host address of p (network address + 1).
func FirstHost(p netip.Prefix) (netip.Addr, error) {
	return HostAt(p, 1)
}

// ParseAddrWithMask parses "addr/len" keeping the host bits, and also accepts a
// bare address.
func ParseAddrWithMask(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		pfx, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("invalid CIDR notation: %s", s)
		}
		return pfx.Addr(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid address: %s", s)
	}
	return addr, nil
}
