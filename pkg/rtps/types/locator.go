package types

import (
	"fmt"
	"net"
)

// LocatorKind identifies the transport kind a Locator addresses
// (spec.md §3).
type LocatorKind int32

const (
	LocatorKindInvalid LocatorKind = 0
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
	LocatorKindTCPv4    LocatorKind = 4
	LocatorKindTCPv6    LocatorKind = 8
	// LocatorKindSHM is the base kind for shared-memory locators; the
	// actual kind value is LocatorKindSHM + major version, per spec.md §3.
	LocatorKindSHM LocatorKind = 16
)

// LocatorAddressSize is the fixed width of a locator's address field.
const LocatorAddressSize = 16

// Locator is a transport-level address: a kind, a port, and a 128-bit
// address (IPv4 addresses are stored in the last 4 bytes, IPv6 in full;
// SHM locators encode a segment id in the address bytes).
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [LocatorAddressSize]byte
}

// LocatorInvalid is the all-zero, kind-invalid sentinel locator.
var LocatorInvalid = Locator{Kind: LocatorKindInvalid}

// IsMulticast reports whether the locator's address is a multicast
// address, for UDP/TCP kinds.
func (l Locator) IsMulticast() bool {
	ip := l.IP()
	return ip != nil && ip.IsMulticast()
}

// IP renders the address bytes as a net.IP for UDP/TCP kinds (nil for SHM).
func (l Locator) IP() net.IP {
	switch l.Kind {
	case LocatorKindUDPv4, LocatorKindTCPv4:
		return net.IP(l.Address[12:16])
	case LocatorKindUDPv6, LocatorKindTCPv6:
		return net.IP(l.Address[:])
	default:
		return nil
	}
}

// LocatorFromUDPAddr builds a UDPv4/UDPv6 locator from a resolved address.
func LocatorFromUDPAddr(addr *net.UDPAddr) Locator {
	var loc Locator
	loc.Port = uint32(addr.Port)
	if ip4 := addr.IP.To4(); ip4 != nil {
		loc.Kind = LocatorKindUDPv4
		copy(loc.Address[12:], ip4)
	} else {
		loc.Kind = LocatorKindUDPv6
		copy(loc.Address[:], addr.IP.To16())
	}
	return loc
}

func (l Locator) String() string {
	switch l.Kind {
	case LocatorKindUDPv4, LocatorKindTCPv4, LocatorKindUDPv6, LocatorKindTCPv6:
		return fmt.Sprintf("%s://%s:%d", l.kindName(), l.IP(), l.Port)
	case LocatorKindInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("shm(%d)://%x:%d", l.Kind-LocatorKindSHM, l.Address, l.Port)
	}
}

func (l Locator) kindName() string {
	switch l.Kind {
	case LocatorKindUDPv4:
		return "udpv4"
	case LocatorKindUDPv6:
		return "udpv6"
	case LocatorKindTCPv4:
		return "tcpv4"
	case LocatorKindTCPv6:
		return "tcpv6"
	default:
		return "unknown"
	}
}

// Equal reports whether two locators address the same kind/port/address.
func (l Locator) Equal(o Locator) bool {
	return l.Kind == o.Kind && l.Port == o.Port && l.Address == o.Address
}

// Externality is the distance class of a locator in an externality map:
// 0 means local/loopback, higher means progressively more remote. Cost
// further tie-breaks locators of equal externality (spec.md §4.5).
type Externality struct {
	Class int
	Cost  int
}

// LocalExternality is the default (local, cheapest) externality.
var LocalExternality = Externality{Class: 0, Cost: 1}

// ShmExternality is cheaper than any network locator (spec.md §4.5:
// "SHM has cost 0").
var ShmExternality = Externality{Class: 0, Cost: 0}

// Less orders externalities for tie-break purposes: lower class wins,
// then lower cost.
func (e Externality) Less(o Externality) bool {
	if e.Class != o.Class {
		return e.Class < o.Class
	}
	return e.Cost < o.Cost
}
