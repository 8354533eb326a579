package participant

import (
	"net"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// Well-known port formula constants (spec.md §6: "port = PB + DG*domain_id
// + offset + PG*participant_id").
const (
	wellKnownPB = 7400
	wellKnownDG = 250
	wellKnownPG = 2
)

// Offsets select which of the four well-known port families a locator
// belongs to (spec.md §6, RTPS 2.3 §9.6.1.1).
const (
	offsetMetatrafficMulticast = 0
	offsetMetatrafficUnicast   = 1
	offsetUserMulticast        = 10
	offsetUserUnicast          = 11
)

// spdpMulticastAddress is the SPDP well-known multicast group. spec.md §6
// gives only the port formula; it does not name the multicast address, so
// this uses the OMG RTPS 2.3 standard default (§9.6.1.4.1 "SPDP_WELL_KNOWN_
// MULTICAST_ADDRESS"). Every RTPS-conformant peer shares this default, and
// original_source configures the same address, so there is nothing
// implementation-specific to decide here.
const spdpMulticastAddress = "239.255.0.1"

// wellKnownPort computes the well-known port for domainId/participantId
// at offset (one of the offsetXxx constants above).
func wellKnownPort(domainId, participantId, offset int) uint32 {
	return uint32(wellKnownPB + wellKnownDG*domainId + offset + wellKnownPG*participantId)
}

// spdpMulticastLocator returns the well-known SPDP multicast locator for
// domainId, the destination SimplePDP announces DATA(p) to in SIMPLE
// discovery mode (spec.md §4.6: "sends a DATA(p) ... to the well-known
// multicast address at port PB + DG*domain_id + d0").
func spdpMulticastLocator(domainId int) types.Locator {
	loc := types.LocatorFromUDPAddr(&net.UDPAddr{
		IP:   net.ParseIP(spdpMulticastAddress),
		Port: int(wellKnownPort(domainId, 0, offsetMetatrafficMulticast)),
	})
	return loc
}

// metatrafficUnicastPort / userUnicastPort / userMulticastPort are the
// remaining three well-known port families a participant binds its
// builtin and user-endpoint transports to.
func metatrafficUnicastPort(domainId, participantId int) uint32 {
	return wellKnownPort(domainId, participantId, offsetMetatrafficUnicast)
}

func userUnicastPort(domainId, participantId int) uint32 {
	return wellKnownPort(domainId, participantId, offsetUserUnicast)
}

func userMulticastPort(domainId, participantId int) uint32 {
	return wellKnownPort(domainId, participantId, offsetUserMulticast)
}
