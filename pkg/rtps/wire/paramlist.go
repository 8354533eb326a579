package wire

import (
	"encoding/binary"

	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
)

// ParameterId is the PID field of a parameter-list entry (spec.md §4.4).
type ParameterId uint16

// PIDs the codec must recognize for discovery and inline-qos (spec.md §4.4).
const (
	PIDPad                     ParameterId = 0x0000
	PIDSentinel                ParameterId = 0x0001
	PIDTopicName               ParameterId = 0x0005
	PIDTypeName                ParameterId = 0x0007
	PIDKeyHash                 ParameterId = 0x0070
	PIDDurability              ParameterId = 0x001d
	PIDDeadline                ParameterId = 0x0023
	PIDLatencyBudget           ParameterId = 0x0027
	PIDOwnership               ParameterId = 0x001f
	PIDOwnershipStrength       ParameterId = 0x0006
	PIDLiveliness              ParameterId = 0x001b
	PIDReliability             ParameterId = 0x001a
	PIDLifespan                ParameterId = 0x002b
	PIDUserData                ParameterId = 0x002c
	PIDTopicData               ParameterId = 0x002e
	PIDGroupData               ParameterId = 0x002d
	PIDPartition               ParameterId = 0x0029
	PIDPresentation            ParameterId = 0x0021
	PIDUnicastLocator          ParameterId = 0x002f
	PIDMulticastLocator        ParameterId = 0x0030
	PIDDefaultUnicastLocator   ParameterId = 0x0031
	PIDMetatrafficUnicastLoc   ParameterId = 0x0032
	PIDMetatrafficMulticastLoc ParameterId = 0x0033
	PIDEndpointGuid            ParameterId = 0x005a
	PIDParticipantGuid         ParameterId = 0x0050
	PIDBuiltinEndpointSet      ParameterId = 0x0058
	PIDParticipantLeaseDuration ParameterId = 0x0002
	PIDRelatedSampleIdentity   ParameterId = 0x0083
	PIDSampleIdentity          ParameterId = 0x0080
	PIDSecurityInfo            ParameterId = 0x0068
	PIDTypeInformation         ParameterId = 0x0075
	PIDContentFilterProperty   ParameterId = 0x0035
	PIDStatusInfo              ParameterId = 0x0071
	PIDVendorId                ParameterId = 0x0016
	PIDProtocolVersion         ParameterId = 0x0015
	PIDDefaultMulticastLocator ParameterId = 0x0048
)

// mustUnderstand is the set of PIDs that, per RTPS 2.3, a parser in
// strict mode must recognize or reject the message (spec.md §7,
// §8: "unknown-must-understand PIDs cause ProtocolError"). Everything not
// listed is treated as optional/skippable.
var mustUnderstand = map[ParameterId]bool{
	PIDTopicName:       true,
	PIDTypeName:        true,
	PIDEndpointGuid:    true,
	PIDParticipantGuid: true,
}

// Parameter is one TLV entry of a ParameterList.
type Parameter struct {
	ID    ParameterId
	Value []byte
}

// ParameterList is an ordered sequence of Parameters, used to encode QoS
// and inline-qos (spec.md §4.4).
type ParameterList []Parameter

// Get returns the first parameter with the given id, if present.
func (pl ParameterList) Get(id ParameterId) ([]byte, bool) {
	for _, p := range pl {
		if p.ID == id {
			return p.Value, true
		}
	}
	return nil, false
}

// Encode serializes the list as TLV entries, 4-byte aligned, terminated by
// PID_SENTINEL (spec.md §4.4).
func (pl ParameterList) Encode(order binary.ByteOrder) []byte {
	var buf []byte
	for _, p := range pl {
		buf = append(buf, encodeParam(order, p.ID, p.Value)...)
	}
	buf = append(buf, encodeParam(order, PIDSentinel, nil)...)
	return buf
}

func encodeParam(order binary.ByteOrder, id ParameterId, value []byte) []byte {
	padded := pad4(value)
	header := make([]byte, 4)
	order.PutUint16(header[0:2], uint16(id))
	order.PutUint16(header[2:4], uint16(len(padded)))
	return append(header, padded...)
}

func pad4(value []byte) []byte {
	rem := len(value) % 4
	if rem == 0 {
		return value
	}
	out := make([]byte, len(value)+(4-rem))
	copy(out, value)
	return out
}

// DecodeParameterList parses a TLV-encoded, sentinel-terminated parameter
// list. strict, when true, causes an unrecognized PID in mustUnderstand to
// produce a ProtocolError instead of being skipped (spec.md §8).
func DecodeParameterList(buf []byte, order binary.ByteOrder, strict bool) (ParameterList, error) {
	var out ParameterList
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, rtpserrors.NewProtocolError("truncated parameter header")
		}
		id := ParameterId(order.Uint16(buf[0:2]))
		length := int(order.Uint16(buf[2:4]))
		buf = buf[4:]
		if id == PIDSentinel {
			return out, nil
		}
		if length > len(buf) {
			return nil, rtpserrors.NewProtocolError("parameter %#x length %d exceeds remaining %d", id, length, len(buf))
		}
		value := buf[:length]
		buf = buf[length:]
		if strict && !recognized(id) && mustUnderstand[id] {
			return nil, rtpserrors.NewProtocolError("unrecognized must-understand PID %#x", id)
		}
		out = append(out, Parameter{ID: id, Value: value})
	}
	return nil, rtpserrors.NewProtocolError("parameter list missing PID_SENTINEL")
}

func recognized(id ParameterId) bool {
	switch id {
	case PIDPad, PIDSentinel, PIDTopicName, PIDTypeName, PIDKeyHash, PIDDurability,
		PIDDeadline, PIDLatencyBudget, PIDOwnership, PIDOwnershipStrength, PIDLiveliness,
		PIDReliability, PIDLifespan, PIDUserData, PIDTopicData, PIDGroupData, PIDPartition,
		PIDPresentation, PIDUnicastLocator, PIDMulticastLocator, PIDDefaultUnicastLocator,
		PIDMetatrafficUnicastLoc, PIDMetatrafficMulticastLoc, PIDEndpointGuid, PIDParticipantGuid,
		PIDBuiltinEndpointSet, PIDParticipantLeaseDuration, PIDRelatedSampleIdentity,
		PIDSampleIdentity, PIDSecurityInfo, PIDTypeInformation, PIDContentFilterProperty,
		PIDStatusInfo, PIDVendorId, PIDProtocolVersion, PIDDefaultMulticastLocator:
		return true
	default:
		return false
	}
}
