package discovery

import (
	"encoding/binary"
	"time"

	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// BuiltinEndpointSet is the bitmask a participant advertises in PID_BUILTIN_ENDPOINT_SET,
// naming which of its builtin SPDP/SEDP endpoints are present (RTPS 2.3 §8.5.3.3).
type BuiltinEndpointSet uint32

const (
	BuiltinParticipantAnnouncer BuiltinEndpointSet = 1 << 0
	BuiltinParticipantDetector  BuiltinEndpointSet = 1 << 1
	BuiltinPublicationAnnouncer BuiltinEndpointSet = 1 << 2
	BuiltinPublicationDetector  BuiltinEndpointSet = 1 << 3
	BuiltinSubscriptionAnnouncer BuiltinEndpointSet = 1 << 4
	BuiltinSubscriptionDetector BuiltinEndpointSet = 1 << 5
)

// Has reports whether every bit in want is set in s.
func (s BuiltinEndpointSet) Has(want BuiltinEndpointSet) bool { return s&want == want }

// ParticipantProxyData is what SIMPLE PDP exchanges for a remote
// participant (spec.md §4.6): its identity, the locators its builtin and
// user endpoints are reachable at, which builtin endpoints it runs, and
// the lease duration governing how long it is presumed alive without a
// fresh announcement.
type ParticipantProxyData struct {
	GuidPrefix types.GuidPrefix

	MetatrafficUnicastLocators   []types.Locator
	MetatrafficMulticastLocators []types.Locator
	DefaultUnicastLocators       []types.Locator
	DefaultMulticastLocators     []types.Locator

	AvailableBuiltinEndpoints BuiltinEndpointSet
	LeaseDuration             time.Duration
	UserData                  []byte
}

// Encode renders p as a parameter list suitable for a DATA(p) submessage
// payload.
func (p ParticipantProxyData) Encode() wire.ParameterList {
	var pl wire.ParameterList
	pl = append(pl, wire.Parameter{ID: wire.PIDParticipantGuid, Value: wire.EncodeGuidPrefix(p.GuidPrefix)})
	for _, l := range p.MetatrafficUnicastLocators {
		pl = append(pl, wire.Parameter{ID: wire.PIDMetatrafficUnicastLoc, Value: wire.EncodeLocator(l)})
	}
	for _, l := range p.MetatrafficMulticastLocators {
		pl = append(pl, wire.Parameter{ID: wire.PIDMetatrafficMulticastLoc, Value: wire.EncodeLocator(l)})
	}
	for _, l := range p.DefaultUnicastLocators {
		pl = append(pl, wire.Parameter{ID: wire.PIDDefaultUnicastLocator, Value: wire.EncodeLocator(l)})
	}
	for _, l := range p.DefaultMulticastLocators {
		pl = append(pl, wire.Parameter{ID: wire.PIDDefaultMulticastLocator, Value: wire.EncodeLocator(l)})
	}
	bes := make([]byte, 4)
	binary.LittleEndian.PutUint32(bes, uint32(p.AvailableBuiltinEndpoints))
	pl = append(pl, wire.Parameter{ID: wire.PIDBuiltinEndpointSet, Value: bes})

	lease := make([]byte, 8)
	binary.LittleEndian.PutUint32(lease[0:4], uint32(p.LeaseDuration/time.Second))
	binary.LittleEndian.PutUint32(lease[4:8], uint32((p.LeaseDuration%time.Second)*4294967296/time.Second))
	pl = append(pl, wire.Parameter{ID: wire.PIDParticipantLeaseDuration, Value: lease})

	if p.UserData != nil {
		pl = append(pl, wire.Parameter{ID: wire.PIDUserData, Value: p.UserData})
	}
	return pl
}

// DecodeParticipantProxyData parses a DATA(p) payload's parameter list.
func DecodeParticipantProxyData(pl wire.ParameterList) (ParticipantProxyData, error) {
	var p ParticipantProxyData
	if v, ok := pl.Get(wire.PIDParticipantGuid); ok {
		prefix, err := wire.DecodeGuidPrefix(v)
		if err != nil {
			return p, err
		}
		p.GuidPrefix = prefix
	}
	for _, param := range pl {
		switch param.ID {
		case wire.PIDMetatrafficUnicastLoc:
			if loc, _, err := wire.DecodeLocator(param.Value); err == nil {
				p.MetatrafficUnicastLocators = append(p.MetatrafficUnicastLocators, loc)
			}
		case wire.PIDMetatrafficMulticastLoc:
			if loc, _, err := wire.DecodeLocator(param.Value); err == nil {
				p.MetatrafficMulticastLocators = append(p.MetatrafficMulticastLocators, loc)
			}
		case wire.PIDDefaultUnicastLocator:
			if loc, _, err := wire.DecodeLocator(param.Value); err == nil {
				p.DefaultUnicastLocators = append(p.DefaultUnicastLocators, loc)
			}
		case wire.PIDDefaultMulticastLocator:
			if loc, _, err := wire.DecodeLocator(param.Value); err == nil {
				p.DefaultMulticastLocators = append(p.DefaultMulticastLocators, loc)
			}
		case wire.PIDBuiltinEndpointSet:
			if len(param.Value) >= 4 {
				p.AvailableBuiltinEndpoints = BuiltinEndpointSet(binary.LittleEndian.Uint32(param.Value))
			}
		case wire.PIDParticipantLeaseDuration:
			if len(param.Value) >= 8 {
				sec := binary.LittleEndian.Uint32(param.Value[0:4])
				frac := binary.LittleEndian.Uint32(param.Value[4:8])
				p.LeaseDuration = time.Duration(sec)*time.Second + time.Duration(int64(frac)*int64(time.Second)/4294967296)
			}
		case wire.PIDUserData:
			p.UserData = append([]byte(nil), param.Value...)
		}
	}
	return p, nil
}

// EndpointProxyData is the common shape of WriterProxyData and
// ReaderProxyData (spec.md §4.6): an endpoint's identity, topic/type, QoS,
// and the locators it is reachable at when they differ from its
// participant's defaults.
type EndpointProxyData struct {
	GUID      types.GUID
	Policies  qos.Policies
	Unicast   []types.Locator
	Multicast []types.Locator
}

// Encode renders the endpoint identity, topic/type and matching-relevant
// QoS as a parameter list for a DATA(w)/DATA(r) submessage payload.
func (e EndpointProxyData) Encode() wire.ParameterList {
	var pl wire.ParameterList
	pl = append(pl, wire.Parameter{ID: wire.PIDEndpointGuid, Value: append(wire.EncodeGuidPrefix(e.GUID.Prefix), wire.EncodeEntityId(e.GUID.Entity)...)})
	pl = append(pl, wire.Parameter{ID: wire.PIDTopicName, Value: []byte(e.Policies.TopicName)})
	pl = append(pl, wire.Parameter{ID: wire.PIDTypeName, Value: []byte(e.Policies.TypeName)})

	rel := make([]byte, 4)
	if e.Policies.Reliability == qos.Reliable {
		rel[3] = 1
	}
	pl = append(pl, wire.Parameter{ID: wire.PIDReliability, Value: rel})

	dur := make([]byte, 4)
	binary.LittleEndian.PutUint32(dur, uint32(e.Policies.Durability))
	pl = append(pl, wire.Parameter{ID: wire.PIDDurability, Value: dur})

	own := make([]byte, 4)
	if e.Policies.Ownership == qos.ExclusiveOwnership {
		own[3] = 1
	}
	pl = append(pl, wire.Parameter{ID: wire.PIDOwnership, Value: own})

	if e.Policies.Ownership == qos.ExclusiveOwnership {
		strength := make([]byte, 4)
		binary.LittleEndian.PutUint32(strength, uint32(e.Policies.OwnershipStrength))
		pl = append(pl, wire.Parameter{ID: wire.PIDOwnershipStrength, Value: strength})
	}

	for _, part := range e.Policies.Partitions {
		pl = append(pl, wire.Parameter{ID: wire.PIDPartition, Value: []byte(part)})
	}
	if e.Policies.TypeInformation != nil {
		pl = append(pl, wire.Parameter{ID: wire.PIDTypeInformation, Value: e.Policies.TypeInformation})
	}
	for _, l := range e.Unicast {
		pl = append(pl, wire.Parameter{ID: wire.PIDUnicastLocator, Value: wire.EncodeLocator(l)})
	}
	for _, l := range e.Multicast {
		pl = append(pl, wire.Parameter{ID: wire.PIDMulticastLocator, Value: wire.EncodeLocator(l)})
	}
	return pl
}

// DecodeEndpointProxyData parses a DATA(w)/DATA(r) payload's parameter
// list.
func DecodeEndpointProxyData(pl wire.ParameterList) (EndpointProxyData, error) {
	var e EndpointProxyData
	if v, ok := pl.Get(wire.PIDEndpointGuid); ok && len(v) >= 16 {
		prefix, err := wire.DecodeGuidPrefix(v[:types.GuidPrefixSize])
		if err != nil {
			return e, err
		}
		entity, err := wire.DecodeEntityId(v[types.GuidPrefixSize:])
		if err != nil {
			return e, err
		}
		e.GUID = types.GUID{Prefix: prefix, Entity: entity}
	}
	if v, ok := pl.Get(wire.PIDTopicName); ok {
		e.Policies.TopicName = string(v)
	}
	if v, ok := pl.Get(wire.PIDTypeName); ok {
		e.Policies.TypeName = string(v)
	}
	if v, ok := pl.Get(wire.PIDReliability); ok && len(v) >= 4 && v[3] == 1 {
		e.Policies.Reliability = qos.Reliable
	}
	if v, ok := pl.Get(wire.PIDDurability); ok && len(v) >= 4 {
		e.Policies.Durability = qos.DurabilityKind(binary.LittleEndian.Uint32(v))
	}
	if v, ok := pl.Get(wire.PIDOwnership); ok && len(v) >= 4 && v[3] == 1 {
		e.Policies.Ownership = qos.ExclusiveOwnership
	}
	if v, ok := pl.Get(wire.PIDOwnershipStrength); ok && len(v) >= 4 {
		e.Policies.OwnershipStrength = int32(binary.LittleEndian.Uint32(v))
	}
	if v, ok := pl.Get(wire.PIDTypeInformation); ok {
		e.Policies.TypeInformation = append([]byte(nil), v...)
	}
	for _, param := range pl {
		switch param.ID {
		case wire.PIDPartition:
			e.Policies.Partitions = append(e.Policies.Partitions, string(param.Value))
		case wire.PIDUnicastLocator:
			if loc, _, err := wire.DecodeLocator(param.Value); err == nil {
				e.Unicast = append(e.Unicast, loc)
			}
		case wire.PIDMulticastLocator:
			if loc, _, err := wire.DecodeLocator(param.Value); err == nil {
				e.Multicast = append(e.Multicast, loc)
			}
		}
	}
	return e, nil
}
