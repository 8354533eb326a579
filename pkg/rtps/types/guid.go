// Package types holds the RTPS wire-adjacent value types shared across the
// core: GUIDs, sequence numbers, locators and cache changes. Nothing in
// this package performs I/O or owns mutable state — it is the vocabulary
// the rest of pkg/rtps is written in.
package types

import (
	"encoding/binary"
	"fmt"
)

// GuidPrefixSize is the number of bytes in a participant's GUID prefix.
const GuidPrefixSize = 12

// EntityIdSize is the number of bytes in an entity id.
const EntityIdSize = 4

// GuidPrefix identifies a participant uniquely within the domain.
type GuidPrefix [GuidPrefixSize]byte

func (p GuidPrefix) String() string {
	return fmt.Sprintf("%x", [GuidPrefixSize]byte(p))
}

// IsUnknown reports whether p is the all-zero sentinel prefix.
func (p GuidPrefix) IsUnknown() bool {
	return p == GuidPrefix{}
}

// EntityKind is the low byte of an EntityId, encoding the entity's kind.
type EntityKind byte

// Well-known entity kinds (RTPS 2.3 §9.3.1.2).
const (
	EntityKindUnknown                    EntityKind = 0x00
	EntityKindParticipant                EntityKind = 0xc1
	EntityKindWriterWithKey               EntityKind = 0x02
	EntityKindWriterNoKey                 EntityKind = 0x03
	EntityKindReaderNoKey                 EntityKind = 0x04
	EntityKindReaderWithKey                EntityKind = 0x07
	EntityKindWriterGroup                 EntityKind = 0x08
	EntityKindReaderGroup                 EntityKind = 0x09
	EntityKindBuiltinParticipantWriter     EntityKind = 0xc2
	EntityKindBuiltinParticipantReader     EntityKind = 0xc7
	EntityKindBuiltinPublicationsWriter    EntityKind = 0xc3
	EntityKindBuiltinPublicationsReader    EntityKind = 0xc4
	EntityKindBuiltinSubscriptionsWriter   EntityKind = 0xc5
	EntityKindBuiltinSubscriptionsReader   EntityKind = 0xc6
)

// EntityId identifies an endpoint (or the participant pseudo-endpoint)
// within a participant.
type EntityId struct {
	Key  [3]byte
	Kind EntityKind
}

// EntityIdParticipant is the well-known entity id of a participant itself.
var EntityIdParticipant = EntityId{Key: [3]byte{0, 0, 1}, Kind: EntityKindParticipant}

// EntityIdSPDPWriter/Reader are the well-known builtin SPDP endpoints.
var (
	EntityIdSPDPWriter = EntityId{Key: [3]byte{0, 1, 0}, Kind: EntityKindBuiltinParticipantWriter}
	EntityIdSPDPReader = EntityId{Key: [3]byte{0, 1, 0}, Kind: EntityKindBuiltinParticipantReader}
)

// EntityIdSEDPPublicationsWriter/Reader and Subscriptions equivalents are
// the well-known builtin EDP endpoints.
var (
	EntityIdSEDPPubWriter  = EntityId{Key: [3]byte{0, 3, 0}, Kind: EntityKindBuiltinPublicationsWriter}
	EntityIdSEDPPubReader  = EntityId{Key: [3]byte{0, 3, 0}, Kind: EntityKindBuiltinPublicationsReader}
	EntityIdSEDPSubWriter  = EntityId{Key: [3]byte{0, 4, 0}, Kind: EntityKindBuiltinSubscriptionsWriter}
	EntityIdSEDPSubReader  = EntityId{Key: [3]byte{0, 4, 0}, Kind: EntityKindBuiltinSubscriptionsReader}
)

func (e EntityId) String() string {
	return fmt.Sprintf("%02x%02x%02x.%02x", e.Key[0], e.Key[1], e.Key[2], byte(e.Kind))
}

// IsBuiltin reports whether the entity kind's high bit marks it builtin.
func (e EntityId) IsBuiltin() bool {
	return byte(e.Kind)&0xc0 == 0xc0
}

// IsWriter reports whether the entity kind denotes a writer-like endpoint.
func (e EntityId) IsWriter() bool {
	switch e.Kind {
	case EntityKindWriterWithKey, EntityKindWriterNoKey, EntityKindWriterGroup,
		EntityKindBuiltinParticipantWriter, EntityKindBuiltinPublicationsWriter,
		EntityKindBuiltinSubscriptionsWriter:
		return true
	}
	return false
}

// GUID globally identifies a participant (when EntityId ==
// EntityIdParticipant) or one of its endpoints.
type GUID struct {
	Prefix GuidPrefix
	Entity EntityId
}

func (g GUID) String() string {
	return fmt.Sprintf("%s:%s", g.Prefix, g.Entity)
}

// Bytes renders the GUID in its 16-byte wire form.
func (g GUID) Bytes() [16]byte {
	var out [16]byte
	copy(out[:12], g.Prefix[:])
	copy(out[12:15], g.Entity.Key[:])
	out[15] = byte(g.Entity.Kind)
	return out
}

// GUIDFromBytes parses the 16-byte wire form produced by Bytes.
func GUIDFromBytes(b [16]byte) GUID {
	var g GUID
	copy(g.Prefix[:], b[:12])
	copy(g.Entity.Key[:], b[12:15])
	g.Entity.Kind = EntityKind(b[15])
	return g
}

// NextUserEntityKey derives a monotonically increasing user entity key from
// a counter, used when auto-generating EntityIds for locally created
// endpoints (spec.md §4.9 "caller-supplied or auto-generated").
func NextUserEntityKey(counter uint32) [3]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], counter)
	return [3]byte{b[1], b[2], b[3]}
}
