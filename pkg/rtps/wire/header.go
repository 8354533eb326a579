// Package wire (de)serializes RTPS 2.3 messages and submessages bit for
// bit (spec.md §4.4, §6, §8). Every submessage kind round-trips through
// Encode/Decode for both endianness flags, and the parameter-list codec
// recognizes the PIDs discovery depends on.
package wire

import (
	"encoding/binary"

	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// ProtocolName is the 4-byte magic at the start of every RTPS message.
var ProtocolName = [4]byte{'R', 'T', 'P', 'S'}

// ProtocolVersion is {major, minor}.
type ProtocolVersion struct {
	Major, Minor byte
}

// ProtocolVersion23 is the version this codec implements bit-exactly.
var ProtocolVersion23 = ProtocolVersion{Major: 2, Minor: 3}

// VendorId identifies the implementation that produced a message.
type VendorId [2]byte

// VendorIdThisImplementation is an unregistered, self-assigned vendor id.
var VendorIdThisImplementation = VendorId{0x01, 0xff}

// MessageHeaderSize is the fixed 20-byte RTPS message header width.
const MessageHeaderSize = 20

// MessageHeader is the fixed header prefixing every RTPS message
// (spec.md §6: "20-byte message header").
type MessageHeader struct {
	Version     ProtocolVersion
	VendorId    VendorId
	GuidPrefix  types.GuidPrefix
}

// Encode writes the 20-byte header.
func (h MessageHeader) Encode() []byte {
	buf := make([]byte, MessageHeaderSize)
	copy(buf[0:4], ProtocolName[:])
	buf[4] = h.Version.Major
	buf[5] = h.Version.Minor
	buf[6] = h.VendorId[0]
	buf[7] = h.VendorId[1]
	copy(buf[8:20], h.GuidPrefix[:])
	return buf
}

// DecodeMessageHeader parses the fixed header, validating the protocol
// magic (spec.md §4.9 step 1: "drop if protocol mismatch").
func DecodeMessageHeader(buf []byte) (MessageHeader, error) {
	if len(buf) < MessageHeaderSize {
		return MessageHeader{}, rtpserrors.NewProtocolError("message shorter than header (%d bytes)", len(buf))
	}
	if string(buf[0:4]) != string(ProtocolName[:]) {
		return MessageHeader{}, rtpserrors.NewProtocolError("bad protocol magic %q", buf[0:4])
	}
	var h MessageHeader
	h.Version = ProtocolVersion{Major: buf[4], Minor: buf[5]}
	h.VendorId = VendorId{buf[6], buf[7]}
	copy(h.GuidPrefix[:], buf[8:20])
	return h, nil
}

// byteOrder returns the binary.ByteOrder implied by a submessage's
// endianness flag bit (spec.md §4.4: "flag bit0 = endianness").
func byteOrder(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
