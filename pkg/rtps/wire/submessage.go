package wire

import (
	"encoding/binary"

	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
)

// SubmessageKind identifies the RTPS submessage id byte (spec.md §4.4/§6).
type SubmessageKind byte

const (
	KindPad           SubmessageKind = 0x01
	KindAckNack       SubmessageKind = 0x06
	KindHeartbeat     SubmessageKind = 0x07
	KindGap           SubmessageKind = 0x08
	KindInfoTimestamp SubmessageKind = 0x09
	KindInfoSource    SubmessageKind = 0x0c
	KindInfoReply     SubmessageKind = 0x0f
	KindInfoDest      SubmessageKind = 0x0e
	KindNackFrag      SubmessageKind = 0x12
	KindHeartbeatFrag SubmessageKind = 0x13
	KindData          SubmessageKind = 0x15
	KindDataFrag      SubmessageKind = 0x16
)

// SubmessageHeaderSize is the fixed 4-byte submessage header width
// (spec.md §4.4).
const SubmessageHeaderSize = 4

// SubmessageHeader is the 4-byte header prefixing every submessage.
type SubmessageHeader struct {
	ID                 SubmessageKind
	Flags              byte
	OctetsToNextHeader uint16
}

// LittleEndian reports the endianness flag (bit 0).
func (h SubmessageHeader) LittleEndian() bool { return h.Flags&0x01 != 0 }

// Encode writes the 4-byte submessage header in the given byte order.
func (h SubmessageHeader) Encode(order binary.ByteOrder) []byte {
	buf := make([]byte, SubmessageHeaderSize)
	buf[0] = byte(h.ID)
	buf[1] = h.Flags
	order.PutUint16(buf[2:4], h.OctetsToNextHeader)
	return buf
}

// DecodeSubmessageHeader parses a 4-byte submessage header. The flags
// byte is order-independent, so the header's own endianness bit is read
// first and then selects the byte order of its length field.
func DecodeSubmessageHeader(buf []byte) (SubmessageHeader, int, error) {
	if len(buf) < SubmessageHeaderSize {
		return SubmessageHeader{}, 0, rtpserrors.NewProtocolError("truncated submessage header")
	}
	h := SubmessageHeader{ID: SubmessageKind(buf[0]), Flags: buf[1]}
	order := byteOrder(h.LittleEndian())
	h.OctetsToNextHeader = order.Uint16(buf[2:4])
	return h, SubmessageHeaderSize, nil
}

// RawSubmessage is an undecoded submessage: its header plus body bytes,
// produced while walking a message buffer before dispatching each body to
// its kind-specific decoder.
type RawSubmessage struct {
	Header SubmessageHeader
	Body   []byte
}

// SplitSubmessages walks buf, validating OctetsToNextHeader against the
// remaining buffer length at each step (spec.md §4.4: "overflow aborts
// the message, not the session"). A submessage with OctetsToNextHeader==0
// is only legal for the last submessage in the message (RTPS 2.3 §9.4.1);
// this implementation treats OctetsToNextHeader==0 as "runs to the end of
// the message" wherever it appears, which makes that submessage the last.
func SplitSubmessages(buf []byte) ([]RawSubmessage, error) {
	var out []RawSubmessage
	for len(buf) > 0 {
		hdr, n, err := DecodeSubmessageHeader(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]
		bodyLen := int(hdr.OctetsToNextHeader)
		if bodyLen == 0 {
			bodyLen = len(buf)
		}
		if bodyLen > len(buf) {
			return nil, rtpserrors.NewProtocolError(
				"submessage %#x octets_to_next_header=%d exceeds remaining buffer %d",
				hdr.ID, hdr.OctetsToNextHeader, len(buf))
		}
		out = append(out, RawSubmessage{Header: hdr, Body: buf[:bodyLen]})
		buf = buf[bodyLen:]
	}
	return out, nil
}
