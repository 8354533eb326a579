package wire

import (
	"encoding/binary"
	"time"

	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

const (
	flagInfoTS_Endianness byte = 1 << 0
	flagInfoTS_Invalidate byte = 1 << 1
)

// rtpsEpoch is the RTPS timestamp epoch (1970-01-01, same as Unix).
var rtpsEpoch = time.Unix(0, 0).UTC()

// InfoTimestamp updates the source timestamp applied to subsequent
// submessages in the same message (spec.md §4.9 step 2). Invalidate,
// when set, means "no timestamp applies" (RTPS 2.3 §9.4.5.9).
type InfoTimestamp struct {
	Timestamp  time.Time
	Invalidate bool
}

// Encode serializes the InfoTimestamp submessage.
func (t InfoTimestamp) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagInfoTS_Endianness
	}
	if t.Invalidate {
		flags |= flagInfoTS_Invalidate
		hdr := SubmessageHeader{ID: KindInfoTimestamp, Flags: flags, OctetsToNextHeader: 0}
		return hdr.Encode(order)
	}

	sec := int32(t.Timestamp.Sub(rtpsEpoch).Seconds())
	frac := rtpsFraction(t.Timestamp)
	body := make([]byte, 8)
	order.PutUint32(body[0:4], uint32(sec))
	order.PutUint32(body[4:8], frac)

	hdr := SubmessageHeader{ID: KindInfoTimestamp, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// rtpsFraction converts the sub-second part of t into RTPS's 1/2^32
// second fractional unit.
func rtpsFraction(t time.Time) uint32 {
	nsec := t.Sub(t.Truncate(time.Second)).Nanoseconds()
	return uint32((nsec * (1 << 32)) / int64(time.Second))
}

// DecodeInfoTimestamp parses an InfoTimestamp submessage body.
func DecodeInfoTimestamp(hdr SubmessageHeader, buf []byte) (InfoTimestamp, error) {
	if hdr.Flags&flagInfoTS_Invalidate != 0 {
		return InfoTimestamp{Invalidate: true}, nil
	}
	order := byteOrder(hdr.LittleEndian())
	if len(buf) < 8 {
		return InfoTimestamp{}, rtpserrors.NewProtocolError("truncated INFO_TS submessage")
	}
	sec := int32(order.Uint32(buf[0:4]))
	frac := order.Uint32(buf[4:8])
	nsec := (int64(frac) * int64(time.Second)) / (1 << 32)
	ts := rtpsEpoch.Add(time.Duration(sec)*time.Second + time.Duration(nsec))
	return InfoTimestamp{Timestamp: ts}, nil
}

const flagInfoDst_Endianness byte = 1 << 0

// InfoDestination restricts subsequent submessages to a guid prefix
// (spec.md §4.9 step 2).
type InfoDestination struct {
	GuidPrefix types.GuidPrefix
}

// Encode serializes the InfoDestination submessage.
func (d InfoDestination) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagInfoDst_Endianness
	}
	body := EncodeGuidPrefix(d.GuidPrefix)
	hdr := SubmessageHeader{ID: KindInfoDest, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeInfoDestination parses an InfoDestination submessage body.
func DecodeInfoDestination(hdr SubmessageHeader, buf []byte) (InfoDestination, error) {
	prefix, err := DecodeGuidPrefix(buf)
	if err != nil {
		return InfoDestination{}, err
	}
	return InfoDestination{GuidPrefix: prefix}, nil
}

const flagInfoSrc_Endianness byte = 1 << 0

// InfoSource identifies the true origin of subsequent submessages when
// relayed through an intermediary (RTPS 2.3 §9.4.5.10).
type InfoSource struct {
	Version    ProtocolVersion
	VendorId   VendorId
	GuidPrefix types.GuidPrefix
}

// Encode serializes the InfoSource submessage.
func (s InfoSource) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagInfoSrc_Endianness
	}
	body := make([]byte, 0, 16)
	body = append(body, 0, 0, 0, 0) // unused
	body = append(body, s.Version.Major, s.Version.Minor, s.VendorId[0], s.VendorId[1])
	body = append(body, EncodeGuidPrefix(s.GuidPrefix)...)
	hdr := SubmessageHeader{ID: KindInfoSource, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeInfoSource parses an InfoSource submessage body.
func DecodeInfoSource(hdr SubmessageHeader, buf []byte) (InfoSource, error) {
	if len(buf) < 16 {
		return InfoSource{}, rtpserrors.NewProtocolError("truncated INFO_SRC submessage")
	}
	var s InfoSource
	s.Version = ProtocolVersion{Major: buf[4], Minor: buf[5]}
	s.VendorId = VendorId{buf[6], buf[7]}
	prefix, err := DecodeGuidPrefix(buf[8:20])
	if err != nil {
		return InfoSource{}, err
	}
	s.GuidPrefix = prefix
	return s, nil
}

const flagInfoReply_Endianness byte = 1 << 0
const flagInfoReply_Multicast byte = 1 << 1

// InfoReply supplies locators a reply to this message should be sent to
// (RTPS 2.3 §9.4.5.11).
type InfoReply struct {
	UnicastLocators   []types.Locator
	MulticastLocators []types.Locator
}

// Encode serializes the InfoReply submessage.
func (r InfoReply) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagInfoReply_Endianness
	}
	hasMulticast := len(r.MulticastLocators) > 0
	if hasMulticast {
		flags |= flagInfoReply_Multicast
	}

	var body []byte
	body = append(body, encodeLocatorList(order, r.UnicastLocators)...)
	if hasMulticast {
		body = append(body, encodeLocatorList(order, r.MulticastLocators)...)
	}
	hdr := SubmessageHeader{ID: KindInfoReply, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

func encodeLocatorList(order binary.ByteOrder, locs []types.Locator) []byte {
	out := make([]byte, 4)
	order.PutUint32(out, uint32(len(locs)))
	for _, l := range locs {
		out = append(out, EncodeLocator(l)...)
	}
	return out
}

// DecodeInfoReply parses an InfoReply submessage body.
func DecodeInfoReply(hdr SubmessageHeader, buf []byte) (InfoReply, error) {
	order := byteOrder(hdr.LittleEndian())
	var r InfoReply
	uni, n, err := decodeLocatorList(order, buf)
	if err != nil {
		return InfoReply{}, err
	}
	r.UnicastLocators = uni
	if hdr.Flags&flagInfoReply_Multicast != 0 {
		mc, _, err := decodeLocatorList(order, buf[n:])
		if err != nil {
			return InfoReply{}, err
		}
		r.MulticastLocators = mc
	}
	return r, nil
}

func decodeLocatorList(order binary.ByteOrder, buf []byte) ([]types.Locator, int, error) {
	if len(buf) < 4 {
		return nil, 0, rtpserrors.NewProtocolError("truncated locator list count")
	}
	count := int(order.Uint32(buf[0:4]))
	pos := 4
	out := make([]types.Locator, 0, count)
	for i := 0; i < count; i++ {
		loc, n, err := DecodeLocator(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, loc)
		pos += n
	}
	return out, pos, nil
}
