package wire

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

const (
	flagHeartbeat_Endianness byte = 1 << 0
	flagHeartbeat_Final      byte = 1 << 1 // F
	flagHeartbeat_Liveliness byte = 1 << 2 // L
)

// Heartbeat announces the range of sequence numbers a writer holds
// (spec.md §4.4: "F/L flags").
type Heartbeat struct {
	ReaderId   types.EntityId
	WriterId   types.EntityId
	FirstSN    types.SequenceNumber
	LastSN     types.SequenceNumber
	Count      int32
	Final      bool
	Liveliness bool
}

// Encode serializes the Heartbeat submessage.
func (h Heartbeat) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagHeartbeat_Endianness
	}
	if h.Final {
		flags |= flagHeartbeat_Final
	}
	if h.Liveliness {
		flags |= flagHeartbeat_Liveliness
	}

	body := make([]byte, 0, 28)
	body = append(body, EncodeEntityId(h.ReaderId)...)
	body = append(body, EncodeEntityId(h.WriterId)...)
	body = append(body, EncodeSequenceNumber(order, h.FirstSN)...)
	body = append(body, EncodeSequenceNumber(order, h.LastSN)...)
	cnt := make([]byte, 4)
	order.PutUint32(cnt, uint32(h.Count))
	body = append(body, cnt...)

	hdr := SubmessageHeader{ID: KindHeartbeat, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeHeartbeat parses a Heartbeat submessage body.
func DecodeHeartbeat(hdr SubmessageHeader, buf []byte) (Heartbeat, error) {
	order := byteOrder(hdr.LittleEndian())
	if len(buf) < 28 {
		return Heartbeat{}, rtpserrors.NewProtocolError("truncated HEARTBEAT submessage")
	}
	readerId, err := DecodeEntityId(buf[0:])
	if err != nil {
		return Heartbeat{}, err
	}
	writerId, err := DecodeEntityId(buf[4:])
	if err != nil {
		return Heartbeat{}, err
	}
	firstSN, err := DecodeSequenceNumber(order, buf[8:])
	if err != nil {
		return Heartbeat{}, err
	}
	lastSN, err := DecodeSequenceNumber(order, buf[16:])
	if err != nil {
		return Heartbeat{}, err
	}
	count := int32(order.Uint32(buf[24:28]))
	return Heartbeat{
		ReaderId: readerId, WriterId: writerId, FirstSN: firstSN, LastSN: lastSN, Count: count,
		Final:      hdr.Flags&flagHeartbeat_Final != 0,
		Liveliness: hdr.Flags&flagHeartbeat_Liveliness != 0,
	}, nil
}

const flagHeartbeatFrag_Endianness byte = 1 << 0

// HeartbeatFrag announces how many fragments of one change are available
// (spec.md §4.4).
type HeartbeatFrag struct {
	ReaderId        types.EntityId
	WriterId        types.EntityId
	WriterSN        types.SequenceNumber
	LastFragmentNum types.FragmentNumber
	Count           int32
}

// Encode serializes the HeartbeatFrag submessage.
func (h HeartbeatFrag) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagHeartbeatFrag_Endianness
	}
	body := make([]byte, 0, 24)
	body = append(body, EncodeEntityId(h.ReaderId)...)
	body = append(body, EncodeEntityId(h.WriterId)...)
	body = append(body, EncodeSequenceNumber(order, h.WriterSN)...)
	lfn := make([]byte, 4)
	order.PutUint32(lfn, uint32(h.LastFragmentNum))
	body = append(body, lfn...)
	cnt := make([]byte, 4)
	order.PutUint32(cnt, uint32(h.Count))
	body = append(body, cnt...)

	hdr := SubmessageHeader{ID: KindHeartbeatFrag, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeHeartbeatFrag parses a HeartbeatFrag submessage body.
func DecodeHeartbeatFrag(hdr SubmessageHeader, buf []byte) (HeartbeatFrag, error) {
	order := byteOrder(hdr.LittleEndian())
	if len(buf) < 24 {
		return HeartbeatFrag{}, rtpserrors.NewProtocolError("truncated HEARTBEAT_FRAG submessage")
	}
	readerId, err := DecodeEntityId(buf[0:])
	if err != nil {
		return HeartbeatFrag{}, err
	}
	writerId, err := DecodeEntityId(buf[4:])
	if err != nil {
		return HeartbeatFrag{}, err
	}
	sn, err := DecodeSequenceNumber(order, buf[8:])
	if err != nil {
		return HeartbeatFrag{}, err
	}
	lastFrag := types.FragmentNumber(order.Uint32(buf[16:20]))
	count := int32(order.Uint32(buf[20:24]))
	return HeartbeatFrag{ReaderId: readerId, WriterId: writerId, WriterSN: sn, LastFragmentNum: lastFrag, Count: count}, nil
}
