package wire

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

const (
	flagAckNack_Endianness byte = 1 << 0
	flagAckNack_Final      byte = 1 << 1 // F
)

// AckNack reports a reader's received set and solicits retransmission
// (spec.md §4.4: "F flag").
type AckNack struct {
	ReaderId      types.EntityId
	WriterId      types.EntityId
	ReaderSNState types.SequenceNumberSet
	Count         int32
	Final         bool
}

// Encode serializes the AckNack submessage.
func (a AckNack) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagAckNack_Endianness
	}
	if a.Final {
		flags |= flagAckNack_Final
	}

	body := make([]byte, 0, 32)
	body = append(body, EncodeEntityId(a.ReaderId)...)
	body = append(body, EncodeEntityId(a.WriterId)...)
	body = append(body, EncodeSequenceNumberSet(order, a.ReaderSNState)...)
	cnt := make([]byte, 4)
	order.PutUint32(cnt, uint32(a.Count))
	body = append(body, cnt...)

	hdr := SubmessageHeader{ID: KindAckNack, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeAckNack parses an AckNack submessage body.
func DecodeAckNack(hdr SubmessageHeader, buf []byte) (AckNack, error) {
	order := byteOrder(hdr.LittleEndian())
	if len(buf) < 20 {
		return AckNack{}, rtpserrors.NewProtocolError("truncated ACKNACK submessage")
	}
	readerId, err := DecodeEntityId(buf[0:])
	if err != nil {
		return AckNack{}, err
	}
	writerId, err := DecodeEntityId(buf[4:])
	if err != nil {
		return AckNack{}, err
	}
	set, n, err := DecodeSequenceNumberSet(order, buf[8:])
	if err != nil {
		return AckNack{}, err
	}
	pos := 8 + n
	if len(buf) < pos+4 {
		return AckNack{}, rtpserrors.NewProtocolError("truncated ACKNACK count")
	}
	count := int32(order.Uint32(buf[pos : pos+4]))
	return AckNack{ReaderId: readerId, WriterId: writerId, ReaderSNState: set, Count: count,
		Final: hdr.Flags&flagAckNack_Final != 0}, nil
}

const flagNackFrag_Endianness byte = 1 << 0

// NackFrag requests retransmission of specific fragments of one change
// (spec.md §4.4).
type NackFrag struct {
	ReaderId       types.EntityId
	WriterId       types.EntityId
	WriterSN       types.SequenceNumber
	FragmentNumberState types.FragmentNumberSet
	Count          int32
}

// Encode serializes the NackFrag submessage.
func (n NackFrag) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagNackFrag_Endianness
	}
	body := make([]byte, 0, 32)
	body = append(body, EncodeEntityId(n.ReaderId)...)
	body = append(body, EncodeEntityId(n.WriterId)...)
	body = append(body, EncodeSequenceNumber(order, n.WriterSN)...)
	body = append(body, EncodeFragmentNumberSet(order, n.FragmentNumberState)...)
	cnt := make([]byte, 4)
	order.PutUint32(cnt, uint32(n.Count))
	body = append(body, cnt...)

	hdr := SubmessageHeader{ID: KindNackFrag, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeNackFrag parses a NackFrag submessage body.
func DecodeNackFrag(hdr SubmessageHeader, buf []byte) (NackFrag, error) {
	order := byteOrder(hdr.LittleEndian())
	if len(buf) < 16 {
		return NackFrag{}, rtpserrors.NewProtocolError("truncated NACK_FRAG submessage")
	}
	readerId, err := DecodeEntityId(buf[0:])
	if err != nil {
		return NackFrag{}, err
	}
	writerId, err := DecodeEntityId(buf[4:])
	if err != nil {
		return NackFrag{}, err
	}
	sn, err := DecodeSequenceNumber(order, buf[8:])
	if err != nil {
		return NackFrag{}, err
	}
	set, n, err := DecodeFragmentNumberSet(order, buf[16:])
	if err != nil {
		return NackFrag{}, err
	}
	pos := 16 + n
	if len(buf) < pos+4 {
		return NackFrag{}, rtpserrors.NewProtocolError("truncated NACK_FRAG count")
	}
	count := int32(order.Uint32(buf[pos : pos+4]))
	return NackFrag{ReaderId: readerId, WriterId: writerId, WriterSN: sn, FragmentNumberState: set, Count: count}, nil
}
