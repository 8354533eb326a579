package wire

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

const flagGap_Endianness byte = 1 << 0

// Gap marks a range of sequence numbers as irrelevant — never sent and
// never to be expected (spec.md §4.4).
type Gap struct {
	ReaderId types.EntityId
	WriterId types.EntityId
	GapStart types.SequenceNumber
	GapList  types.SequenceNumberSet
}

// Encode serializes the Gap submessage.
func (g Gap) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagGap_Endianness
	}
	body := make([]byte, 0, 32)
	body = append(body, EncodeEntityId(g.ReaderId)...)
	body = append(body, EncodeEntityId(g.WriterId)...)
	body = append(body, EncodeSequenceNumber(order, g.GapStart)...)
	body = append(body, EncodeSequenceNumberSet(order, g.GapList)...)

	hdr := SubmessageHeader{ID: KindGap, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeGap parses a Gap submessage body.
func DecodeGap(hdr SubmessageHeader, buf []byte) (Gap, error) {
	order := byteOrder(hdr.LittleEndian())
	if len(buf) < 16 {
		return Gap{}, rtpserrors.NewProtocolError("truncated GAP submessage")
	}
	readerId, err := DecodeEntityId(buf[0:])
	if err != nil {
		return Gap{}, err
	}
	writerId, err := DecodeEntityId(buf[4:])
	if err != nil {
		return Gap{}, err
	}
	gapStart, err := DecodeSequenceNumber(order, buf[8:])
	if err != nil {
		return Gap{}, err
	}
	gapList, _, err := DecodeSequenceNumberSet(order, buf[16:])
	if err != nil {
		return Gap{}, err
	}
	return Gap{ReaderId: readerId, WriterId: writerId, GapStart: gapStart, GapList: gapList}, nil
}
