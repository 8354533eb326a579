package wire

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

const (
	flagDataFrag_Endianness byte = 1 << 0
	flagDataFrag_InlineQos  byte = 1 << 1
	flagDataFrag_Key        byte = 1 << 2
	flagDataFrag_NonStandardPayload byte = 1 << 3
)

// DataFrag carries one fragment of an oversize sample (spec.md §4.4).
type DataFrag struct {
	ReaderId              types.EntityId
	WriterId              types.EntityId
	WriterSN              types.SequenceNumber
	FragmentStartingNum   types.FragmentNumber
	FragmentsInSubmessage uint16
	FragmentSize          uint16
	SampleSize            uint32
	InlineQos             ParameterList
	SerializedPayload     []byte
	HasKey                bool
}

// Encode serializes the DataFrag submessage.
func (d DataFrag) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagDataFrag_Endianness
	}
	hasQos := len(d.InlineQos) > 0
	if hasQos {
		flags |= flagDataFrag_InlineQos
	}
	if d.HasKey {
		flags |= flagDataFrag_Key
	}

	body := make([]byte, 0, 40+len(d.SerializedPayload))
	body = append(body, 0, 0)
	octetsToInlineQos := make([]byte, 2)
	order.PutUint16(octetsToInlineQos, 4+4+8+4+2+2+4)
	body = append(body, octetsToInlineQos...)
	body = append(body, EncodeEntityId(d.ReaderId)...)
	body = append(body, EncodeEntityId(d.WriterId)...)
	body = append(body, EncodeSequenceNumber(order, d.WriterSN)...)

	fsn := make([]byte, 4)
	order.PutUint32(fsn, uint32(d.FragmentStartingNum))
	body = append(body, fsn...)

	fis := make([]byte, 2)
	order.PutUint16(fis, d.FragmentsInSubmessage)
	body = append(body, fis...)

	fsz := make([]byte, 2)
	order.PutUint16(fsz, d.FragmentSize)
	body = append(body, fsz...)

	ssz := make([]byte, 4)
	order.PutUint32(ssz, d.SampleSize)
	body = append(body, ssz...)

	if hasQos {
		body = append(body, d.InlineQos.Encode(order)...)
	}
	body = append(body, d.SerializedPayload...)

	hdr := SubmessageHeader{ID: KindDataFrag, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeDataFrag parses a DataFrag submessage body.
func DecodeDataFrag(hdr SubmessageHeader, buf []byte) (DataFrag, error) {
	order := byteOrder(hdr.LittleEndian())
	const fixedLen = 4 + 4 + 4 + 8 + 4 + 2 + 2 + 4
	if len(buf) < fixedLen {
		return DataFrag{}, rtpserrors.NewProtocolError("truncated DATA_FRAG submessage")
	}
	pos := 4
	readerId, err := DecodeEntityId(buf[pos:])
	if err != nil {
		return DataFrag{}, err
	}
	pos += 4
	writerId, err := DecodeEntityId(buf[pos:])
	if err != nil {
		return DataFrag{}, err
	}
	pos += 4
	sn, err := DecodeSequenceNumber(order, buf[pos:])
	if err != nil {
		return DataFrag{}, err
	}
	pos += 8
	fragStart := types.FragmentNumber(order.Uint32(buf[pos:]))
	pos += 4
	fragsInSub := order.Uint16(buf[pos:])
	pos += 2
	fragSize := order.Uint16(buf[pos:])
	pos += 2
	sampleSize := order.Uint32(buf[pos:])
	pos += 4

	d := DataFrag{
		ReaderId: readerId, WriterId: writerId, WriterSN: sn,
		FragmentStartingNum: fragStart, FragmentsInSubmessage: fragsInSub,
		FragmentSize: fragSize, SampleSize: sampleSize,
		HasKey: hdr.Flags&flagDataFrag_Key != 0,
	}

	if hdr.Flags&flagDataFrag_InlineQos != 0 {
		pl, err := DecodeParameterList(buf[pos:], order, false)
		if err != nil {
			return DataFrag{}, err
		}
		d.InlineQos = pl
		pos += len(pl.Encode(order))
	}

	if pos < len(buf) {
		d.SerializedPayload = append([]byte(nil), buf[pos:]...)
	}
	return d, nil
}
