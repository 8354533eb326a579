package wire

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// Data submessage flags (spec.md §4.4: "D/K/Q/N flags").
const (
	flagData_Endianness byte = 1 << 0
	flagData_InlineQos  byte = 1 << 1 // Q
	flagData_Data       byte = 1 << 2 // D
	flagData_Key        byte = 1 << 3 // K
	flagData_NonStandardPayload byte = 1 << 4 // N
)

// Data carries one sample or disposal (spec.md §4.4).
type Data struct {
	ReaderId           types.EntityId
	WriterId           types.EntityId
	WriterSN           types.SequenceNumber
	InlineQos          ParameterList
	SerializedPayload  []byte
	HasKey             bool // K flag: payload represents only the key, not the full sample
	NonStandardPayload bool
}

// Encode serializes the Data submessage body in the given byte order and
// returns it wrapped with its submessage header.
func (d Data) Encode(littleEndian bool) []byte {
	order := byteOrder(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= flagData_Endianness
	}
	hasQos := len(d.InlineQos) > 0
	if hasQos {
		flags |= flagData_InlineQos
	}
	hasPayload := len(d.SerializedPayload) > 0
	if hasPayload {
		flags |= flagData_Data
	}
	if d.HasKey {
		flags |= flagData_Key
	}
	if d.NonStandardPayload {
		flags |= flagData_NonStandardPayload
	}

	body := make([]byte, 0, 32+len(d.SerializedPayload))
	body = append(body, 0, 0) // extraFlags, reserved
	octetsToInlineQos := make([]byte, 2)
	order.PutUint16(octetsToInlineQos, 4+4+8) // readerId+writerId+seqnum, relative to end of this field
	body = append(body, octetsToInlineQos...)
	body = append(body, EncodeEntityId(d.ReaderId)...)
	body = append(body, EncodeEntityId(d.WriterId)...)
	body = append(body, EncodeSequenceNumber(order, d.WriterSN)...)
	if hasQos {
		body = append(body, d.InlineQos.Encode(order)...)
	}
	if hasPayload {
		body = append(body, d.SerializedPayload...)
	}

	hdr := SubmessageHeader{ID: KindData, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	return append(hdr.Encode(order), body...)
}

// DecodeData parses a Data submessage body (buf excludes the submessage
// header).
func DecodeData(hdr SubmessageHeader, buf []byte) (Data, error) {
	order := byteOrder(hdr.LittleEndian())
	if len(buf) < 4+4+4+8 {
		return Data{}, rtpserrors.NewProtocolError("truncated DATA submessage")
	}
	octetsToInlineQos := order.Uint16(buf[2:4])
	pos := 4
	readerId, err := DecodeEntityId(buf[pos:])
	if err != nil {
		return Data{}, err
	}
	pos += 4
	writerId, err := DecodeEntityId(buf[pos:])
	if err != nil {
		return Data{}, err
	}
	pos += 4
	sn, err := DecodeSequenceNumber(order, buf[pos:])
	if err != nil {
		return Data{}, err
	}
	pos += 8

	inlineQosStart := 4 + int(octetsToInlineQos)
	if inlineQosStart < pos {
		return Data{}, rtpserrors.NewProtocolError("DATA octets_to_inline_qos points before fixed fields")
	}
	pos = inlineQosStart

	d := Data{ReaderId: readerId, WriterId: writerId, WriterSN: sn,
		HasKey: hdr.Flags&flagData_Key != 0, NonStandardPayload: hdr.Flags&flagData_NonStandardPayload != 0}

	if hdr.Flags&flagData_InlineQos != 0 {
		if pos > len(buf) {
			return Data{}, rtpserrors.NewProtocolError("truncated DATA before inline qos")
		}
		pl, err := DecodeParameterList(buf[pos:], order, false)
		if err != nil {
			return Data{}, err
		}
		d.InlineQos = pl
		pos += len(pl.Encode(order))
	}

	if hdr.Flags&flagData_Data != 0 {
		if pos > len(buf) {
			return Data{}, rtpserrors.NewProtocolError("truncated DATA before serialized payload")
		}
		d.SerializedPayload = append([]byte(nil), buf[pos:]...)
	}

	return d, nil
}
