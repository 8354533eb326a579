package wire

import (
	"encoding/binary"

	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// LocatorWireSize is the fixed 24-byte wire width of a Locator.
const LocatorWireSize = 24

// EncodeLocator serializes a Locator in its fixed 24-byte wire form.
// spec.md §6 specifies this layout as little-endian regardless of the
// enclosing submessage's endianness flag, so it is coded here with an
// explicit binary.LittleEndian rather than the caller's byte order.
func EncodeLocator(loc types.Locator) []byte {
	buf := make([]byte, LocatorWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(loc.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], loc.Port)
	copy(buf[8:24], loc.Address[:])
	return buf
}

// DecodeLocator parses the fixed 24-byte wire form.
func DecodeLocator(buf []byte) (types.Locator, int, error) {
	if len(buf) < LocatorWireSize {
		return types.Locator{}, 0, rtpserrors.NewProtocolError("truncated locator")
	}
	var loc types.Locator
	loc.Kind = types.LocatorKind(int32(binary.LittleEndian.Uint32(buf[0:4])))
	loc.Port = binary.LittleEndian.Uint32(buf[4:8])
	copy(loc.Address[:], buf[8:24])
	return loc, LocatorWireSize, nil
}

// EncodeEntityId writes the 4-byte EntityId.
func EncodeEntityId(e types.EntityId) []byte {
	return []byte{e.Key[0], e.Key[1], e.Key[2], byte(e.Kind)}
}

// DecodeEntityId parses the 4-byte EntityId.
func DecodeEntityId(buf []byte) (types.EntityId, error) {
	if len(buf) < 4 {
		return types.EntityId{}, rtpserrors.NewProtocolError("truncated entity id")
	}
	return types.EntityId{Key: [3]byte{buf[0], buf[1], buf[2]}, Kind: types.EntityKind(buf[3])}, nil
}

// EncodeGuidPrefix writes the 12-byte GuidPrefix.
func EncodeGuidPrefix(p types.GuidPrefix) []byte {
	out := make([]byte, types.GuidPrefixSize)
	copy(out, p[:])
	return out
}

// DecodeGuidPrefix parses the 12-byte GuidPrefix.
func DecodeGuidPrefix(buf []byte) (types.GuidPrefix, error) {
	if len(buf) < types.GuidPrefixSize {
		return types.GuidPrefix{}, rtpserrors.NewProtocolError("truncated guid prefix")
	}
	var p types.GuidPrefix
	copy(p[:], buf[:types.GuidPrefixSize])
	return p, nil
}

// EncodeSequenceNumber writes the wire (high:i32, low:u32) form.
func EncodeSequenceNumber(order binary.ByteOrder, sn types.SequenceNumber) []byte {
	buf := make([]byte, 8)
	order.PutUint32(buf[0:4], uint32(sn.High()))
	order.PutUint32(buf[4:8], sn.Low())
	return buf
}

// DecodeSequenceNumber parses the wire (high:i32, low:u32) form.
func DecodeSequenceNumber(order binary.ByteOrder, buf []byte) (types.SequenceNumber, error) {
	if len(buf) < 8 {
		return 0, rtpserrors.NewProtocolError("truncated sequence number")
	}
	high := int32(order.Uint32(buf[0:4]))
	low := order.Uint32(buf[4:8])
	return types.SequenceNumberFromParts(high, low), nil
}

// EncodeSequenceNumberSet writes a SequenceNumberSet: base(8) +
// numBits(4) + ceil(numBits/32) 32-bit bitmap words.
func EncodeSequenceNumberSet(order binary.ByteOrder, s types.SequenceNumberSet) []byte {
	buf := EncodeSequenceNumber(order, s.Base)
	numBits := uint32(len(s.Bitmap))
	nb := make([]byte, 4)
	order.PutUint32(nb, numBits)
	buf = append(buf, nb...)
	words := (len(s.Bitmap) + 31) / 32
	for w := 0; w < words; w++ {
		var word uint32
		for b := 0; b < 32; b++ {
			i := w*32 + b
			if i >= len(s.Bitmap) {
				break
			}
			if s.Bitmap[i] {
				word |= 1 << (31 - b)
			}
		}
		wb := make([]byte, 4)
		order.PutUint32(wb, word)
		buf = append(buf, wb...)
	}
	return buf
}

// DecodeSequenceNumberSet parses a SequenceNumberSet, returning the
// number of bytes consumed.
func DecodeSequenceNumberSet(order binary.ByteOrder, buf []byte) (types.SequenceNumberSet, int, error) {
	base, err := DecodeSequenceNumber(order, buf)
	if err != nil {
		return types.SequenceNumberSet{}, 0, err
	}
	if len(buf) < 12 {
		return types.SequenceNumberSet{}, 0, rtpserrors.NewProtocolError("truncated sequence number set")
	}
	numBits := int(order.Uint32(buf[8:12]))
	if numBits > types.MaxSequenceNumberSetBits {
		return types.SequenceNumberSet{}, 0, rtpserrors.NewProtocolError("sequence number set numBits %d exceeds max %d", numBits, types.MaxSequenceNumberSetBits)
	}
	words := (numBits + 31) / 32
	n := 12 + words*4
	if len(buf) < n {
		return types.SequenceNumberSet{}, 0, rtpserrors.NewProtocolError("truncated sequence number set bitmap")
	}
	bitmap := make([]bool, numBits)
	for w := 0; w < words; w++ {
		word := order.Uint32(buf[12+w*4 : 16+w*4])
		for b := 0; b < 32; b++ {
			i := w*32 + b
			if i >= numBits {
				break
			}
			bitmap[i] = word&(1<<(31-b)) != 0
		}
	}
	return types.SequenceNumberSet{Base: base, Bitmap: bitmap}, n, nil
}

// EncodeFragmentNumberSet writes a FragmentNumberSet: base(4) + numBits(4)
// + bitmap words, mirroring EncodeSequenceNumberSet.
func EncodeFragmentNumberSet(order binary.ByteOrder, s types.FragmentNumberSet) []byte {
	buf := make([]byte, 4)
	order.PutUint32(buf, uint32(s.Base))
	numBits := uint32(len(s.Bitmap))
	nb := make([]byte, 4)
	order.PutUint32(nb, numBits)
	buf = append(buf, nb...)
	words := (len(s.Bitmap) + 31) / 32
	for w := 0; w < words; w++ {
		var word uint32
		for b := 0; b < 32; b++ {
			i := w*32 + b
			if i >= len(s.Bitmap) {
				break
			}
			if s.Bitmap[i] {
				word |= 1 << (31 - b)
			}
		}
		wb := make([]byte, 4)
		order.PutUint32(wb, word)
		buf = append(buf, wb...)
	}
	return buf
}

// DecodeFragmentNumberSet parses a FragmentNumberSet.
func DecodeFragmentNumberSet(order binary.ByteOrder, buf []byte) (types.FragmentNumberSet, int, error) {
	if len(buf) < 8 {
		return types.FragmentNumberSet{}, 0, rtpserrors.NewProtocolError("truncated fragment number set")
	}
	base := types.FragmentNumber(order.Uint32(buf[0:4]))
	numBits := int(order.Uint32(buf[4:8]))
	words := (numBits + 31) / 32
	n := 8 + words*4
	if len(buf) < n {
		return types.FragmentNumberSet{}, 0, rtpserrors.NewProtocolError("truncated fragment number set bitmap")
	}
	bitmap := make([]bool, numBits)
	for w := 0; w < words; w++ {
		word := order.Uint32(buf[8+w*4 : 12+w*4])
		for b := 0; b < 32; b++ {
			i := w*32 + b
			if i >= numBits {
				break
			}
			bitmap[i] = word&(1<<(31-b)) != 0
		}
	}
	return types.FragmentNumberSet{Base: base, Bitmap: bitmap}, n, nil
}
