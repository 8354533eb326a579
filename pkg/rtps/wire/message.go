package wire

// Encodable is implemented by every submessage body type in this package;
// Encode renders the submessage (header included) in the requested
// endianness.
type Encodable interface {
	Encode(littleEndian bool) []byte
}

// Message is one complete RTPS message: fixed header plus an ordered list
// of submessages (spec.md §6).
type Message struct {
	Header      MessageHeader
	LittleEndian bool
	Submessages []Encodable
}

// Encode serializes the full message.
func (m Message) Encode() []byte {
	buf := m.Header.Encode()
	for _, sm := range m.Submessages {
		buf = append(buf, sm.Encode(m.LittleEndian)...)
	}
	return buf
}

// DecodedSubmessage pairs a raw submessage's kind with its parsed body
// (exactly one of the typed fields below is set), so a caller can type
// switch without re-decoding.
type DecodedSubmessage struct {
	Kind SubmessageKind

	Data          *Data
	DataFrag      *DataFrag
	Heartbeat     *Heartbeat
	HeartbeatFrag *HeartbeatFrag
	AckNack       *AckNack
	NackFrag      *NackFrag
	Gap           *Gap
	InfoTimestamp *InfoTimestamp
	InfoDest      *InfoDestination
	InfoSource    *InfoSource
	InfoReply     *InfoReply
}

// DecodeMessage parses a full RTPS message: the fixed header, then every
// submessage in order. Submessages of unrecognized kind are skipped
// (forward-compatibility with future submessage kinds), matching the
// spirit of spec.md §4.4's "overflow aborts the message, not the
// session" — an unknown kind is not an overflow, just not ours to act on.
func DecodeMessage(buf []byte) (MessageHeader, []DecodedSubmessage, error) {
	hdr, err := DecodeMessageHeader(buf)
	if err != nil {
		return MessageHeader{}, nil, err
	}
	raws, err := SplitSubmessages(buf[MessageHeaderSize:])
	if err != nil {
		return MessageHeader{}, nil, err
	}

	out := make([]DecodedSubmessage, 0, len(raws))
	for _, raw := range raws {
		ds := DecodedSubmessage{Kind: raw.Header.ID}
		switch raw.Header.ID {
		case KindData:
			v, err := DecodeData(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.Data = &v
		case KindDataFrag:
			v, err := DecodeDataFrag(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.DataFrag = &v
		case KindHeartbeat:
			v, err := DecodeHeartbeat(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.Heartbeat = &v
		case KindHeartbeatFrag:
			v, err := DecodeHeartbeatFrag(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.HeartbeatFrag = &v
		case KindAckNack:
			v, err := DecodeAckNack(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.AckNack = &v
		case KindNackFrag:
			v, err := DecodeNackFrag(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.NackFrag = &v
		case KindGap:
			v, err := DecodeGap(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.Gap = &v
		case KindInfoTimestamp:
			v, err := DecodeInfoTimestamp(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.InfoTimestamp = &v
		case KindInfoDest:
			v, err := DecodeInfoDestination(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.InfoDest = &v
		case KindInfoSource:
			v, err := DecodeInfoSource(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.InfoSource = &v
		case KindInfoReply:
			v, err := DecodeInfoReply(raw.Header, raw.Body)
			if err != nil {
				return MessageHeader{}, nil, err
			}
			ds.InfoReply = &v
		case KindPad:
			continue
		default:
			continue
		}
		out = append(out, ds)
	}
	return hdr, out, nil
}
