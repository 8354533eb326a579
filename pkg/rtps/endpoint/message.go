package endpoint

import (
	"time"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// DefaultMaxMessageSize bounds a single RTPS message when a writer does
// not configure one explicitly (spec.md §4.2: "messages respect
// max_message_size").
const DefaultMaxMessageSize = 65500

// DefaultFragmentSize is the payload split point used when a writer does
// not configure fragment_size explicitly.
const DefaultFragmentSize = 1344

// statusInfoDisposed / statusInfoUnregistered are the bit flags of the
// 4-byte PID_STATUS_INFO inline-qos parameter (RTPS 2.3 §9.6.3.9).
const (
	statusInfoDisposed     = 1 << 0
	statusInfoUnregistered = 1 << 1
)

// buildInlineQos attaches PID_STATUS_INFO (for non-ALIVE changes) and
// PID_KEY_HASH (the instance handle) to a change's inline qos, matching
// what a reader's process_data_msg needs to recognize dispose/unregister
// notifications without a type adapter (spec.md §3, §4.3).
func buildInlineQos(c *types.CacheChange) wire.ParameterList {
	var pl wire.ParameterList
	if c.InstanceHandle != types.InstanceHandleNil {
		pl = append(pl, wire.Parameter{ID: wire.PIDKeyHash, Value: append([]byte(nil), c.InstanceHandle[:]...)})
	}
	if c.Kind != types.ChangeKindAlive {
		var bits uint32
		switch c.Kind {
		case types.ChangeKindNotAliveDisposed:
			bits = statusInfoDisposed
		case types.ChangeKindNotAliveUnregistered:
			bits = statusInfoUnregistered
		case types.ChangeKindNotAliveDisposedUnregistered:
			bits = statusInfoDisposed | statusInfoUnregistered
		}
		v := make([]byte, 4)
		v[3] = byte(bits)
		pl = append(pl, wire.Parameter{ID: wire.PIDStatusInfo, Value: v})
	}
	return pl
}

// buildDataSubmessages renders c as a single DATA submessage, or as a
// sequence of DATA_FRAG submessages when its payload exceeds
// fragmentSize. only, if non-nil, restricts fragment output to the
// fragment numbers it contains (spec.md §4.2 process_nackfrag /
// §4.3 process_data_frag_msg).
func buildDataSubmessages(readerId, writerId types.EntityId, c *types.CacheChange, fragmentSize uint32, only *types.FragmentNumberSet) []wire.Encodable {
	inlineQos := buildInlineQos(c)
	hasKey := c.Kind != types.ChangeKindAlive

	total := uint32(len(c.Payload))
	if fragmentSize == 0 || total <= fragmentSize {
		return []wire.Encodable{wire.Data{
			ReaderId: readerId, WriterId: writerId, WriterSN: c.SequenceNumber,
			InlineQos: inlineQos, SerializedPayload: c.Payload, HasKey: hasKey,
		}}
	}

	count := total / fragmentSize
	if total%fragmentSize != 0 {
		count++
	}
	out := make([]wire.Encodable, 0, count)
	for i := uint32(0); i < count; i++ {
		fn := types.FragmentNumber(i + 1)
		if only != nil && !only.Contains(fn) {
			continue
		}
		start := i * fragmentSize
		end := start + fragmentSize
		if end > total {
			end = total
		}
		df := wire.DataFrag{
			ReaderId: readerId, WriterId: writerId, WriterSN: c.SequenceNumber,
			FragmentStartingNum: fn, FragmentsInSubmessage: 1,
			FragmentSize: uint16(fragmentSize), SampleSize: total,
			SerializedPayload: c.Payload[start:end], HasKey: hasKey,
		}
		if i == 0 {
			df.InlineQos = inlineQos
		}
		out = append(out, df)
	}
	return out
}

// packMessages splits subs into one or more Messages, each no larger than
// maxMessageSize, preserving submessage order (spec.md §4.2: "messages
// respect max_message_size; oversize samples are fragmented"). A single
// submessage larger than maxMessageSize is still emitted alone rather than
// dropped — DATA_FRAG fragment sizing is the caller's job to keep within
// budget.
func packMessages(header wire.MessageHeader, littleEndian bool, subs []wire.Encodable, maxMessageSize int) []wire.Message {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	var out []wire.Message
	cur := wire.Message{Header: header, LittleEndian: littleEndian}
	curSize := wire.MessageHeaderSize
	for _, sm := range subs {
		n := len(sm.Encode(littleEndian))
		if curSize+n > maxMessageSize && len(cur.Submessages) > 0 {
			out = append(out, cur)
			cur = wire.Message{Header: header, LittleEndian: littleEndian}
			curSize = wire.MessageHeaderSize
		}
		cur.Submessages = append(cur.Submessages, sm)
		curSize += n
	}
	if len(cur.Submessages) > 0 {
		out = append(out, cur)
	}
	return out
}

// infoTimestampNow returns an InfoTimestamp submessage stamped with the
// source timestamp a writer attaches to the samples that follow it in the
// message (spec.md §4.9 step 2).
func infoTimestampNow(now time.Time) wire.InfoTimestamp {
	return wire.InfoTimestamp{Timestamp: now}
}
