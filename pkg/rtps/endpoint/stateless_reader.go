package endpoint

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// reassemblyKey identifies one writer's in-flight fragmented change.
type reassemblyKey struct {
	writer types.GUID
	sn     types.SequenceNumber
}

// StatelessReader accepts DATA from any writer matching its topic, with
// no retransmission and no ACKNACK (spec.md §4.3). It still reassembles
// DATA_FRAG sequences, since fragmentation is a wire-level concern
// independent of reliability.
type StatelessReader struct {
	mu sync.Mutex

	guid     types.GUID
	topic    string
	policies qos.Policies

	history *history.ReaderHistory

	reassembly map[reassemblyKey]*types.CacheChange

	onChange func(c *types.CacheChange)

	log *logrus.Entry
}

// SetChangeListener installs fn to be called every time a fully-assembled
// change is accepted into history, mirroring StatefulReader.SetChangeListener.
// pkg/rtps/discovery uses this on the builtin SPDP reader.
func (r *StatelessReader) SetChangeListener(fn func(c *types.CacheChange)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// NewStatelessReader returns a StatelessReader over h.
func NewStatelessReader(guid types.GUID, topic string, p qos.Policies, h *history.ReaderHistory) *StatelessReader {
	return &StatelessReader{
		guid: guid, topic: topic, policies: p, history: h,
		reassembly: make(map[reassemblyKey]*types.CacheChange),
		log:        logrus.WithFields(logrus.Fields{"component": "rtps-stateless-reader", "reader": guid.String(), "topic": topic}),
	}
}

// GUID returns the reader's entity GUID.
func (r *StatelessReader) GUID() types.GUID { return r.guid }

// Topic returns the reader's topic name.
func (r *StatelessReader) Topic() string { return r.topic }

// ProcessDataMsg offers a fully-assembled change directly to history.
func (r *StatelessReader) ProcessDataMsg(c *types.CacheChange) {
	accepted, _ := r.history.ReceivedChange(c)
	r.mu.Lock()
	onChange := r.onChange
	r.mu.Unlock()
	if accepted && onChange != nil {
		onChange(c)
	}
}

// ProcessDataFragMsg folds one fragment into this writer's in-progress
// reassembly, offering the completed change to history once every
// fragment has arrived.
func (r *StatelessReader) ProcessDataFragMsg(writerGUID types.GUID, df wire.DataFrag, ih types.InstanceHandle, kind types.ChangeKind) {
	key := reassemblyKey{writer: writerGUID, sn: df.WriterSN}

	r.mu.Lock()
	c, ok := r.reassembly[key]
	if !ok {
		c = &types.CacheChange{
			Kind: kind, WriterGUID: writerGUID, SequenceNumber: df.WriterSN,
			InstanceHandle: ih, Payload: make([]byte, df.SampleSize),
			Fragmented: true, Fragments: types.NewFragmentationState(df.SampleSize, uint32(df.FragmentSize)),
		}
		r.reassembly[key] = c
	}
	r.mu.Unlock()

	fragSize := int(df.FragmentSize)
	start := (int(df.FragmentStartingNum) - 1) * fragSize
	for i := 0; i < int(df.FragmentsInSubmessage); i++ {
		fn := df.FragmentStartingNum + types.FragmentNumber(i)
		fragStart := start + i*fragSize
		fragEnd := fragStart + fragSize
		if fragEnd > len(c.Payload) {
			fragEnd = len(c.Payload)
		}
		srcStart := i * fragSize
		srcEnd := srcStart + (fragEnd - fragStart)
		if srcStart >= len(df.SerializedPayload) {
			break
		}
		if srcEnd > len(df.SerializedPayload) {
			srcEnd = len(df.SerializedPayload)
		}
		copy(c.Payload[fragStart:fragEnd], df.SerializedPayload[srcStart:srcEnd])
		c.Fragments.MarkReceived(fn)
	}

	if !c.Fragments.Complete() {
		return
	}
	r.mu.Lock()
	delete(r.reassembly, key)
	onChange := r.onChange
	r.mu.Unlock()
	accepted, _ := r.history.ReceivedChange(c)
	if accepted && onChange != nil {
		onChange(c)
	}
}
