package history

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// WriterHistory is the writer-side change store: sequence numbers are
// assigned here, monotonically, one per CreateChange call (spec.md §4.1).
type WriterHistory struct {
	*base
	writerGUID types.GUID
	nextSN     types.SequenceNumber
}

// NewWriterHistory returns an empty history for writerGUID.
func NewWriterHistory(writerGUID types.GUID, topic string, limits qos.ResourceLimits, h qos.History, pool *ChangePool) *WriterHistory {
	return &WriterHistory{
		base:       newBase(sideWriter, topic, limits, h, pool),
		writerGUID: writerGUID,
		nextSN:     1,
	}
}

// CreateChange allocates a change from the pool and stamps it with the
// next sequence number (spec.md §4.1 create_change). The change is not yet
// part of the history; pass it to AddChange.
func (w *WriterHistory) CreateChange(kind types.ChangeKind, ih types.InstanceHandle, payload []byte, wp types.WriteParams) *types.CacheChange {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.pool.Get()
	c.Kind = kind
	c.WriterGUID = w.writerGUID
	c.SequenceNumber = w.nextSN
	w.nextSN++
	c.InstanceHandle = ih
	c.Payload = payload
	c.SourceTimestamp = wp.SourceTimestamp
	c.WriteParams = wp
	return c
}

// AddChange inserts c into the history (spec.md §4.1 add_change), evicting
// the oldest sample of c's instance when KEEP_LAST depth is exceeded. It
// returns a *rtpserrors.ResourceLimitError, leaving history unmodified,
// when a configured limit would be violated.
func (w *WriterHistory) AddChange(c *types.CacheChange) (evicted *types.CacheChange, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rlErr := w.checkResourceLimits(c.InstanceHandle); rlErr != nil {
		if rle, ok := rlErr.(*rtpserrors.ResourceLimitError); ok {
			samplesRejected.WithLabelValues(string(w.side), w.topic, rle.Kind.String()).Inc()
		}
		return nil, rlErr
	}
	evicted = w.insertLocked(c)
	if evicted != nil {
		samplesDropped.WithLabelValues(string(w.side), w.topic, "keep_last_depth").Inc()
	}
	return evicted, nil
}

// RemoveChange removes the change with the given sequence number from
// history and releases it to the pool (spec.md §4.1 remove_change). It
// reports whether a matching change was found.
func (w *WriterHistory) RemoveChange(sn types.SequenceNumber) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.findLocked(w.writerGUID, sn)
	if c == nil {
		return false
	}
	w.removeLocked(c)
	return true
}

// RemoveMinChange removes and returns the oldest change in history
// (spec.md §4.1 remove_min_change), or nil if history is empty.
func (w *WriterHistory) RemoveMinChange() *types.CacheChange {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.minChangeLocked()
	if c == nil {
		return nil
	}
	w.removeLocked(c)
	return c
}

// RemoveChangeAndReuse takes sn out of history without releasing its pool
// slot, so the caller can overwrite its payload in place and AddChange it
// again under a fresh sequence number — the pattern a periodic writer uses
// to refresh a TRANSIENT_LOCAL sample (spec.md §4.1 remove_change_and_reuse).
func (w *WriterHistory) RemoveChangeAndReuse(sn types.SequenceNumber) *types.CacheChange {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.findLocked(w.writerGUID, sn)
	if c == nil {
		return nil
	}
	w.removeFromChangesLocked(c)
	inst := w.byInstance[c.InstanceHandle]
	for i, ch := range inst {
		if ch == c {
			inst = append(inst[:i], inst[i+1:]...)
			break
		}
	}
	if len(inst) == 0 {
		delete(w.byInstance, c.InstanceHandle)
	} else {
		w.byInstance[c.InstanceHandle] = inst
	}
	samplesStored.WithLabelValues(string(w.side), w.topic).Set(float64(len(w.changes)))
	instancesStored.WithLabelValues(string(w.side), w.topic).Set(float64(len(w.byInstance)))
	return c
}

// SetFragments initializes fragmentation bookkeeping for c ahead of
// splitting it into DATA_FRAG submessages (spec.md §4.1 set_fragments).
func (w *WriterHistory) SetFragments(c *types.CacheChange, fragmentSize uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	setFragments(c, uint32(len(c.Payload)), fragmentSize)
}

// Changes returns a snapshot of every change currently stored, in
// sequence-number order.
func (w *WriterHistory) Changes() []*types.CacheChange {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*types.CacheChange, len(w.changes))
	copy(out, w.changes)
	return out
}

// SampleCount returns the number of changes currently stored.
func (w *WriterHistory) SampleCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sampleCount()
}

// InstanceCount returns the number of distinct instances currently stored.
func (w *WriterHistory) InstanceCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.instanceCount()
}
