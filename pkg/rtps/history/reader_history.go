package history

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// disposedTTL bounds how long a reader remembers that an instance was
// disposed, so a DATA for that instance arriving late (reordered, or
// replayed by a TRANSIENT_LOCAL writer restart) can be recognized as stale
// rather than resurrecting the instance. spec.md §4.1 describes this as a
// bounded recently-disposed set; the bound here is time rather than count
// since the failure mode is network delay.
const disposedTTL = 30 * time.Second

// ReaderHistory is the reader-side change store: it applies resource
// limits, KEEP_LAST/KEEP_ALL retention, and disposed-instance staleness
// checks to incoming changes from possibly many writers (spec.md §4.1).
type ReaderHistory struct {
	*base
	disposed *gocache.Cache
}

// NewReaderHistory returns an empty history.
func NewReaderHistory(topic string, limits qos.ResourceLimits, h qos.History, pool *ChangePool) *ReaderHistory {
	return &ReaderHistory{
		base:     newBase(sideReader, topic, limits, h, pool),
		disposed: gocache.New(disposedTTL, disposedTTL/2),
	}
}

// ReceivedChange applies resource limits and retention policy to an
// incoming change (spec.md §4.1 received_change). accepted is false with a
// nil error when c is a stale duplicate of an already-disposed instance;
// err is a *rtpserrors.ResourceLimitError when a limit rejects the sample.
func (r *ReaderHistory) ReceivedChange(c *types.CacheChange) (accepted bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(c.InstanceHandle[:])
	if disposedAt, ok := r.disposed.Get(key); ok {
		if !c.SourceTimestamp.After(disposedAt.(time.Time)) {
			samplesDropped.WithLabelValues(string(r.side), r.topic, "stale_after_dispose").Inc()
			return false, nil
		}
	}

	if rlErr := r.checkResourceLimits(c.InstanceHandle); rlErr != nil {
		if rle, ok := rlErr.(*rtpserrors.ResourceLimitError); ok {
			samplesRejected.WithLabelValues(string(r.side), r.topic, rle.Kind.String()).Inc()
		}
		return false, rlErr
	}

	evicted := r.insertLocked(c)
	if evicted != nil {
		samplesDropped.WithLabelValues(string(r.side), r.topic, "keep_last_depth").Inc()
	}

	switch c.Kind {
	case types.ChangeKindNotAliveDisposed, types.ChangeKindNotAliveDisposedUnregistered:
		r.disposed.Set(key, c.SourceTimestamp, gocache.DefaultExpiration)
	}
	return true, nil
}

// RemoveChange removes the change identified by (writer, sn) from history
// and releases it to the pool (spec.md §4.1 remove_change).
func (r *ReaderHistory) RemoveChange(writer types.GUID, sn types.SequenceNumber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.findLocked(writer, sn)
	if c == nil {
		return false
	}
	r.removeLocked(c)
	return true
}

// RemoveMinChange removes and returns the oldest change in history
// (spec.md §4.1 remove_min_change), or nil if history is empty.
func (r *ReaderHistory) RemoveMinChange() *types.CacheChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.minChangeLocked()
	if c == nil {
		return nil
	}
	r.removeLocked(c)
	return c
}

// SetFragments initializes reassembly bookkeeping on first sight of a
// fragmented change (spec.md §4.1 set_fragments).
func (r *ReaderHistory) SetFragments(c *types.CacheChange, totalSize, fragmentSize uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	setFragments(c, totalSize, fragmentSize)
}

// InstanceChanges returns a snapshot of the changes currently held for ih,
// in arrival order.
func (r *ReaderHistory) InstanceChanges(ih types.InstanceHandle) []*types.CacheChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.byInstance[ih]
	out := make([]*types.CacheChange, len(src))
	copy(out, src)
	return out
}

// Changes returns a snapshot of every change currently stored, in arrival order.
func (r *ReaderHistory) Changes() []*types.CacheChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.CacheChange, len(r.changes))
	copy(out, r.changes)
	return out
}

// SampleCount returns the number of changes currently stored.
func (r *ReaderHistory) SampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sampleCount()
}

// InstanceCount returns the number of distinct instances currently stored.
func (r *ReaderHistory) InstanceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instanceCount()
}
