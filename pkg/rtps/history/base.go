package history

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

type side string

const (
	sideWriter side = "writer"
	sideReader side = "reader"
)

// base is the ordered CacheChange store shared by WriterHistory and
// ReaderHistory (spec.md §4.1, C3). changes is kept in insertion order,
// which for a WriterHistory is also ascending SequenceNumber order since a
// single writer assigns sequence numbers monotonically; a ReaderHistory
// accepts changes from possibly many writers and keeps them in arrival
// order instead, with per-instance ordering handled separately by
// byInstance.
type base struct {
	mu sync.Mutex

	side  side
	topic string

	pool       *ChangePool
	limits     qos.ResourceLimits
	historyQoS qos.History

	changes    []*types.CacheChange
	byInstance map[types.InstanceHandle][]*types.CacheChange

	log *logrus.Entry
}

func newBase(s side, topic string, limits qos.ResourceLimits, h qos.History, pool *ChangePool) *base {
	return &base{
		side:       s,
		topic:      topic,
		pool:       pool,
		limits:     limits,
		historyQoS: h,
		byInstance: make(map[types.InstanceHandle][]*types.CacheChange),
		log:        logrus.WithFields(logrus.Fields{"component": "rtps-history", "side": string(s), "topic": topic}),
	}
}

// sampleCount returns the total number of changes currently stored. Caller
// must hold b.mu.
func (b *base) sampleCount() int { return len(b.changes) }

// instanceCount returns the number of distinct instances currently
// represented. Caller must hold b.mu.
func (b *base) instanceCount() int { return len(b.byInstance) }

// checkResourceLimits reports a ResourceLimitError if inserting one more
// change for instance ih would violate limits, without mutating state
// (spec.md §4.1: add_change/received_change consult limits before
// accepting). Caller must hold b.mu.
func (b *base) checkResourceLimits(ih types.InstanceHandle) error {
	if b.limits.MaxSamples != qos.Unlimited && len(b.changes) >= b.limits.MaxSamples {
		if b.historyQoS.Kind == qos.KeepAll {
			return rtpserrors.NewResourceLimitError(rtpserrors.ResourceLimitSamples,
				"max_samples reached with KEEP_ALL history")
		}
	}
	existing, known := b.byInstance[ih]
	if !known && b.limits.MaxInstances != qos.Unlimited && len(b.byInstance) >= b.limits.MaxInstances {
		return rtpserrors.NewResourceLimitError(rtpserrors.ResourceLimitInstances,
			"max_instances reached")
	}
	if known && b.limits.MaxSamplesPerInstance != qos.Unlimited &&
		len(existing) >= b.limits.MaxSamplesPerInstance && b.historyQoS.Kind == qos.KeepAll {
		return rtpserrors.NewResourceLimitError(rtpserrors.ResourceLimitSamplesPerInstance,
			"max_samples_per_instance reached with KEEP_ALL history")
	}
	return nil
}

// insertLocked appends c to changes and its per-instance index, then
// applies KEEP_LAST eviction for c's instance if configured. It returns
// any change evicted as a result (nil if none). Caller must hold b.mu.
func (b *base) insertLocked(c *types.CacheChange) *types.CacheChange {
	b.changes = append(b.changes, c)
	b.byInstance[c.InstanceHandle] = append(b.byInstance[c.InstanceHandle], c)

	var evicted *types.CacheChange
	if b.historyQoS.Kind == qos.KeepLast && b.historyQoS.Depth > 0 {
		inst := b.byInstance[c.InstanceHandle]
		if len(inst) > b.historyQoS.Depth {
			evicted = inst[0]
			b.byInstance[c.InstanceHandle] = append([]*types.CacheChange{}, inst[1:]...)
			b.removeFromChangesLocked(evicted)
		}
	}
	samplesStored.WithLabelValues(string(b.side), b.topic).Set(float64(len(b.changes)))
	instancesStored.WithLabelValues(string(b.side), b.topic).Set(float64(len(b.byInstance)))
	return evicted
}

// removeFromChangesLocked splices c out of b.changes. Caller must hold b.mu.
func (b *base) removeFromChangesLocked(c *types.CacheChange) {
	for i, ch := range b.changes {
		if ch == c {
			b.changes = append(b.changes[:i], b.changes[i+1:]...)
			return
		}
	}
}

// removeLocked removes c from both indices and releases it back to the
// pool. Caller must hold b.mu.
func (b *base) removeLocked(c *types.CacheChange) {
	b.removeFromChangesLocked(c)
	inst := b.byInstance[c.InstanceHandle]
	for i, ch := range inst {
		if ch == c {
			inst = append(inst[:i], inst[i+1:]...)
			break
		}
	}
	if len(inst) == 0 {
		delete(b.byInstance, c.InstanceHandle)
	} else {
		b.byInstance[c.InstanceHandle] = inst
	}
	samplesStored.WithLabelValues(string(b.side), b.topic).Set(float64(len(b.changes)))
	instancesStored.WithLabelValues(string(b.side), b.topic).Set(float64(len(b.byInstance)))
	b.pool.Release(c)
}

// findLocked returns the change with the given writer GUID
// and sequence number, if present. Caller must hold b.mu.
func (b *base) findLocked(writer types.GUID, sn types.SequenceNumber) *types.CacheChange {
	for _, c := range b.changes {
		if c.WriterGUID == writer && c.SequenceNumber == sn {
			return c
		}
	}
	return nil
}

// minChangeLocked returns the oldest change (by insertion order), or nil if
// empty. Caller must hold b.mu.
func (b *base) minChangeLocked() *types.CacheChange {
	if len(b.changes) == 0 {
		return nil
	}
	return b.changes[0]
}

// instanceChangesLocked returns the changes currently stored for ih, in
// arrival order. Caller must hold b.mu.
func (b *base) instanceChangesLocked(ih types.InstanceHandle) []*types.CacheChange {
	return b.byInstance[ih]
}

// setFragments initializes fragmentation bookkeeping on c (spec.md §4.1
// set_fragments), used by a writer before splitting a large change into
// DATA_FRAG submessages and by a reader on first sight of a fragmented
// change.
func setFragments(c *types.CacheChange, totalSize, fragmentSize uint32) {
	c.Fragmented = true
	c.Fragments = types.NewFragmentationState(totalSize, fragmentSize)
}
