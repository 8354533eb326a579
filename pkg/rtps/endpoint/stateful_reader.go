package endpoint

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/proxy"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// heartbeatResponseJitter bounds the random fraction added to
// heartbeat_response_delay before an ACKNACK is sent, so many readers
// hearing the same HEARTBEAT don't all answer in lockstep (spec.md §4.3:
// "jittered heartbeat_response_delay"). No library in the dependency set
// provides jittered backoff; math/rand is the natural, minimal tool for a
// single random fraction and needs no justification beyond that.
const heartbeatResponseJitter = 0.5

// StatefulReader maintains a WriterProxy per matched writer and drives
// ACKNACK-based reliable delivery, ownership arbitration, and per-instance
// deadline/lifespan timers (spec.md §4.3).
type StatefulReader struct {
	mu sync.Mutex

	guid     types.GUID
	topic    string
	policies qos.Policies
	reliable bool

	history *history.ReaderHistory

	writerProxies map[types.GUID]*proxy.WriterProxy
	aliveWriters  map[types.GUID]bool

	currentOwner  map[types.InstanceHandle]types.GUID
	ownerStrength map[types.InstanceHandle]int32

	sender Sender

	guidPrefix   types.GuidPrefix
	littleEndian bool

	sched                   *scheduler.Scheduler
	heartbeatResponseDelay  time.Duration
	acknackTimers           map[types.GUID]*scheduler.Timer
	deadlinePeriod          time.Duration
	deadlineTimers          map[types.InstanceHandle]*scheduler.Timer
	lifespanDuration        time.Duration
	lifespanSweepTimer      *scheduler.Timer

	onChange func(writerGUID types.GUID, c *types.CacheChange)

	log *logrus.Entry
}

// SetChangeListener installs fn to be called, outside the reader's lock,
// every time a change is newly accepted into history. pkg/rtps/discovery
// uses this on its builtin SEDP readers to feed decoded descriptors into
// matching without history needing to know discovery exists.
func (r *StatefulReader) SetChangeListener(fn func(writerGUID types.GUID, c *types.CacheChange)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// NewStatefulReader returns a StatefulReader with no matched writers yet.
func NewStatefulReader(guid types.GUID, topic string, p qos.Policies, h *history.ReaderHistory, sender Sender, sched *scheduler.Scheduler, guidPrefix types.GuidPrefix) *StatefulReader {
	return &StatefulReader{
		guid: guid, topic: topic, policies: p, reliable: p.Reliability == qos.Reliable,
		history:       h,
		writerProxies: make(map[types.GUID]*proxy.WriterProxy),
		aliveWriters:  make(map[types.GUID]bool),
		currentOwner:  make(map[types.InstanceHandle]types.GUID),
		ownerStrength: make(map[types.InstanceHandle]int32),
		sender:        sender, guidPrefix: guidPrefix, littleEndian: true,
		sched:                  sched,
		heartbeatResponseDelay: p.LatencyBudget, // overridable via SetHeartbeatResponseDelay
		acknackTimers:          make(map[types.GUID]*scheduler.Timer),
		deadlinePeriod:         p.DeadlinePeriod,
		deadlineTimers:         make(map[types.InstanceHandle]*scheduler.Timer),
		lifespanDuration:       p.LifespanDuration,
		log:                    logrus.WithFields(logrus.Fields{"component": "rtps-stateful-reader", "reader": guid.String(), "topic": topic}),
	}
}

// GUID returns the reader's entity GUID.
func (r *StatefulReader) GUID() types.GUID { return r.guid }

// Topic returns the reader's topic name.
func (r *StatefulReader) Topic() string { return r.topic }

// SetHeartbeatResponseDelay overrides the base delay before an ACKNACK is
// sent in response to a non-final HEARTBEAT.
func (r *StatefulReader) SetHeartbeatResponseDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeatResponseDelay = d
}

// MatchedWriterAdd registers remote as a matched writer with an initial
// low-mark of zero, i.e. nothing yet received (spec.md §4.3
// matched_writer_add; persisted low-mark recovery belongs to
// pkg/rtps/persistence, not exercised here).
func (r *StatefulReader) MatchedWriterAdd(remote types.GUID, unicast, multicast []types.Locator, ownershipStrength int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.writerProxies[remote]; exists {
		return
	}
	r.writerProxies[remote] = proxy.NewWriterProxy(remote, unicast, multicast, ownershipStrength)
	r.aliveWriters[remote] = true
	matchedWriters.WithLabelValues(r.topic).Set(float64(len(r.writerProxies)))
}

// MatchedWriterRemove tears down the proxy for remote and, if it held
// EXCLUSIVE ownership of any instance, clears that ownership so the next
// sample from any other alive writer can take over.
func (r *StatefulReader) MatchedWriterRemove(remote types.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.writerProxies, remote)
	delete(r.aliveWriters, remote)
	if t, ok := r.acknackTimers[remote]; ok {
		t.Cancel()
		delete(r.acknackTimers, remote)
	}
	for ih, owner := range r.currentOwner {
		if owner == remote {
			delete(r.currentOwner, ih)
			delete(r.ownerStrength, ih)
		}
	}
	matchedWriters.WithLabelValues(r.topic).Set(float64(len(r.writerProxies)))
}

// AssertWriterLiveliness marks remote alive, undoing any prior
// MarkWriterNotAlive (spec.md §4.2 liveliness: "reader reports
// LIVELINESS_LOST after lease expiry" and the converse on reassertion).
func (r *StatefulReader) AssertWriterLiveliness(remote types.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliveWriters[remote] = true
}

// MarkWriterNotAlive records that remote's liveliness lease expired. Per
// spec.md §4.3's ownership arbitration, if remote held EXCLUSIVE ownership
// of any instance, the next sample from any other matched writer for that
// instance is accepted regardless of relative strength.
func (r *StatefulReader) MarkWriterNotAlive(remote types.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliveWriters[remote] = false
	livelinessLost.WithLabelValues(r.topic).Inc()
}

// ProcessDataMsg handles one fully-assembled DATA submessage (spec.md
// §4.3 process_data_msg). Duplicate sequence numbers are discarded.
func (r *StatefulReader) ProcessDataMsg(writerGUID types.GUID, c *types.CacheChange) {
	r.mu.Lock()
	wp, ok := r.writerProxies[writerGUID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if wp.Received(c.SequenceNumber) {
		return
	}
	r.deliverChange(writerGUID, wp, c)
}

// ProcessDataFragMsg folds one DATA_FRAG submessage into the in-progress
// reassembly for (writerGUID, df.WriterSN); completion triggers the same
// delivery path as ProcessDataMsg (spec.md §4.3 process_data_frag_msg).
func (r *StatefulReader) ProcessDataFragMsg(writerGUID types.GUID, df wire.DataFrag, ih types.InstanceHandle, kind types.ChangeKind) {
	r.mu.Lock()
	wp, ok := r.writerProxies[writerGUID]
	r.mu.Unlock()
	if !ok || wp.Received(df.WriterSN) {
		return
	}

	c := wp.ReassemblyFor(df.WriterSN, ih, df.SampleSize, uint32(df.FragmentSize))
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
	c.Kind = kind
	wp.DiscardReassembly(df.WriterSN)
	r.deliverChange(writerGUID, wp, c)
}

// deliverChange applies EXCLUSIVE ownership arbitration, records the
// sequence number as received on wp, and offers c to the reader history.
func (r *StatefulReader) deliverChange(writerGUID types.GUID, wp *proxy.WriterProxy, c *types.CacheChange) {
	r.mu.Lock()
	if r.policies.Ownership == qos.ExclusiveOwnership {
		owner, known := r.currentOwner[c.InstanceHandle]
		if known && owner != writerGUID && r.aliveWriters[owner] && r.ownerStrength[c.InstanceHandle] >= wp.OwnershipStrength {
			wp.MarkReceived(c.SequenceNumber)
			r.mu.Unlock()
			return
		}
		r.currentOwner[c.InstanceHandle] = writerGUID
		r.ownerStrength[c.InstanceHandle] = wp.OwnershipStrength
	}
	wp.MarkReceived(c.SequenceNumber)
	deadlinePeriod := r.deadlinePeriod
	onChange := r.onChange
	r.mu.Unlock()

	accepted, _ := r.history.ReceivedChange(c)
	if accepted && deadlinePeriod > 0 {
		r.resetDeadlineTimer(c.InstanceHandle)
	}
	if accepted && onChange != nil {
		onChange(writerGUID, c)
	}
}

// ProcessHeartbeatMsg updates the writer proxy's known range and, for a
// non-final heartbeat that leaves changes missing, schedules a jittered
// ACKNACK (spec.md §4.3 process_heartbeat_msg).
func (r *StatefulReader) ProcessHeartbeatMsg(writerGUID types.GUID, firstSN, lastSN types.SequenceNumber, count int32, final, liveliness bool) {
	r.mu.Lock()
	wp, ok := r.writerProxies[writerGUID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if !wp.ReceivedHeartbeat(firstSN, lastSN, count) {
		return
	}
	if liveliness {
		r.AssertWriterLiveliness(writerGUID)
	}
	if !final && !wp.IsUpToDate() {
		r.scheduleAckNack(writerGUID)
	}
}

// ProcessGapMsg marks the sequence numbers gapStart..(gapList.Base-1) and
// every sequence set in gapList as irrelevant on the matching writer proxy
// (spec.md §4.3 process_gap_msg).
func (r *StatefulReader) ProcessGapMsg(writerGUID types.GUID, gapStart types.SequenceNumber, gapList types.SequenceNumberSet) {
	r.mu.Lock()
	wp, ok := r.writerProxies[writerGUID]
	r.mu.Unlock()
	if !ok {
		return
	}
	for sn := gapStart; sn < gapList.Base; sn++ {
		wp.MarkIrrelevant(sn)
	}
	for _, sn := range gapList.Sequences() {
		wp.MarkIrrelevant(sn)
	}
}

// scheduleAckNack (re)starts the per-writer response timer with a
// jittered delay, coalescing bursts of heartbeats into one ACKNACK
// (spec.md §4.3 "ACKNACK scheduling").
func (r *StatefulReader) scheduleAckNack(writerGUID types.GUID) {
	r.mu.Lock()
	t, ok := r.acknackTimers[writerGUID]
	if !ok {
		t = r.sched.NewTimer(func() { r.fireAckNack(writerGUID) })
		r.acknackTimers[writerGUID] = t
	}
	base := r.heartbeatResponseDelay
	r.mu.Unlock()

	if base <= 0 {
		base = time.Millisecond
	}
	jitter := time.Duration(rand.Float64() * heartbeatResponseJitter * float64(base))
	t.Restart(base + jitter)
}

func (r *StatefulReader) fireAckNack(writerGUID types.GUID) {
	r.mu.Lock()
	wp, ok := r.writerProxies[writerGUID]
	guidPrefix, littleEndian := r.guidPrefix, r.littleEndian
	r.mu.Unlock()
	if !ok {
		return
	}

	set := wp.LostChanges()
	final := len(set.Sequences()) == 0
	an := wire.AckNack{
		ReaderId: r.guid.Entity, WriterId: writerGUID.Entity,
		ReaderSNState: set, Count: wp.NextAckNackCount(), Final: final,
	}
	hdr := wire.MessageHeader{Version: wire.ProtocolVersion23, VendorId: wire.VendorIdThisImplementation, GuidPrefix: guidPrefix}
	msg := wire.Message{Header: hdr, LittleEndian: littleEndian, Submessages: []wire.Encodable{an}}

	locs := wp.UnicastLocators
	if len(locs) == 0 {
		locs = wp.MulticastLocators
	}
	r.sender.Send(locs, msg.Encode())
}

// resetDeadlineTimer (re)arms the per-instance deadline timer. A firing
// with no intervening sample increments REQUESTED_DEADLINE_MISSED and
// keeps watching the instance (spec.md §4.3 "deadline & lifespan").
func (r *StatefulReader) resetDeadlineTimer(ih types.InstanceHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.deadlineTimers[ih]
	if !ok {
		t = r.sched.NewTimer(func() { r.fireDeadlineMissed(ih) })
		r.deadlineTimers[ih] = t
	}
	t.Restart(r.deadlinePeriod)
}

func (r *StatefulReader) fireDeadlineMissed(ih types.InstanceHandle) {
	deadlineMissed.WithLabelValues(r.topic).Inc()
	r.mu.Lock()
	period := r.deadlinePeriod
	t := r.deadlineTimers[ih]
	r.mu.Unlock()
	if t != nil && period > 0 {
		t.Restart(period)
	}
}

// StartLifespanSweep begins periodically expiring changes whose
// source_timestamp is older than lifespan_duration, silently (spec.md
// §4.3: "lifespan timers expire changes from history silently").
func (r *StatefulReader) StartLifespanSweep(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifespanDuration <= 0 {
		return
	}
	if r.lifespanSweepTimer == nil {
		r.lifespanSweepTimer = r.sched.NewTimer(r.sweepExpiredLifespans)
	}
	r.lifespanSweepTimer.Restart(interval)
}

func (r *StatefulReader) sweepExpiredLifespans() {
	r.mu.Lock()
	lifespan := r.lifespanDuration
	r.mu.Unlock()

	cutoff := time.Now().Add(-lifespan)
	for _, c := range r.history.Changes() {
		if c.SourceTimestamp.Before(cutoff) {
			r.history.RemoveChange(c.WriterGUID, c.SequenceNumber)
		}
	}

	r.mu.Lock()
	if r.lifespanSweepTimer != nil {
		r.lifespanSweepTimer.Restart(lifespan)
	}
	r.mu.Unlock()
}
