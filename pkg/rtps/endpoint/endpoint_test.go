package endpoint

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// recordingSender collects every buffer handed to Send, for assertions
// without standing up a real transport.
type recordingSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (s *recordingSender) Send(_ []types.Locator, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, append([]byte(nil), payload...))
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSender) decodeAll(t *testing.T) []wire.DecodedSubmessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wire.DecodedSubmessage
	for _, buf := range s.sent {
		_, subs, err := wire.DecodeMessage(buf)
		require.NoError(t, err)
		out = append(out, subs...)
	}
	return out
}

func unlimitedLimits() qos.ResourceLimits {
	return qos.ResourceLimits{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited}
}

func testGUID(entityKey byte, kind types.EntityKind) types.GUID {
	return types.GUID{
		Prefix: types.GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Entity: types.EntityId{Key: [3]byte{0, 0, entityKey}, Kind: kind},
	}
}

func remoteGUID(prefixSeed, entityKey byte) types.GUID {
	var p types.GuidPrefix
	for i := range p {
		p[i] = prefixSeed
	}
	return types.GUID{Prefix: p, Entity: types.EntityId{Key: [3]byte{0, 0, entityKey}, Kind: types.EntityKindReaderWithKey}}
}

func instance(b byte) types.InstanceHandle {
	var ih types.InstanceHandle
	ih[0] = b
	return ih
}

func TestStatelessWriterAddChangeSendsImmediately(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindWriterNoKey)
	h := history.NewWriterHistory(guid, "Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()

	dest := []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7400}}
	w := NewStatelessWriter(guid, "Square", qos.Policies{Reliability: qos.BestEffort}, h, dest, sender, sched, guid.Prefix)

	c := h.CreateChange(types.ChangeKindAlive, instance(1), []byte("payload"), types.WriteParams{SourceTimestamp: time.Now()})
	require.NoError(t, w.AddChange(c))

	assert.Equal(t, 1, sender.count())
	subs := sender.decodeAll(t)
	require.Len(t, subs, 2) // INFO_TS + DATA
}

func TestStatefulWriterMatchedReaderAddReplaysTransientLocalHistory(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindWriterWithKey)
	h := history.NewWriterHistory(guid, "Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()

	policies := qos.Policies{Reliability: qos.Reliable, Durability: qos.TransientLocal}
	w := NewStatefulWriter(guid, "Square", policies, h, pool, sender, sched, guid.Prefix)

	c1 := h.CreateChange(types.ChangeKindAlive, instance(1), []byte("a"), types.WriteParams{})
	_, err := h.AddChange(c1)
	require.NoError(t, err)

	reader := remoteGUID(0xaa, 1)
	unicast := []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7411}}
	w.MatchedReaderAdd(reader, unicast, nil, false)

	// matched_reader_add replays existing history as UNSENT, so a send
	// loop pass should emit the already-written change to the new reader.
	w.SendLoop()
	assert.Equal(t, 1, sender.count())

	// Re-adding the same reader is a no-op (idempotent matched_reader_add).
	w.MatchedReaderAdd(reader, unicast, nil, false)
	w.SendLoop()
	assert.Equal(t, 1, sender.count(), "no further changes to send after the first pass")
}

func TestStatefulWriterAddChangeDeliversToMatchedReaders(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindWriterWithKey)
	h := history.NewWriterHistory(guid, "Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()

	w := NewStatefulWriter(guid, "Square", qos.Policies{Reliability: qos.Reliable}, h, pool, sender, sched, guid.Prefix)

	reader := remoteGUID(0xaa, 1)
	w.MatchedReaderAdd(reader, []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7411}}, nil, false)

	c := h.CreateChange(types.ChangeKindAlive, instance(1), []byte("hello"), types.WriteParams{})
	require.NoError(t, w.AddChange(c))

	assert.Equal(t, 1, sender.count())
	assert.False(t, w.IsAcknowledgedByAll(c.SequenceNumber), "RELIABLE change stays unacknowledged until ACKNACK arrives")
}

func TestStatefulWriterProcessAckNackAcknowledgesAndFinalSuppressesHeartbeat(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindWriterWithKey)
	h := history.NewWriterHistory(guid, "Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()

	w := NewStatefulWriter(guid, "Square", qos.Policies{Reliability: qos.Reliable}, h, pool, sender, sched, guid.Prefix)
	reader := remoteGUID(0xaa, 1)
	w.MatchedReaderAdd(reader, []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7411}}, nil, false)

	c := h.CreateChange(types.ChangeKindAlive, instance(1), []byte("hello"), types.WriteParams{})
	require.NoError(t, w.AddChange(c))

	// Acknowledge sn 1 by sending an empty requested-set with base above it.
	ackSet := types.SequenceNumberSet{Base: c.SequenceNumber + 1}
	before := sender.count()
	w.ProcessAckNack(reader, 1, ackSet, true)

	assert.True(t, w.IsAcknowledgedByAll(c.SequenceNumber))
	assert.Equal(t, before, sender.count(), "a final ACKNACK with nothing left to send must not trigger a HEARTBEAT")
}

func TestStatefulWriterHeartbeatCountIsMonotonic(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindWriterWithKey)
	h := history.NewWriterHistory(guid, "Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()

	w := NewStatefulWriter(guid, "Square", qos.Policies{Reliability: qos.Reliable}, h, pool, sender, sched, guid.Prefix)
	reader := remoteGUID(0xaa, 1)
	w.MatchedReaderAdd(reader, []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7411}}, nil, false)

	c := h.CreateChange(types.ChangeKindAlive, instance(1), []byte("hello"), types.WriteParams{})
	require.NoError(t, w.AddChange(c))

	w.sendHeartbeatNow()
	w.sendHeartbeatNow()

	subs := sender.decodeAll(t)
	var counts []int32
	for _, s := range subs {
		if s.Heartbeat != nil {
			counts = append(counts, s.Heartbeat.Count)
		}
	}
	require.Len(t, counts, 2)
	assert.Less(t, counts[0], counts[1])
}

func TestStatefulReaderProcessDataMsgRejectsDuplicate(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindReaderWithKey)
	h := history.NewReaderHistory("Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()

	r := NewStatefulReader(guid, "Square", qos.Policies{Reliability: qos.Reliable}, h, sender, sched, guid.Prefix)
	writer := remoteGUID(0xbb, 1)
	r.MatchedWriterAdd(writer, nil, nil, 0)

	c := &types.CacheChange{Kind: types.ChangeKindAlive, WriterGUID: writer, SequenceNumber: 1, InstanceHandle: instance(1), Payload: []byte("x")}
	r.ProcessDataMsg(writer, c)
	assert.Equal(t, 1, h.SampleCount())

	// A second DATA for the same sequence number must not be delivered
	// twice.
	dup := &types.CacheChange{Kind: types.ChangeKindAlive, WriterGUID: writer, SequenceNumber: 1, InstanceHandle: instance(1), Payload: []byte("x")}
	r.ProcessDataMsg(writer, dup)
	assert.Equal(t, 1, h.SampleCount())
}

func TestStatefulReaderProcessHeartbeatSchedulesAckNackWhenBehind(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindReaderWithKey)
	h := history.NewReaderHistory("Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()
	sched.Start()
	defer sched.Stop()

	r := NewStatefulReader(guid, "Square", qos.Policies{Reliability: qos.Reliable}, h, sender, sched, guid.Prefix)
	r.SetHeartbeatResponseDelay(5 * time.Millisecond)
	writer := remoteGUID(0xbb, 1)
	r.MatchedWriterAdd(writer, []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7500}}, nil, 0)

	// Writer announces sequence numbers 1..2 but the reader has received
	// neither: a non-final heartbeat should schedule an ACKNACK.
	r.ProcessHeartbeatMsg(writer, 1, 2, 1, false, false)

	require.Eventually(t, func() bool { return sender.count() > 0 }, time.Second, time.Millisecond)
	subs := sender.decodeAll(t)
	found := false
	for _, s := range subs {
		if s.AckNack != nil {
			found = true
			assert.False(t, s.AckNack.Final)
		}
	}
	assert.True(t, found, "expected an ACKNACK submessage")
}

func TestStatefulReaderProcessGapMsgMarksIrrelevant(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindReaderWithKey)
	h := history.NewReaderHistory("Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()

	r := NewStatefulReader(guid, "Square", qos.Policies{Reliability: qos.Reliable}, h, sender, sched, guid.Prefix)
	writer := remoteGUID(0xbb, 1)
	r.MatchedWriterAdd(writer, nil, nil, 0)

	r.ProcessHeartbeatMsg(writer, 1, 5, 1, true, false)
	r.ProcessGapMsg(writer, 1, types.SequenceNumberSet{Base: 4})

	wp := r.writerProxies[writer]
	require.NotNil(t, wp)
	assert.False(t, wp.IsUpToDate(), "sn 4,5 still outstanding until a heartbeat/gap covers them too")
}

func TestStatefulReaderExclusiveOwnershipArbitration(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindReaderWithKey)
	h := history.NewReaderHistory("Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)
	sender := &recordingSender{}
	sched := scheduler.New()

	r := NewStatefulReader(guid, "Square", qos.Policies{Reliability: qos.Reliable, Ownership: qos.ExclusiveOwnership}, h, sender, sched, guid.Prefix)

	strong := remoteGUID(0xbb, 1)
	weak := remoteGUID(0xcc, 2)
	r.MatchedWriterAdd(strong, nil, nil, 10)
	r.MatchedWriterAdd(weak, nil, nil, 1)

	ih := instance(1)
	c1 := &types.CacheChange{Kind: types.ChangeKindAlive, WriterGUID: strong, SequenceNumber: 1, InstanceHandle: ih, Payload: []byte("strong")}
	r.ProcessDataMsg(strong, c1)
	assert.Equal(t, 1, h.SampleCount())

	// A sample from the weaker, still-alive writer for the same instance
	// must be rejected while the strong writer holds ownership.
	c2 := &types.CacheChange{Kind: types.ChangeKindAlive, WriterGUID: weak, SequenceNumber: 1, InstanceHandle: ih, Payload: []byte("weak")}
	r.ProcessDataMsg(weak, c2)
	assert.Equal(t, 1, h.SampleCount(), "weaker owner's sample must be rejected")

	// Once the strong writer goes not-alive, the weak writer can take over.
	r.MarkWriterNotAlive(strong)
	c3 := &types.CacheChange{Kind: types.ChangeKindAlive, WriterGUID: weak, SequenceNumber: 2, InstanceHandle: ih, Payload: []byte("weak-takes-over")}
	r.ProcessDataMsg(weak, c3)
	assert.Equal(t, 2, h.SampleCount(), "failover sample should be accepted once prior owner is not alive")
}

func TestStatelessReaderReassemblesFragmentedChange(t *testing.T) {
	pool := history.NewChangePool()
	guid := testGUID(1, types.EntityKindReaderNoKey)
	h := history.NewReaderHistory("Square", unlimitedLimits(), qos.History{Kind: qos.KeepAll}, pool)

	r := NewStatelessReader(guid, "Square", qos.Policies{Reliability: qos.BestEffort}, h)
	writer := remoteGUID(0xdd, 1)

	payload := []byte("0123456789")
	fragSize := uint16(4)
	df1 := wire.DataFrag{
		WriterId: writer.Entity, WriterSN: 1,
		FragmentStartingNum: 1, FragmentsInSubmessage: 1, FragmentSize: fragSize, SampleSize: uint32(len(payload)),
		SerializedPayload: payload[0:4],
	}
	df2 := wire.DataFrag{
		WriterId: writer.Entity, WriterSN: 1,
		FragmentStartingNum: 2, FragmentsInSubmessage: 1, FragmentSize: fragSize, SampleSize: uint32(len(payload)),
		SerializedPayload: payload[4:8],
	}
	df3 := wire.DataFrag{
		WriterId: writer.Entity, WriterSN: 1,
		FragmentStartingNum: 3, FragmentsInSubmessage: 1, FragmentSize: fragSize, SampleSize: uint32(len(payload)),
		SerializedPayload: payload[8:10],
	}

	r.ProcessDataFragMsg(writer, df1, instance(1), types.ChangeKindAlive)
	assert.Equal(t, 0, h.SampleCount(), "incomplete reassembly must not be delivered")
	r.ProcessDataFragMsg(writer, df2, instance(1), types.ChangeKindAlive)
	r.ProcessDataFragMsg(writer, df3, instance(1), types.ChangeKindAlive)

	require.Equal(t, 1, h.SampleCount())
	assert.Equal(t, payload, h.Changes()[0].Payload)
}
