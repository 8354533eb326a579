package participant

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/endpoint"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// readerSink is the uniform surface the demux dispatches DATA/DATA_FRAG/
// HEARTBEAT/GAP submessages through, bridging StatefulReader's and
// StatelessReader's differing method signatures (StatefulReader.
// ProcessDataMsg takes a writerGUID it uses to track a WriterProxy;
// StatelessReader.ProcessDataMsg does not, since best-effort reception
// tracks no proxy) behind one interface (spec.md §4.9 step 3).
type readerSink interface {
	endpoint.Endpoint
	processData(writerGUID types.GUID, c *types.CacheChange)
	processDataFrag(writerGUID types.GUID, df wire.DataFrag, ih types.InstanceHandle, kind types.ChangeKind)
	processHeartbeat(writerGUID types.GUID, firstSN, lastSN types.SequenceNumber, count int32, final, liveliness bool)
	processGap(writerGUID types.GUID, gapStart types.SequenceNumber, gapList types.SequenceNumberSet)
	// matchedWriterAdd/Remove wire SimpleEDP's match outcomes into the
	// reader's WriterProxy table. A no-op on a best-effort sink: SimpleEDP
	// only ever matches user (stateful) endpoints, never the builtin SPDP
	// pair, which SimplePDP matches nothing against at all.
	matchedWriterAdd(remote types.GUID, unicast, multicast []types.Locator, ownershipStrength int32)
	matchedWriterRemove(remote types.GUID)
}

// writerSink is the equivalent bridge for ACKNACK/NACK_FRAG dispatch to
// the local writer table.
type writerSink interface {
	endpoint.Endpoint
	processAckNack(readerGUID types.GUID, count int32, set types.SequenceNumberSet, final bool)
	processNackFrag(readerGUID types.GUID, sn types.SequenceNumber, frags types.FragmentNumberSet)
	matchedReaderAdd(remote types.GUID, unicast, multicast []types.Locator, expectsInlineQos bool)
	matchedReaderRemove(remote types.GUID)
	// setExternality feeds the Selector's externality tie-break (spec.md
	// §4.5) for one matched reader. A no-op on a best-effort sink: a
	// StatelessWriter sends to every matched reader every time, with no
	// selection to tie-break.
	setExternality(remote types.GUID, ext types.Externality)
}

type statefulReaderSink struct{ r *endpoint.StatefulReader }

func (s statefulReaderSink) GUID() types.GUID { return s.r.GUID() }
func (s statefulReaderSink) Topic() string    { return s.r.Topic() }
func (s statefulReaderSink) processData(writerGUID types.GUID, c *types.CacheChange) {
	s.r.ProcessDataMsg(writerGUID, c)
}
func (s statefulReaderSink) processDataFrag(writerGUID types.GUID, df wire.DataFrag, ih types.InstanceHandle, kind types.ChangeKind) {
	s.r.ProcessDataFragMsg(writerGUID, df, ih, kind)
}
func (s statefulReaderSink) processHeartbeat(writerGUID types.GUID, firstSN, lastSN types.SequenceNumber, count int32, final, liveliness bool) {
	s.r.ProcessHeartbeatMsg(writerGUID, firstSN, lastSN, count, final, liveliness)
}
func (s statefulReaderSink) processGap(writerGUID types.GUID, gapStart types.SequenceNumber, gapList types.SequenceNumberSet) {
	s.r.ProcessGapMsg(writerGUID, gapStart, gapList)
}
func (s statefulReaderSink) matchedWriterAdd(remote types.GUID, unicast, multicast []types.Locator, ownershipStrength int32) {
	s.r.MatchedWriterAdd(remote, unicast, multicast, ownershipStrength)
}
func (s statefulReaderSink) matchedWriterRemove(remote types.GUID) {
	s.r.MatchedWriterRemove(remote)
}

type statelessReaderSink struct{ r *endpoint.StatelessReader }

func (s statelessReaderSink) GUID() types.GUID { return s.r.GUID() }
func (s statelessReaderSink) Topic() string    { return s.r.Topic() }
func (s statelessReaderSink) processData(_ types.GUID, c *types.CacheChange) {
	s.r.ProcessDataMsg(c)
}
func (s statelessReaderSink) processDataFrag(writerGUID types.GUID, df wire.DataFrag, ih types.InstanceHandle, kind types.ChangeKind) {
	s.r.ProcessDataFragMsg(writerGUID, df, ih, kind)
}

// processHeartbeat/processGap are no-ops for a best-effort reader: it
// tracks no WriterProxy, so there is nothing to advance or mark
// irrelevant — HEARTBEAT/GAP exist only to drive reliable recovery.
func (s statelessReaderSink) processHeartbeat(types.GUID, types.SequenceNumber, types.SequenceNumber, int32, bool, bool) {
}
func (s statelessReaderSink) processGap(types.GUID, types.SequenceNumber, types.SequenceNumberSet) {
}

// matchedWriterAdd/Remove are no-ops: StatelessReader tracks no WriterProxy
// table, and SimpleEDP never matches the builtin best-effort endpoints.
func (s statelessReaderSink) matchedWriterAdd(types.GUID, []types.Locator, []types.Locator, int32) {}
func (s statelessReaderSink) matchedWriterRemove(types.GUID)                                       {}

type statefulWriterSink struct{ w *endpoint.StatefulWriter }

func (s statefulWriterSink) GUID() types.GUID { return s.w.GUID() }
func (s statefulWriterSink) Topic() string    { return s.w.Topic() }
func (s statefulWriterSink) processAckNack(readerGUID types.GUID, count int32, set types.SequenceNumberSet, final bool) {
	s.w.ProcessAckNack(readerGUID, count, set, final)
}
func (s statefulWriterSink) processNackFrag(readerGUID types.GUID, sn types.SequenceNumber, frags types.FragmentNumberSet) {
	s.w.ProcessNackFrag(readerGUID, sn, frags)
}
func (s statefulWriterSink) matchedReaderAdd(remote types.GUID, unicast, multicast []types.Locator, expectsInlineQos bool) {
	s.w.MatchedReaderAdd(remote, unicast, multicast, expectsInlineQos)
}
func (s statefulWriterSink) matchedReaderRemove(remote types.GUID) {
	s.w.MatchedReaderRemove(remote)
}
func (s statefulWriterSink) setExternality(remote types.GUID, ext types.Externality) {
	s.w.SetExternality(remote, ext)
}

type statelessWriterSink struct{ w *endpoint.StatelessWriter }

func (s statelessWriterSink) GUID() types.GUID { return s.w.GUID() }
func (s statelessWriterSink) Topic() string    { return s.w.Topic() }

// processAckNack/processNackFrag are no-ops: a best-effort writer keeps no
// reader proxies and never retries, so a stray ACKNACK/NACK_FRAG addressed
// to it (from a peer that mistakenly treats it as reliable) has nothing to
// act on.
func (s statelessWriterSink) processAckNack(types.GUID, int32, types.SequenceNumberSet, bool) {}
func (s statelessWriterSink) processNackFrag(types.GUID, types.SequenceNumber, types.FragmentNumberSet) {
}

// matchedReaderAdd/Remove are no-ops: StatelessWriter keeps no ReaderProxy
// table, and SimpleEDP never matches the builtin best-effort endpoints.
func (s statelessWriterSink) matchedReaderAdd(types.GUID, []types.Locator, []types.Locator, bool) {}
func (s statelessWriterSink) matchedReaderRemove(types.GUID)                                      {}
func (s statelessWriterSink) setExternality(types.GUID, types.Externality)                        {}

// endpointRegistry is the participant's entity-id-keyed lookup tables for
// its own local readers and writers (spec.md §4.9: "owns the collection
// of local endpoints"), plus the monotonic counter backing auto-generated
// entity ids.
type endpointRegistry struct {
	readers map[types.EntityId]readerSink
	writers map[types.EntityId]writerSink

	nextEntityKey uint32
}

func newEndpointRegistry() *endpointRegistry {
	return &endpointRegistry{
		readers: make(map[types.EntityId]readerSink),
		writers: make(map[types.EntityId]writerSink),
	}
}

func (e *endpointRegistry) allocateEntityKey() uint32 {
	e.nextEntityKey++
	return e.nextEntityKey
}

func (e *endpointRegistry) addReader(id types.EntityId, r readerSink) { e.readers[id] = r }
func (e *endpointRegistry) addWriter(id types.EntityId, w writerSink) { e.writers[id] = w }
func (e *endpointRegistry) removeReader(id types.EntityId)            { delete(e.readers, id) }
func (e *endpointRegistry) removeWriter(id types.EntityId)            { delete(e.writers, id) }

// reader / writer do the demux's direct, non-wildcard entity-id lookup
// (spec.md §4.9 step 3).
func (e *endpointRegistry) reader(id types.EntityId) (readerSink, bool) {
	r, ok := e.readers[id]
	return r, ok
}

func (e *endpointRegistry) writer(id types.EntityId) (writerSink, bool) {
	w, ok := e.writers[id]
	return w, ok
}

// allReaders returns every registered reader sink, used by the demux's
// wildcard-ReaderId broadcast path.
func (e *endpointRegistry) allReaders() []readerSink {
	out := make([]readerSink, 0, len(e.readers))
	for _, r := range e.readers {
		out = append(out, r)
	}
	return out
}

func (e *endpointRegistry) allWriters() []writerSink {
	out := make([]writerSink, 0, len(e.writers))
	for _, w := range e.writers {
		out = append(out, w)
	}
	return out
}
