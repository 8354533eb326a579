package discovery

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

type recordedMatch struct {
	local  LocalEndpoint
	remote EndpointProxyData
}

type recordingMatchListener struct {
	mu           sync.Mutex
	matched      []recordedMatch
	unmatched    []types.GUID
	incompatible []recordedMatch
}

func (l *recordingMatchListener) EndpointMatched(local LocalEndpoint, remote EndpointProxyData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.matched = append(l.matched, recordedMatch{local, remote})
}

func (l *recordingMatchListener) EndpointUnmatched(localGUID, remoteGUID types.GUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unmatched = append(l.unmatched, remoteGUID)
}

func (l *recordingMatchListener) IncompatibleQos(local LocalEndpoint, remote EndpointProxyData, outcome qos.MatchingOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.incompatible = append(l.incompatible, recordedMatch{local, remote})
}

func (l *recordingMatchListener) matchedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.matched)
}

func (l *recordingMatchListener) unmatchedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.unmatched)
}

func (l *recordingMatchListener) incompatibleCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.incompatible)
}

func newTestEDP(t *testing.T) (*SimpleEDP, *recordingSender, *recordingMatchListener) {
	t.Helper()
	sender := &recordingSender{}
	sched := scheduler.New()
	pool := history.NewChangePool()
	listener := &recordingMatchListener{}
	edp := NewSimpleEDP(localGUIDForTest(), sender, sched, pool, listener)
	return edp, sender, listener
}

func localWriter(guid types.GUID, topic string, reliable bool) LocalEndpoint {
	rel := qos.BestEffort
	if reliable {
		rel = qos.Reliable
	}
	return LocalEndpoint{GUID: guid, Kind: LocalWriter, Policies: qos.Policies{TopicName: topic, Reliability: rel}}
}

func localReader(guid types.GUID, topic string, reliable bool) LocalEndpoint {
	rel := qos.BestEffort
	if reliable {
		rel = qos.Reliable
	}
	return LocalEndpoint{GUID: guid, Kind: LocalReader, Policies: qos.Policies{TopicName: topic, Reliability: rel}}
}

func remoteEndpoint(prefixSeed byte, entityKey byte, kind types.EntityKind, topic string, reliable bool) EndpointProxyData {
	var p types.GuidPrefix
	for i := range p {
		p[i] = prefixSeed
	}
	rel := qos.BestEffort
	if reliable {
		rel = qos.Reliable
	}
	return EndpointProxyData{
		GUID:     types.GUID{Prefix: p, Entity: types.EntityId{Key: [3]byte{0, 0, entityKey}, Kind: kind}},
		Policies: qos.Policies{TopicName: topic, Reliability: rel},
	}
}

func TestSimpleEDPAnnounceLocalEndpointMatchesKnownRemote(t *testing.T) {
	edp, sender, listener := newTestEDP(t)

	remoteReader := remoteEndpoint(0xaa, 1, types.EntityKindReaderNoKey, "Square", true)
	edp.ProcessSubscriptionData(remoteReader.Encode().Encode(binary.LittleEndian), false)

	// The remote participant's builtin publication detector must be matched
	// for the SEDP writer to have anyone to publish DATA(w) to.
	edp.MatchBuiltinParticipant(ParticipantProxyData{
		GuidPrefix:                 remoteReader.GUID.Prefix,
		AvailableBuiltinEndpoints:  BuiltinPublicationDetector,
		MetatrafficUnicastLocators: []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7410}},
	})

	local := localWriter(types.GUID{Prefix: localGUIDForTest().Prefix, Entity: types.EntityId{Key: [3]byte{1, 0, 0}, Kind: types.EntityKindWriterWithKey}}, "Square", true)
	edp.AnnounceLocalEndpoint(local)

	require.Equal(t, 1, listener.matchedCount())
	assert.Equal(t, local.GUID, listener.matched[0].local.GUID)
	assert.Equal(t, remoteReader.GUID, listener.matched[0].remote.GUID)
	assert.Greater(t, sender.count(), 0, "announcing the local writer must publish a DATA(w)")
}

func TestSimpleEDPProcessSubscriptionDataMatchesKnownLocal(t *testing.T) {
	edp, _, listener := newTestEDP(t)

	local := localWriter(types.GUID{Prefix: localGUIDForTest().Prefix, Entity: types.EntityId{Key: [3]byte{1, 0, 0}, Kind: types.EntityKindWriterWithKey}}, "Square", true)
	edp.AnnounceLocalEndpoint(local)
	require.Equal(t, 0, listener.matchedCount())

	remoteReader := remoteEndpoint(0xbb, 1, types.EntityKindReaderNoKey, "Square", true)
	edp.ProcessSubscriptionData(remoteReader.Encode().Encode(binary.LittleEndian), false)

	require.Equal(t, 1, listener.matchedCount())
}

func TestSimpleEDPRepeatedMatchDoesNotRefire(t *testing.T) {
	edp, _, listener := newTestEDP(t)

	local := localWriter(types.GUID{Prefix: localGUIDForTest().Prefix, Entity: types.EntityId{Key: [3]byte{1, 0, 0}, Kind: types.EntityKindWriterWithKey}}, "Square", true)
	edp.AnnounceLocalEndpoint(local)

	remoteReader := remoteEndpoint(0xcc, 1, types.EntityKindReaderNoKey, "Square", true)
	payload := remoteReader.Encode().Encode(binary.LittleEndian)
	edp.ProcessSubscriptionData(payload, false)
	edp.ProcessSubscriptionData(payload, false)

	assert.Equal(t, 1, listener.matchedCount(), "a repeat DATA(r) for the same remote must not refire EndpointMatched")
}

func TestSimpleEDPIncompatibleQosDoesNotMatch(t *testing.T) {
	edp, _, listener := newTestEDP(t)

	local := localWriter(types.GUID{Prefix: localGUIDForTest().Prefix, Entity: types.EntityId{Key: [3]byte{1, 0, 0}, Kind: types.EntityKindWriterWithKey}}, "Square", false)
	edp.AnnounceLocalEndpoint(local)

	remoteReader := remoteEndpoint(0xdd, 1, types.EntityKindReaderNoKey, "Square", true)
	edp.ProcessSubscriptionData(remoteReader.Encode().Encode(binary.LittleEndian), false)

	require.Equal(t, 0, listener.matchedCount())
	require.Equal(t, 1, listener.incompatibleCount(), "a BEST_EFFORT writer can't satisfy a RELIABLE reader's request")
}

func TestSimpleEDPProcessSubscriptionDataDisposalUnmatches(t *testing.T) {
	edp, _, listener := newTestEDP(t)

	local := localWriter(types.GUID{Prefix: localGUIDForTest().Prefix, Entity: types.EntityId{Key: [3]byte{1, 0, 0}, Kind: types.EntityKindWriterWithKey}}, "Square", true)
	edp.AnnounceLocalEndpoint(local)

	remoteReader := remoteEndpoint(0xee, 1, types.EntityKindReaderNoKey, "Square", true)
	payload := remoteReader.Encode().Encode(binary.LittleEndian)
	edp.ProcessSubscriptionData(payload, false)
	require.Equal(t, 1, listener.matchedCount())

	edp.ProcessSubscriptionData(payload, true)
	require.Equal(t, 1, listener.unmatchedCount())
	assert.Equal(t, remoteReader.GUID, listener.unmatched[0])
}

func TestSimpleEDPWithdrawLocalEndpointUnmatchesRemotes(t *testing.T) {
	edp, _, listener := newTestEDP(t)

	local := localWriter(types.GUID{Prefix: localGUIDForTest().Prefix, Entity: types.EntityId{Key: [3]byte{1, 0, 0}, Kind: types.EntityKindWriterWithKey}}, "Square", true)
	edp.AnnounceLocalEndpoint(local)

	remoteReader := remoteEndpoint(0xff, 1, types.EntityKindReaderNoKey, "Square", true)
	edp.ProcessSubscriptionData(remoteReader.Encode().Encode(binary.LittleEndian), false)
	require.Equal(t, 1, listener.matchedCount())

	edp.WithdrawLocalEndpoint(local.GUID)
	require.Equal(t, 1, listener.unmatchedCount())
	assert.Equal(t, remoteReader.GUID, listener.unmatched[0])
}

func TestSimpleEDPUnmatchParticipantUnmatchesAllItsEndpoints(t *testing.T) {
	edp, _, listener := newTestEDP(t)

	localW := localWriter(types.GUID{Prefix: localGUIDForTest().Prefix, Entity: types.EntityId{Key: [3]byte{1, 0, 0}, Kind: types.EntityKindWriterWithKey}}, "Square", true)
	localR := localReader(types.GUID{Prefix: localGUIDForTest().Prefix, Entity: types.EntityId{Key: [3]byte{2, 0, 0}, Kind: types.EntityKindReaderWithKey}}, "Circle", true)
	edp.AnnounceLocalEndpoint(localW)
	edp.AnnounceLocalEndpoint(localR)

	var prefix types.GuidPrefix
	for i := range prefix {
		prefix[i] = 0x55
	}
	remoteReader := EndpointProxyData{GUID: types.GUID{Prefix: prefix, Entity: types.EntityId{Key: [3]byte{0, 0, 1}, Kind: types.EntityKindReaderNoKey}}, Policies: qos.Policies{TopicName: "Square", Reliability: qos.Reliable}}
	remoteWriter := EndpointProxyData{GUID: types.GUID{Prefix: prefix, Entity: types.EntityId{Key: [3]byte{0, 0, 2}, Kind: types.EntityKindWriterNoKey}}, Policies: qos.Policies{TopicName: "Circle", Reliability: qos.Reliable}}
	edp.ProcessSubscriptionData(remoteReader.Encode().Encode(binary.LittleEndian), false)
	edp.ProcessPublicationData(remoteWriter.Encode().Encode(binary.LittleEndian), false)
	require.Equal(t, 2, listener.matchedCount())

	edp.UnmatchParticipant(prefix)

	require.Equal(t, 2, listener.unmatchedCount())
}
