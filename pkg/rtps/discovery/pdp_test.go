package discovery

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// recordingSender collects every buffer handed to Send, mirroring
// pkg/rtps/endpoint's test double.
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

type recordingPDPListener struct {
	mu         sync.Mutex
	discovered []ParticipantProxyData
	lost       []types.GuidPrefix
}

func (l *recordingPDPListener) ParticipantDiscovered(data ParticipantProxyData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.discovered = append(l.discovered, data)
}

func (l *recordingPDPListener) ParticipantLost(prefix types.GuidPrefix) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lost = append(l.lost, prefix)
}

func (l *recordingPDPListener) discoveredCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.discovered)
}

func (l *recordingPDPListener) lostCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lost)
}

func localGUIDForTest() types.GUID {
	return types.GUID{
		Prefix: types.GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Entity: types.EntityIdParticipant,
	}
}

func newTestPDP(t *testing.T) (*SimplePDP, *recordingSender, *recordingPDPListener) {
	t.Helper()
	sender := &recordingSender{}
	sched := scheduler.New()
	pool := history.NewChangePool()
	listener := &recordingPDPListener{}
	local := ParticipantProxyData{
		GuidPrefix:                localGUIDForTest().Prefix,
		AvailableBuiltinEndpoints: BuiltinParticipantAnnouncer | BuiltinParticipantDetector,
	}
	dest := []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7400}}
	pdp := NewSimplePDP(localGUIDForTest(), local, dest, sender, sched, pool, listener)
	return pdp, sender, listener
}

func TestSimplePDPAnnounceSendsDataP(t *testing.T) {
	pdp, sender, _ := newTestPDP(t)

	pdp.Announce()

	require.Equal(t, 1, sender.count())
	subs := sender.decodeAll(t)
	var found *wire.Data
	for _, s := range subs {
		if s.Data != nil && s.Data.ReaderId == types.EntityIdSPDPReader {
			found = s.Data
		}
	}
	require.NotNil(t, found, "expected a DATA submessage addressed to the SPDP reader")

	pl, err := wireDecodeForTest(t, found.SerializedPayload)
	require.NoError(t, err)
	data, err := DecodeParticipantProxyData(pl)
	require.NoError(t, err)
	assert.Equal(t, localGUIDForTest().Prefix, data.GuidPrefix)
	assert.True(t, data.AvailableBuiltinEndpoints.Has(BuiltinParticipantAnnouncer))
}

func TestSimplePDPRepeatAnnounceEvictsPriorSample(t *testing.T) {
	pdp, _, _ := newTestPDP(t)

	pdp.Announce()
	pdp.Announce()

	assert.Equal(t, 1, pdp.wh.SampleCount(), "KEEP_LAST depth 1 must evict the prior announcement")
}

func TestSimplePDPStartAnnouncingBurstThenSteady(t *testing.T) {
	pdp, sender, _ := newTestPDP(t)

	pdp.StartAnnouncing(3, time.Millisecond, time.Hour)
	assert.Equal(t, 1, sender.count(), "first announcement is sent synchronously")
	assert.Equal(t, 2, pdp.burstRemaining)

	pdp.fireAnnounce()
	assert.Equal(t, 2, sender.count())
	assert.Equal(t, 1, pdp.burstRemaining)

	pdp.fireAnnounce()
	assert.Equal(t, 3, sender.count())
	assert.Equal(t, 0, pdp.burstRemaining, "burst exhausted, timer switched to steady period")

	pdp.fireAnnounce()
	assert.Equal(t, 4, sender.count(), "steady-state resends keep firing")
}

func TestSimplePDPProcessSPDPDataDiscoversParticipant(t *testing.T) {
	pdp, _, listener := newTestPDP(t)

	remote := ParticipantProxyData{
		GuidPrefix:    types.GuidPrefix{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9},
		LeaseDuration: DefaultLeaseDuration,
	}
	payload := remote.Encode().Encode(binary.LittleEndian)

	pdp.ProcessSPDPData(payload, false)

	require.Equal(t, 1, listener.discoveredCount())
	assert.Equal(t, remote.GuidPrefix, listener.discovered[0].GuidPrefix)

	got, ok := pdp.Lookup(remote.GuidPrefix)
	require.True(t, ok)
	assert.Equal(t, remote.GuidPrefix, got.GuidPrefix)
}

func TestSimplePDPProcessSPDPDataDisposedReportsLost(t *testing.T) {
	pdp, _, listener := newTestPDP(t)

	remote := ParticipantProxyData{GuidPrefix: types.GuidPrefix{8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8}}
	payload := remote.Encode().Encode(binary.LittleEndian)

	pdp.ProcessSPDPData(payload, false)
	require.Equal(t, 1, listener.discoveredCount())

	pdp.ProcessSPDPData(payload, true)
	require.Equal(t, 1, listener.lostCount())
	assert.Equal(t, remote.GuidPrefix, listener.lost[0])

	_, ok := pdp.Lookup(remote.GuidPrefix)
	assert.False(t, ok, "disposed participant must be removed from the lease table")
}

func TestSimplePDPLeaseExpiryReportsLost(t *testing.T) {
	sender := &recordingSender{}
	sched := scheduler.New()
	pool := history.NewChangePool()
	listener := &recordingPDPListener{}
	local := ParticipantProxyData{GuidPrefix: localGUIDForTest().Prefix, LeaseDuration: 10 * time.Millisecond}
	dest := []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7400}}
	pdp := NewSimplePDP(localGUIDForTest(), local, dest, sender, sched, pool, listener)

	remote := ParticipantProxyData{
		GuidPrefix:    types.GuidPrefix{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7},
		LeaseDuration: 10 * time.Millisecond,
	}
	pdp.ProcessSPDPData(remote.Encode().Encode(binary.LittleEndian), false)
	require.Equal(t, 1, listener.discoveredCount())

	require.Eventually(t, func() bool { return listener.lostCount() == 1 }, 3*time.Second, 10*time.Millisecond,
		"lease sweep must evict the stale participant and report it lost")
	assert.Equal(t, remote.GuidPrefix, listener.lost[0])
}

func TestSimplePDPDisposeSendsDisposalAndStopsTimer(t *testing.T) {
	pdp, sender, _ := newTestPDP(t)
	pdp.StartAnnouncing(1, time.Millisecond, time.Hour)
	require.Equal(t, 1, sender.count())

	pdp.Dispose()
	require.Equal(t, 2, sender.count())

	subs := sender.decodeAll(t)
	var disposal *wire.Data
	for _, s := range subs {
		if s.Data == nil {
			continue
		}
		if v, ok := s.Data.InlineQos.Get(wire.PIDStatusInfo); ok && len(v) >= 4 && v[3] != 0 {
			disposal = s.Data
		}
	}
	require.NotNil(t, disposal, "expected a DATA(p) carrying PID_STATUS_INFO for the disposal")
	assert.Equal(t, scheduler.StateInactive, pdp.announceTimer.State())
}

func wireDecodeForTest(t *testing.T, payload []byte) (wire.ParameterList, error) {
	t.Helper()
	return wire.DecodeParameterList(payload, binary.LittleEndian, false)
}
