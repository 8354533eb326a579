package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

func testGUID(key byte) types.GUID {
	return types.GUID{
		Prefix: types.GuidPrefix{1, 2, 3},
		Entity: types.EntityId{Key: [3]byte{0, 0, key}, Kind: types.EntityKindReaderWithKey},
	}
}

func TestReaderProxyAckNackTransitionsAndAcknowledge(t *testing.T) {
	pool := history.NewChangePool()
	rp := NewReaderProxy(testGUID(1), nil, nil, false, true, pool)

	c1 := pool.Get()
	c1.SequenceNumber = 1
	c2 := pool.Get()
	c2.SequenceNumber = 2
	c3 := pool.Get()
	c3.SequenceNumber = 3

	rp.AddChange(c1, true)
	rp.AddChange(c2, true)
	rp.AddChange(c3, true)
	assert.Len(t, rp.UnsentChanges(), 3)

	set := types.NewSequenceNumberSet(types.SequenceNumber(2), []types.SequenceNumber{2})
	ok := rp.ProcessAckNack(1, set)
	require.True(t, ok)

	assert.Len(t, rp.RequestedChanges(), 1)
	assert.Equal(t, types.SequenceNumber(2), rp.RequestedChanges()[0].SequenceNumber)

	missing := rp.MissingSequenceNumbers()
	assert.ElementsMatch(t, []types.SequenceNumber{2, 3}, missing)

	stale := rp.ProcessAckNack(1, set)
	assert.False(t, stale, "a non-increasing ACKNACK count must be rejected")
}

func TestReaderProxyResolveFollowsHandle(t *testing.T) {
	pool := history.NewChangePool()
	rp := NewReaderProxy(testGUID(2), nil, nil, false, true, pool)
	c := pool.Get()
	c.SequenceNumber = 5
	rp.AddChange(c, true)

	got, ok := rp.Resolve(5)
	require.True(t, ok)
	assert.Same(t, c, got)

	pool.Release(c)
	_, ok = rp.Resolve(5)
	assert.False(t, ok)
}

func TestWriterProxyHeartbeatAndLostChanges(t *testing.T) {
	wp := NewWriterProxy(testGUID(3), nil, nil, 0)

	isNew := wp.ReceivedHeartbeat(1, 5, 1)
	assert.True(t, isNew)
	assert.False(t, wp.IsUpToDate())

	wp.MarkReceived(1)
	wp.MarkReceived(2)
	wp.MarkIrrelevant(3)

	lost := wp.LostChanges()
	assert.ElementsMatch(t, []types.SequenceNumber{4, 5}, lost.Sequences())

	wp.MarkReceived(4)
	wp.MarkReceived(5)
	assert.True(t, wp.IsUpToDate())

	stale := wp.ReceivedHeartbeat(1, 5, 1)
	assert.False(t, stale)
}

func TestWriterProxyAckNackCountMonotonic(t *testing.T) {
	wp := NewWriterProxy(testGUID(4), nil, nil, 0)
	c1 := wp.NextAckNackCount()
	c2 := wp.NextAckNackCount()
	assert.Less(t, c1, c2)
}

func TestWriterProxyReassemblyTracksFragments(t *testing.T) {
	wp := NewWriterProxy(testGUID(5), nil, nil, 0)
	c := wp.ReassemblyFor(types.SequenceNumber(7), types.InstanceHandle{}, 2000, 1000)
	assert.False(t, c.Fragments.Complete())
	same := wp.ReassemblyFor(types.SequenceNumber(7), types.InstanceHandle{}, 2000, 1000)
	assert.Same(t, c, same, "a second reassembly request for the same sequence number must return the in-progress change")

	wp.DiscardReassembly(7)
	fresh := wp.ReassemblyFor(types.SequenceNumber(7), types.InstanceHandle{}, 2000, 1000)
	assert.NotSame(t, c, fresh)
}
