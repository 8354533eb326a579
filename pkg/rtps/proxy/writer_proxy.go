package proxy

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// WriterProxy is a StatefulReader's record of one matched remote writer
// (spec.md §3, §4.3). It tracks which sequence numbers have been received,
// which are known irrelevant (via GAP), and which are still missing,
// without owning the corresponding CacheChanges — those live in the
// reader's history once reassembled.
type WriterProxy struct {
	mu sync.Mutex

	RemoteWriterGUID  types.GUID
	UnicastLocators   []types.Locator
	MulticastLocators []types.Locator
	OwnershipStrength int32

	received   map[types.SequenceNumber]bool
	irrelevant map[types.SequenceNumber]bool

	heartbeatSeen      bool
	heartbeatFirstSN   types.SequenceNumber
	heartbeatLastSN    types.SequenceNumber
	lastHeartbeatCount int32

	nextAckNackCount int32

	reassembly map[types.SequenceNumber]*types.CacheChange

	log *logrus.Entry
}

// NewWriterProxy returns a proxy for remote with nothing yet received
// (spec.md §4.3 matched_writer_add).
func NewWriterProxy(remote types.GUID, unicast, multicast []types.Locator, ownershipStrength int32) *WriterProxy {
	return &WriterProxy{
		RemoteWriterGUID:  remote,
		UnicastLocators:   unicast,
		MulticastLocators: multicast,
		OwnershipStrength: ownershipStrength,
		received:          make(map[types.SequenceNumber]bool),
		irrelevant:        make(map[types.SequenceNumber]bool),
		reassembly:        make(map[types.SequenceNumber]*types.CacheChange),
		nextAckNackCount:  1,
		log:               logrus.WithFields(logrus.Fields{"component": "rtps-writer-proxy", "remote_writer": remote.String()}),
	}
}

// ReceivedHeartbeat updates the known-available range from a HEARTBEAT
// submessage (spec.md §4.3 process_heartbeat_msg). isNew reports whether
// count was greater than the last heartbeat processed — a stale or
// duplicate heartbeat should not trigger a fresh ACKNACK.
func (p *WriterProxy) ReceivedHeartbeat(firstSN, lastSN types.SequenceNumber, count int32) (isNew bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heartbeatSeen && count <= p.lastHeartbeatCount {
		return false
	}
	p.heartbeatSeen = true
	p.lastHeartbeatCount = count
	p.heartbeatFirstSN = firstSN
	if lastSN > p.heartbeatLastSN {
		p.heartbeatLastSN = lastSN
	}
	for sn := range p.received {
		if sn < firstSN {
			delete(p.received, sn)
		}
	}
	for sn := range p.irrelevant {
		if sn < firstSN {
			delete(p.irrelevant, sn)
		}
	}
	return true
}

// Received reports whether sn has already been fully received, the
// duplicate check process_data_msg performs before offering a change to
// the reader history (spec.md §4.3).
func (p *WriterProxy) Received(sn types.SequenceNumber) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received[sn]
}

// MarkReceived records sn as fully received (spec.md §4.3 process_data_msg,
// once reassembly if any is complete).
func (p *WriterProxy) MarkReceived(sn types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received[sn] = true
	delete(p.reassembly, sn)
}

// MarkIrrelevant records sn as never to be expected (spec.md §4.3
// process_gap_msg).
func (p *WriterProxy) MarkIrrelevant(sn types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.irrelevant[sn] = true
	delete(p.reassembly, sn)
}

// LostChanges returns, as a SequenceNumberSet based at the lowest missing
// sequence number, every sequence number the writer has announced (via
// HEARTBEAT) that this proxy has neither received nor been told is
// irrelevant — the NACK set for the next ACKNACK (spec.md §4.3).
func (p *WriterProxy) LostChanges() types.SequenceNumberSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.heartbeatSeen || p.heartbeatLastSN < p.heartbeatFirstSN {
		return types.SequenceNumberSet{Base: types.SequenceNumber(1)}
	}
	var missing []types.SequenceNumber
	for sn := p.heartbeatFirstSN; sn <= p.heartbeatLastSN; sn++ {
		if !p.received[sn] && !p.irrelevant[sn] {
			missing = append(missing, sn)
		}
	}
	if len(missing) == 0 {
		return types.SequenceNumberSet{Base: p.heartbeatLastSN + 1}
	}
	return types.NewSequenceNumberSet(missing[0], missing)
}

// IsUpToDate reports whether every sequence number the writer has
// announced has been accounted for (received or irrelevant).
func (p *WriterProxy) IsUpToDate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.heartbeatSeen {
		return true
	}
	for sn := p.heartbeatFirstSN; sn <= p.heartbeatLastSN; sn++ {
		if !p.received[sn] && !p.irrelevant[sn] {
			return false
		}
	}
	return true
}

// NextAckNackCount returns this proxy's next locally-assigned ACKNACK
// Count and increments it, maintaining the strictly-increasing sequence
// RTPS 2.3 §8.3.7.1 requires.
func (p *WriterProxy) NextAckNackCount() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.nextAckNackCount
	p.nextAckNackCount++
	return c
}

// ReassemblyFor returns the in-progress CacheChange being assembled for
// sn, creating and fragment-initializing it on first call (spec.md §4.3
// process_data_frag_msg, §4.1 set_fragments).
func (p *WriterProxy) ReassemblyFor(sn types.SequenceNumber, ih types.InstanceHandle, totalSize, fragmentSize uint32) *types.CacheChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.reassembly[sn]; ok {
		return c
	}
	c := &types.CacheChange{
		Kind:           types.ChangeKindAlive,
		WriterGUID:     p.RemoteWriterGUID,
		SequenceNumber: sn,
		InstanceHandle: ih,
		Payload:        make([]byte, totalSize),
		Fragmented:     true,
		Fragments:      types.NewFragmentationState(totalSize, fragmentSize),
	}
	p.reassembly[sn] = c
	return c
}

// DiscardReassembly drops any in-progress reassembly state for sn without
// marking it received or irrelevant (e.g. the writer proxy is being torn
// down while a fragmented change is still in flight).
func (p *WriterProxy) DiscardReassembly(sn types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reassembly, sn)
}
