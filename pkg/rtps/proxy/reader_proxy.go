package proxy

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// ReaderProxy is a StatefulWriter's record of one matched remote reader
// (spec.md §3, §4.2). It tracks, per change, delivery status — never the
// change's payload itself, which stays owned by the writer's history.
type ReaderProxy struct {
	mu sync.Mutex

	RemoteReaderGUID  types.GUID
	UnicastLocators   []types.Locator
	MulticastLocators []types.Locator
	ExpectsInlineQos  bool
	IsReliable        bool

	pool    *history.ChangePool
	changes map[types.SequenceNumber]*ChangeForReader

	highestAckNackCount int32

	log *logrus.Entry
}

// NewReaderProxy returns a proxy for remote with no changes yet recorded
// (spec.md §4.2 matched_reader_add).
func NewReaderProxy(remote types.GUID, unicast, multicast []types.Locator, expectsInlineQos, reliable bool, pool *history.ChangePool) *ReaderProxy {
	return &ReaderProxy{
		RemoteReaderGUID:  remote,
		UnicastLocators:   unicast,
		MulticastLocators: multicast,
		ExpectsInlineQos:  expectsInlineQos,
		IsReliable:        reliable,
		pool:              pool,
		changes:           make(map[types.SequenceNumber]*ChangeForReader),
		log:               logrus.WithFields(logrus.Fields{"component": "rtps-reader-proxy", "remote_reader": remote.String()}),
	}
}

// AddChange records c as UNSENT for this reader, whatever its reliability
// (spec.md §4.2 unsent_change_added_to_history, and the
// bulk snapshot taken at matched_reader_add for a reader joining with
// existing history already present).
func (p *ReaderProxy) AddChange(c *types.CacheChange, relevant bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes[c.SequenceNumber] = &ChangeForReader{
		SequenceNumber: c.SequenceNumber,
		Handle:         p.pool.HandleOf(c),
		Status:         StatusUnsent,
		IsRelevant:     relevant,
	}
}

// RemoveChange drops sn from this proxy's tracking without touching the
// writer's history (spec.md §4.2 change_removed_by_history: the proxy is
// simply told the change no longer exists, and must GAP any reader that
// hadn't yet acknowledged it).
func (p *ReaderProxy) RemoveChange(sn types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.changes, sn)
}

// sortedLocked returns this proxy's tracked sequence numbers in ascending
// order. Caller must hold p.mu.
func (p *ReaderProxy) sortedLocked() []types.SequenceNumber {
	out := make([]types.SequenceNumber, 0, len(p.changes))
	for sn := range p.changes {
		out = append(out, sn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// changesWithStatus returns a snapshot of changes currently in the given
// status, ascending by sequence number.
func (p *ReaderProxy) changesWithStatus(status ChangeForReaderStatus) []*ChangeForReader {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*ChangeForReader
	for _, sn := range p.sortedLocked() {
		if c := p.changes[sn]; c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

// UnsentChanges returns changes not yet sent to this reader (spec.md
// §4.2's send-loop source set for BEST_EFFORT and the first pass of
// RELIABLE delivery).
func (p *ReaderProxy) UnsentChanges() []*ChangeForReader { return p.changesWithStatus(StatusUnsent) }

// RequestedChanges returns changes explicitly NACKed by this reader.
func (p *ReaderProxy) RequestedChanges() []*ChangeForReader {
	return p.changesWithStatus(StatusRequested)
}

// UnacknowledgedChanges returns changes sent but not yet confirmed
// received, the set a HEARTBEAT must keep the reader aware of.
func (p *ReaderProxy) UnacknowledgedChanges() []*ChangeForReader {
	return p.changesWithStatus(StatusUnacknowledged)
}

// SetStatus transitions sn to status, if still tracked.
func (p *ReaderProxy) SetStatus(sn types.SequenceNumber, status ChangeForReaderStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.changes[sn]; ok {
		c.Status = status
	}
}

// Resolve looks up the CacheChange a tracked sequence number refers to,
// returning ok=false if the change has since been recycled by the pool
// (spec.md §9: stale handles resolve to nothing rather than dangling).
func (p *ReaderProxy) Resolve(sn types.SequenceNumber) (*types.CacheChange, bool) {
	p.mu.Lock()
	cfr, tracked := p.changes[sn]
	p.mu.Unlock()
	if !tracked {
		return nil, false
	}
	return p.pool.Resolve(cfr.Handle)
}

// ProcessAckNack folds an incoming ACKNACK into this proxy's per-change
// status (spec.md §4.2 process_acknack): sequence numbers in the reader's
// set become REQUESTED; every tracked sequence number below the set's
// base, whatever its status, becomes ACKNOWLEDGED and is dropped from
// tracking, since the writer no longer needs to account for them.
// Returns false if count is not newer than the last processed ACKNACK
// (RTPS 2.3 §8.3.7.1: Count strictly increases; stale/duplicate messages
// are ignored).
func (p *ReaderProxy) ProcessAckNack(count int32, set types.SequenceNumberSet) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= p.highestAckNackCount {
		return false
	}
	p.highestAckNackCount = count

	for sn, c := range p.changes {
		switch {
		case set.Contains(sn):
			c.Status = StatusRequested
		case sn < set.Base:
			c.Status = StatusAcknowledged
			delete(p.changes, sn)
		}
	}
	return true
}

// MissingSequenceNumbers returns, ascending, every sequence number this
// proxy still owes the reader a DATA or GAP for — used to build a
// HEARTBEAT's first/last range and to decide when this reader has nothing
// left outstanding.
func (p *ReaderProxy) MissingSequenceNumbers() []types.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.SequenceNumber
	for _, sn := range p.sortedLocked() {
		if p.changes[sn].Status != StatusAcknowledged {
			out = append(out, sn)
		}
	}
	return out
}

// IsUpToDate reports whether every change tracked for this reader has been
// acknowledged.
func (p *ReaderProxy) IsUpToDate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.changes {
		if c.Status != StatusAcknowledged {
			return false
		}
	}
	return true
}
