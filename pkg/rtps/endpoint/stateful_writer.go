package endpoint

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/locator"
	"github.com/rtps-io/rtps-core/pkg/rtps/proxy"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// StatefulWriter maintains a ReaderProxy per matched reader and drives
// reliable delivery via HEARTBEAT/ACKNACK (spec.md §4.2).
type StatefulWriter struct {
	mu sync.Mutex

	guid     types.GUID
	topic    string
	policies qos.Policies
	reliable bool

	history *history.WriterHistory
	pool    *history.ChangePool

	proxies  map[types.GUID]*proxy.ReaderProxy
	selector *locator.Selector

	// requestedFrags records, per (reader, sequence number), the specific
	// fragments a NACK_FRAG asked for (spec.md §4.2 process_nackfrag); a
	// missing entry means "send every fragment".
	requestedFrags map[types.GUID]map[types.SequenceNumber]types.FragmentNumberSet

	sender Sender

	guidPrefix     types.GuidPrefix
	littleEndian   bool
	maxMessageSize int
	fragmentSize   uint32

	sched           *scheduler.Scheduler
	heartbeatTimer  *scheduler.Timer
	heartbeatPeriod time.Duration
	heartbeatCount  int32

	log *logrus.Entry
}

// NewStatefulWriter returns a StatefulWriter with no matched readers yet.
func NewStatefulWriter(guid types.GUID, topic string, p qos.Policies, h *history.WriterHistory, pool *history.ChangePool, sender Sender, sched *scheduler.Scheduler, guidPrefix types.GuidPrefix) *StatefulWriter {
	w := &StatefulWriter{
		guid: guid, topic: topic, policies: p, reliable: p.Reliability == qos.Reliable,
		history: h, pool: pool,
		proxies:        make(map[types.GUID]*proxy.ReaderProxy),
		requestedFrags: make(map[types.GUID]map[types.SequenceNumber]types.FragmentNumberSet),
		selector:       locator.NewSelector(),
		sender:         sender, guidPrefix: guidPrefix, littleEndian: true,
		maxMessageSize: DefaultMaxMessageSize, fragmentSize: DefaultFragmentSize,
		sched: sched,
		log:   logrus.WithFields(logrus.Fields{"component": "rtps-stateful-writer", "writer": guid.String(), "topic": topic}),
	}
	return w
}

// GUID returns the writer's entity GUID.
func (w *StatefulWriter) GUID() types.GUID { return w.guid }

// Topic returns the writer's topic name.
func (w *StatefulWriter) Topic() string { return w.topic }

// MatchedReaderAdd registers remote as a matched reader, idempotently. A
// TRANSIENT_LOCAL-or-better writer replays its entire current history to
// a newly matched reader by marking every existing change UNSENT on its
// proxy (spec.md §4.2 matched_reader_add).
func (w *StatefulWriter) MatchedReaderAdd(remote types.GUID, unicast, multicast []types.Locator, expectsInlineQos bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.proxies[remote]; exists {
		return
	}
	rp := proxy.NewReaderProxy(remote, unicast, multicast, expectsInlineQos, w.reliable, w.pool)
	w.proxies[remote] = rp
	w.selector.AddEntry(locator.Entry{RemoteGUID: remote, UnicastLocators: unicast, MulticastLocators: multicast})

	if w.policies.Durability >= qos.TransientLocal {
		for _, c := range w.history.Changes() {
			rp.AddChange(c, true)
		}
	}
	matchedReaders.WithLabelValues(w.topic).Set(float64(len(w.proxies)))
}

// MatchedReaderRemove tears down the proxy for remote. Any fragments of a
// change still being reassembled for that reader are simply dropped along
// with the proxy (spec.md §4.2 matched_reader_remove).
func (w *StatefulWriter) MatchedReaderRemove(remote types.GUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.proxies, remote)
	delete(w.requestedFrags, remote)
	w.selector.RemoveEntry(remote)
	matchedReaders.WithLabelValues(w.topic).Set(float64(len(w.proxies)))
}

// SetExternality records the externality class the selector should use
// when tie-breaking sends to remote (spec.md §4.5), overriding the
// default LocalExternality a newly matched reader starts with.
func (w *StatefulWriter) SetExternality(remote types.GUID, ext types.Externality) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selector.SetExternality(remote, ext)
}

// AddChange inserts c into history and marks it UNSENT on every matched
// reader, then drives one send-loop pass (spec.md §4.2
// unsent_change_added_to_history, "algorithm — send loop").
func (w *StatefulWriter) AddChange(c *types.CacheChange) error {
	if _, err := w.history.AddChange(c); err != nil {
		return err
	}
	w.mu.Lock()
	for _, rp := range w.proxies {
		rp.AddChange(c, true)
	}
	w.mu.Unlock()
	w.SendLoop()
	return nil
}

// ChangeRemovedByHistory drops sn from every proxy's tracking (spec.md
// §4.2 change_removed_by_history). The underlying CacheChange is already
// released to the pool by the history itself; proxies only ever held a
// non-owning handle to it.
func (w *StatefulWriter) ChangeRemovedByHistory(sn types.SequenceNumber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rp := range w.proxies {
		rp.RemoveChange(sn)
	}
}

// ProcessAckNack folds an incoming ACKNACK into the matching proxy and, if
// it carried new information, drives an immediate send-loop pass, followed
// by an immediate HEARTBEAT when the ACKNACK was not final (spec.md §4.2
// process_acknack).
func (w *StatefulWriter) ProcessAckNack(readerGUID types.GUID, count int32, set types.SequenceNumberSet, final bool) {
	w.mu.Lock()
	rp, ok := w.proxies[readerGUID]
	w.mu.Unlock()
	if !ok {
		return
	}
	if !rp.ProcessAckNack(count, set) {
		return
	}
	acknacksReceived.WithLabelValues(w.topic).Inc()
	w.SendLoop()
	if !final {
		w.sendHeartbeatNow()
	}
}

// ProcessNackFrag records which fragments of sn a reader still wants,
// restricting the next retransmission to just those (spec.md §4.2
// process_nackfrag).
func (w *StatefulWriter) ProcessNackFrag(readerGUID types.GUID, sn types.SequenceNumber, frags types.FragmentNumberSet) {
	w.mu.Lock()
	rp, ok := w.proxies[readerGUID]
	if ok {
		rp.SetStatus(sn, proxy.StatusRequested)
		if w.requestedFrags[readerGUID] == nil {
			w.requestedFrags[readerGUID] = make(map[types.SequenceNumber]types.FragmentNumberSet)
		}
		w.requestedFrags[readerGUID][sn] = frags
	}
	w.mu.Unlock()
	if ok {
		w.SendLoop()
	}
}

// StartHeartbeat begins the periodic HEARTBEAT algorithm: every period,
// for each proxy with a non-empty unacknowledged set, send HEARTBEAT with
// a strictly monotonic count (spec.md §4.2 "algorithm — periodic
// HEARTBEAT").
func (w *StatefulWriter) StartHeartbeat(period time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.heartbeatTimer == nil {
		w.heartbeatTimer = w.sched.NewTimer(w.fireHeartbeat)
	}
	w.heartbeatPeriod = period
	w.heartbeatTimer.Restart(period)
}

func (w *StatefulWriter) fireHeartbeat() {
	w.sendHeartbeatNow()
	w.mu.Lock()
	period := w.heartbeatPeriod
	if period > 0 && w.heartbeatTimer != nil {
		w.heartbeatTimer.Restart(period)
	}
	w.mu.Unlock()
}

// sendHeartbeatNow sends a HEARTBEAT to every proxy with outstanding
// changes, with a fresh monotonic Count shared across this cycle.
func (w *StatefulWriter) sendHeartbeatNow() {
	w.mu.Lock()
	w.heartbeatCount++
	count := w.heartbeatCount
	changes := w.history.Changes()
	var first, last types.SequenceNumber
	if len(changes) > 0 {
		first, last = changes[0].SequenceNumber, changes[len(changes)-1].SequenceNumber
	} else {
		first, last = 1, 0
	}
	type target struct {
		readerId types.EntityId
		locators []types.Locator
	}
	var targets []target
	for _, rp := range w.proxies {
		if len(rp.UnacknowledgedChanges())+len(rp.RequestedChanges()) == 0 {
			continue
		}
		locs := rp.UnicastLocators
		if len(locs) == 0 {
			locs = rp.MulticastLocators
		}
		targets = append(targets, target{locators: locs})
	}
	guidPrefix, littleEndian := w.guidPrefix, w.littleEndian
	w.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	hdr := wire.MessageHeader{Version: wire.ProtocolVersion23, VendorId: wire.VendorIdThisImplementation, GuidPrefix: guidPrefix}
	hb := wire.Heartbeat{WriterId: w.guid.Entity, FirstSN: first, LastSN: last, Count: count, Final: false}
	msg := wire.Message{Header: hdr, LittleEndian: littleEndian, Submessages: []wire.Encodable{hb}}
	encoded := msg.Encode()
	for _, t := range targets {
		w.sender.Send(t.locators, encoded)
	}
	heartbeatsSent.WithLabelValues(w.topic).Inc()
}

// SendLoop gathers every proxy with UNSENT or REQUESTED changes, groups
// destinations via the locator selector, and sends one message per
// resulting locator covering every reader sharing it (spec.md §4.2
// "algorithm — send loop").
func (w *StatefulWriter) SendLoop() {
	w.mu.Lock()
	w.selector.Reset(false)
	pending := make(map[types.GUID]*proxy.ReaderProxy)
	for g, rp := range w.proxies {
		if len(rp.UnsentChanges())+len(rp.RequestedChanges()) > 0 {
			w.selector.Enable(g)
			pending[g] = rp
		}
	}
	if len(pending) == 0 {
		w.mu.Unlock()
		return
	}
	w.selector.SelectionStart()
	plans := w.selector.Plan()
	guidPrefix, littleEndian, maxMsg, fragSize := w.guidPrefix, w.littleEndian, w.maxMessageSize, w.fragmentSize
	readerId := types.EntityId{}
	writerId := w.guid.Entity
	hdr := wire.MessageHeader{Version: wire.ProtocolVersion23, VendorId: wire.VendorIdThisImplementation, GuidPrefix: guidPrefix}

	type planSend struct {
		locators []types.Locator
		msgs     []wire.Message
	}
	var sends []planSend

	for _, plan := range plans {
		var subs []wire.Encodable
		subs = append(subs, infoTimestampNow(time.Now()))
		multi := len(plan.Covers) > 1
		for _, g := range plan.Covers {
			rp := pending[g]
			if rp == nil {
				continue
			}
			if multi {
				subs = append(subs, wire.InfoDestination{GuidPrefix: g.Prefix})
			}
			for _, cfr := range append(rp.UnsentChanges(), rp.RequestedChanges()...) {
				c, ok := rp.Resolve(cfr.SequenceNumber)
				if !ok {
					continue
				}
				var only *types.FragmentNumberSet
				if fs, ok := w.requestedFrags[g][cfr.SequenceNumber]; ok {
					only = &fs
				}
				subs = append(subs, buildDataSubmessages(readerId, writerId, c, fragSize, only)...)
				if w.reliable {
					rp.SetStatus(cfr.SequenceNumber, proxy.StatusUnacknowledged)
				} else {
					// BEST_EFFORT: nothing to acknowledge, so stop tracking
					// the change on this proxy once it has been sent.
					rp.RemoveChange(cfr.SequenceNumber)
				}
				delete(w.requestedFrags[g], cfr.SequenceNumber)
			}
		}
		sends = append(sends, planSend{locators: []types.Locator{plan.Locator}, msgs: packMessages(hdr, littleEndian, subs, maxMsg)})
	}
	w.mu.Unlock()

	for _, s := range sends {
		for _, msg := range s.msgs {
			w.sender.Send(s.locators, msg.Encode())
		}
	}
}

// IsAcknowledgedByAll reports whether every matched reader has
// acknowledged sn, the predicate wait_for_acknowledgments blocks on
// (spec.md §5).
func (w *StatefulWriter) IsAcknowledgedByAll(sn types.SequenceNumber) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rp := range w.proxies {
		for _, missing := range rp.MissingSequenceNumbers() {
			if missing == sn {
				return false
			}
		}
	}
	return true
}
