package endpoint

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// StatelessWriter holds no per-reader state: every add_change is sent
// immediately to a fixed destination list, with no retransmission
// (spec.md §4.2).
type StatelessWriter struct {
	mu sync.Mutex

	guid     types.GUID
	topic    string
	policies qos.Policies

	history  *history.WriterHistory
	locators []types.Locator

	sender Sender

	guidPrefix     types.GuidPrefix
	littleEndian   bool
	maxMessageSize int
	fragmentSize   uint32

	sched          *scheduler.Scheduler
	heartbeatTimer *scheduler.Timer
	heartbeatPeriod time.Duration
	heartbeatCount int32

	log *logrus.Entry
}

// NewStatelessWriter returns a StatelessWriter sending to destinations,
// drawing sequence numbers from h.
func NewStatelessWriter(guid types.GUID, topic string, p qos.Policies, h *history.WriterHistory, destinations []types.Locator, sender Sender, sched *scheduler.Scheduler, guidPrefix types.GuidPrefix) *StatelessWriter {
	w := &StatelessWriter{
		guid: guid, topic: topic, policies: p, history: h, locators: destinations,
		sender: sender, guidPrefix: guidPrefix, littleEndian: true,
		maxMessageSize: DefaultMaxMessageSize, fragmentSize: DefaultFragmentSize,
		sched: sched,
		log:   logrus.WithFields(logrus.Fields{"component": "rtps-stateless-writer", "writer": guid.String(), "topic": topic}),
	}
	return w
}

// GUID returns the writer's entity GUID.
func (w *StatelessWriter) GUID() types.GUID { return w.guid }

// Topic returns the writer's topic name.
func (w *StatelessWriter) Topic() string { return w.topic }

// AddChange inserts c into history and immediately serializes and sends
// it to every configured destination (spec.md §4.2 "on add_change:
// serializes DATA (or DATA_FRAG sequence) and sends").
func (w *StatelessWriter) AddChange(c *types.CacheChange) error {
	if _, err := w.history.AddChange(c); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	subs := buildDataSubmessages(types.EntityId{}, w.guid.Entity, c, w.fragmentSize, nil)
	all := make([]wire.Encodable, 0, len(subs)+1)
	all = append(all, infoTimestampNow(time.Now()))
	all = append(all, subs...)

	hdr := wire.MessageHeader{Version: wire.ProtocolVersion23, VendorId: wire.VendorIdThisImplementation, GuidPrefix: w.guidPrefix}
	for _, msg := range packMessages(hdr, w.littleEndian, all, w.maxMessageSize) {
		w.sender.Send(w.locators, msg.Encode())
	}
	return nil
}

// StartHeartbeat begins sending periodic HEARTBEATs announcing this
// writer's available sequence range, for readers that want liveliness
// detection without reliability (spec.md §4.2: "on heartbeat timer (if
// configured): sends HEARTBEAT ... no retransmission logic").
func (w *StatelessWriter) StartHeartbeat(period time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.heartbeatTimer == nil {
		w.heartbeatTimer = w.sched.NewTimer(w.fireHeartbeat)
	}
	w.heartbeatTimer.Restart(period)
	w.heartbeatPeriod = period
}

func (w *StatelessWriter) fireHeartbeat() {
	w.mu.Lock()
	changes := w.history.Changes()
	period := w.heartbeatPeriod
	w.heartbeatCount++
	count := w.heartbeatCount
	locs := append([]types.Locator(nil), w.locators...)
	guidPrefix := w.guidPrefix
	littleEndian := w.littleEndian
	w.mu.Unlock()

	if len(changes) > 0 {
		first, last := changes[0].SequenceNumber, changes[len(changes)-1].SequenceNumber
		hb := wire.Heartbeat{WriterId: w.guid.Entity, FirstSN: first, LastSN: last, Count: count, Final: true}
		hdr := wire.MessageHeader{Version: wire.ProtocolVersion23, VendorId: wire.VendorIdThisImplementation, GuidPrefix: guidPrefix}
		msg := wire.Message{Header: hdr, LittleEndian: littleEndian, Submessages: []wire.Encodable{hb}}
		w.sender.Send(locs, msg.Encode())
		heartbeatsSent.WithLabelValues(w.topic).Inc()
	}

	if period > 0 {
		w.mu.Lock()
		if w.heartbeatTimer != nil {
			w.heartbeatTimer.Restart(period)
		}
		w.mu.Unlock()
	}
}
