package participant

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/locator"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// wildcardEntity is the zero-value EntityId a StatefulWriter/StatefulReader
// addresses DATA/HEARTBEAT/ACKNACK to when it has not narrowed a submessage
// to one specific remote entity (pkg/rtps/endpoint always sends this way,
// relying on InfoDestination plus each writer/reader proxy's own filtering)
// — the demux broadcasts to every local endpoint of the right direction
// instead of doing a single map lookup (spec.md §4.9 step 3).
var wildcardEntity = types.EntityId{}

// demux implements the incoming-message path spec.md §4.9 describes: parse
// the fixed header, scan submessages tracking INFO_TS/INFO_DST state, and
// dispatch DATA/DATA_FRAG/HEARTBEAT/GAP to local readers and ACKNACK/
// NACK_FRAG to local writers. It is installed as the locator.OnDatagram
// callback for every input channel a participant opens, so it runs on
// whichever transport-receive goroutine delivered the datagram — it must
// never block on I/O itself (spec.md §5).
type demux struct {
	ownPrefix types.GuidPrefix
	registry  *endpointRegistry
	pool      *history.ChangePool
	fragCache *fragInlineQosCache
	log       *logrus.Entry
}

func newDemux(ownPrefix types.GuidPrefix, registry *endpointRegistry, pool *history.ChangePool, log *logrus.Entry) *demux {
	return &demux{
		ownPrefix: ownPrefix,
		registry:  registry,
		pool:      pool,
		fragCache: newFragInlineQosCache(),
		log:       log,
	}
}

// onDatagram is the locator.OnDatagram callback.
func (d *demux) onDatagram(dg locator.Datagram) {
	receivedAt := time.Now()

	hdr, err := wire.DecodeMessageHeader(dg.Payload)
	if err != nil {
		messagesDropped.WithLabelValues("bad_header").Inc()
		return
	}
	if hdr.Version.Major != wire.ProtocolVersion23.Major {
		messagesDropped.WithLabelValues("protocol_version").Inc()
		return
	}
	if hdr.GuidPrefix == d.ownPrefix {
		messagesDropped.WithLabelValues("self_sourced").Inc()
		return
	}

	_, subs, err := wire.DecodeMessage(dg.Payload)
	if err != nil {
		messagesDropped.WithLabelValues("decode_error").Inc()
		return
	}

	currentTimestamp := receivedAt
	var destRestricted bool
	var dest types.GuidPrefix

	for _, sub := range subs {
		switch sub.Kind {
		case wire.KindInfoTimestamp:
			if sub.InfoTimestamp != nil && !sub.InfoTimestamp.Invalidate {
				currentTimestamp = sub.InfoTimestamp.Timestamp
			}
			continue
		case wire.KindInfoDest:
			if sub.InfoDest != nil {
				dest = sub.InfoDest.GuidPrefix
				destRestricted = !dest.IsUnknown()
			}
			continue
		}

		if destRestricted && dest != d.ownPrefix {
			continue
		}

		switch sub.Kind {
		case wire.KindData:
			d.dispatchData(hdr.GuidPrefix, *sub.Data, currentTimestamp, receivedAt)
		case wire.KindDataFrag:
			d.dispatchDataFrag(hdr.GuidPrefix, *sub.DataFrag)
		case wire.KindHeartbeat:
			d.dispatchHeartbeat(hdr.GuidPrefix, *sub.Heartbeat)
		case wire.KindGap:
			d.dispatchGap(hdr.GuidPrefix, *sub.Gap)
		case wire.KindAckNack:
			d.dispatchAckNack(hdr.GuidPrefix, *sub.AckNack)
		case wire.KindNackFrag:
			d.dispatchNackFrag(hdr.GuidPrefix, *sub.NackFrag)
		default:
			// HeartbeatFrag/InfoSource/InfoReply carry no local endpoint
			// dispatch in this implementation; decoded and ignored.
		}
	}
}

func (d *demux) dispatchData(writerPrefix types.GuidPrefix, data wire.Data, sourceTimestamp, receivedAt time.Time) {
	writerGUID := types.GUID{Prefix: writerPrefix, Entity: data.WriterId}
	c := changeFromData(d.pool, data, sourceTimestamp, receivedAt)

	if data.ReaderId != wildcardEntity {
		if r, ok := d.registry.reader(data.ReaderId); ok {
			r.processData(writerGUID, c)
			submessagesDispatched.WithLabelValues("data").Inc()
			return
		}
		messagesDropped.WithLabelValues("unknown_entity").Inc()
		return
	}
	for _, r := range d.registry.allReaders() {
		r.processData(writerGUID, c)
	}
	submessagesDispatched.WithLabelValues("data").Inc()
}

func (d *demux) dispatchDataFrag(writerPrefix types.GuidPrefix, df wire.DataFrag) {
	writerGUID := types.GUID{Prefix: writerPrefix, Entity: df.WriterId}
	lastFragment := uint32(df.FragmentStartingNum) + uint32(df.FragmentsInSubmessage) - 1
	totalFragments := df.SampleSize / uint32(df.FragmentSize)
	if df.SampleSize%uint32(df.FragmentSize) != 0 {
		totalFragments++
	}
	complete := lastFragment >= totalFragments

	if df.ReaderId != wildcardEntity {
		if r, ok := d.registry.reader(df.ReaderId); ok {
			ih, kind := d.fragCache.decode(writerGUID, df, complete)
			r.processDataFrag(writerGUID, df, ih, kind)
			submessagesDispatched.WithLabelValues("data_frag").Inc()
			return
		}
		messagesDropped.WithLabelValues("unknown_entity").Inc()
		return
	}
	readers := d.registry.allReaders()
	for i, r := range readers {
		// Every matched reader must see the same decoded kind; only the
		// last one triggers the cache's forget-on-complete bookkeeping.
		ih, kind := d.fragCache.decode(writerGUID, df, complete && i == len(readers)-1)
		r.processDataFrag(writerGUID, df, ih, kind)
	}
	submessagesDispatched.WithLabelValues("data_frag").Inc()
}

func (d *demux) dispatchHeartbeat(writerPrefix types.GuidPrefix, hb wire.Heartbeat) {
	writerGUID := types.GUID{Prefix: writerPrefix, Entity: hb.WriterId}
	if hb.ReaderId != wildcardEntity {
		if r, ok := d.registry.reader(hb.ReaderId); ok {
			r.processHeartbeat(writerGUID, hb.FirstSN, hb.LastSN, hb.Count, hb.Final, hb.Liveliness)
			submessagesDispatched.WithLabelValues("heartbeat").Inc()
			return
		}
		messagesDropped.WithLabelValues("unknown_entity").Inc()
		return
	}
	for _, r := range d.registry.allReaders() {
		r.processHeartbeat(writerGUID, hb.FirstSN, hb.LastSN, hb.Count, hb.Final, hb.Liveliness)
	}
	submessagesDispatched.WithLabelValues("heartbeat").Inc()
}

func (d *demux) dispatchGap(writerPrefix types.GuidPrefix, g wire.Gap) {
	writerGUID := types.GUID{Prefix: writerPrefix, Entity: g.WriterId}
	if g.ReaderId != wildcardEntity {
		if r, ok := d.registry.reader(g.ReaderId); ok {
			r.processGap(writerGUID, g.GapStart, g.GapList)
			submessagesDispatched.WithLabelValues("gap").Inc()
			return
		}
		messagesDropped.WithLabelValues("unknown_entity").Inc()
		return
	}
	for _, r := range d.registry.allReaders() {
		r.processGap(writerGUID, g.GapStart, g.GapList)
	}
	submessagesDispatched.WithLabelValues("gap").Inc()
}

func (d *demux) dispatchAckNack(readerPrefix types.GuidPrefix, an wire.AckNack) {
	readerGUID := types.GUID{Prefix: readerPrefix, Entity: an.ReaderId}
	if an.WriterId != wildcardEntity {
		if w, ok := d.registry.writer(an.WriterId); ok {
			w.processAckNack(readerGUID, an.Count, an.ReaderSNState, an.Final)
			submessagesDispatched.WithLabelValues("acknack").Inc()
			return
		}
		messagesDropped.WithLabelValues("unknown_entity").Inc()
		return
	}
	for _, w := range d.registry.allWriters() {
		w.processAckNack(readerGUID, an.Count, an.ReaderSNState, an.Final)
	}
	submessagesDispatched.WithLabelValues("acknack").Inc()
}

func (d *demux) dispatchNackFrag(readerPrefix types.GuidPrefix, nf wire.NackFrag) {
	readerGUID := types.GUID{Prefix: readerPrefix, Entity: nf.ReaderId}
	if nf.WriterId != wildcardEntity {
		if w, ok := d.registry.writer(nf.WriterId); ok {
			w.processNackFrag(readerGUID, nf.WriterSN, nf.FragmentNumberState)
			submessagesDispatched.WithLabelValues("nack_frag").Inc()
			return
		}
		messagesDropped.WithLabelValues("unknown_entity").Inc()
		return
	}
	for _, w := range d.registry.allWriters() {
		w.processNackFrag(readerGUID, nf.WriterSN, nf.FragmentNumberState)
	}
	submessagesDispatched.WithLabelValues("nack_frag").Inc()
}
