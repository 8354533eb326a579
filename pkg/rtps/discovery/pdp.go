package discovery

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/imdario/mergo"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/endpoint"
	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// DefaultLeaseDuration is the PDP lease a participant offers when its
// configuration does not set one (spec.md §4.6).
const DefaultLeaseDuration = 20 * time.Second

// leaseCheckInterval is how often go-cache sweeps for expired leases.
const leaseCheckInterval = time.Second

// Listener receives SIMPLE PDP lifecycle events. pkg/rtps/participant
// implements it to drive SEDP matching and endpoint unmatching.
type Listener interface {
	// ParticipantDiscovered fires the first time a remote participant's
	// proxy data is seen, and again on every subsequent refresh.
	ParticipantDiscovered(data ParticipantProxyData)
	// ParticipantLost fires when a remote participant's lease expires
	// without a renewing announcement, or it disposed itself on shutdown.
	ParticipantLost(prefix types.GuidPrefix)
}

// SimplePDP runs the builtin participant announcer/detector pair (spec.md
// §4.6 SIMPLE PDP). It sends this participant's ParticipantProxyData to
// the domain's well-known multicast locator on a schedule, and tracks
// every remote participant's proxy data behind a lease timer, the same
// way ReaderHistory tracks disposed-instance staleness behind a go-cache
// TTL rather than a hand-rolled sweep goroutine.
type SimplePDP struct {
	mu sync.Mutex

	local ParticipantProxyData

	writer *endpoint.StatelessWriter
	wh     *history.WriterHistory
	reader *endpoint.StatelessReader

	leases   *gocache.Cache
	listener Listener

	sched          *scheduler.Scheduler
	announceTimer  *scheduler.Timer
	steadyPeriod   time.Duration
	burstRemaining int
	burstPeriod    time.Duration

	log *logrus.Entry
}

// NewSimplePDP builds a SimplePDP for local, announcing via
// announceLocators (the domain's well-known SPDP multicast address, plus
// any configured Discovery-Server unicast destinations) and delivering
// events to listener.
func NewSimplePDP(localGUID types.GUID, local ParticipantProxyData, announceLocators []types.Locator, sender endpoint.Sender, sched *scheduler.Scheduler, pool *history.ChangePool, listener Listener) *SimplePDP {
	if local.LeaseDuration == 0 {
		local.LeaseDuration = DefaultLeaseDuration
	}
	writerGUID := types.GUID{Prefix: localGUID.Prefix, Entity: types.EntityIdSPDPWriter}
	readerGUID := types.GUID{Prefix: localGUID.Prefix, Entity: types.EntityIdSPDPReader}

	limits := qos.ResourceLimits{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: 1}
	keepLastOne := qos.History{Kind: qos.KeepLast, Depth: 1}
	wh := history.NewWriterHistory(writerGUID, "DCPSParticipant", limits, keepLastOne, pool)
	rh := history.NewReaderHistory("DCPSParticipant", limits, keepLastOne, pool)

	p := &SimplePDP{
		local:    local,
		writer:   endpoint.NewStatelessWriter(writerGUID, "DCPSParticipant", qos.Policies{TopicName: "DCPSParticipant"}, wh, announceLocators, sender, sched, localGUID.Prefix),
		wh:       wh,
		reader:   endpoint.NewStatelessReader(readerGUID, "DCPSParticipant", qos.Policies{TopicName: "DCPSParticipant"}, rh),
		leases:   gocache.New(local.LeaseDuration, leaseCheckInterval),
		listener: listener,
		sched:    sched,
		log:      logrus.WithField("component", "rtps-pdp"),
	}
	p.leases.OnEvicted(func(key string, _ interface{}) {
		var prefix types.GuidPrefix
		copy(prefix[:], []byte(key))
		p.log.WithField("participant", prefix.String()).Info("participant lease expired")
		participantsDiscovered.WithLabelValues().Set(float64(p.leases.ItemCount()))
		p.listener.ParticipantLost(prefix)
	})
	p.reader.SetChangeListener(p.handleReceivedChange)
	return p
}

// handleReceivedChange adapts a raw CacheChange delivered by the builtin
// SPDP reader into a ProcessSPDPData call.
func (p *SimplePDP) handleReceivedChange(c *types.CacheChange) {
	disposed := c.Kind != types.ChangeKindAlive
	p.ProcessSPDPData(c.Payload, disposed)
}

func (p *SimplePDP) instanceHandle() types.InstanceHandle {
	var ih types.InstanceHandle
	copy(ih[:], p.local.GuidPrefix[:])
	return ih
}

// Announce sends (or refreshes and resends) this participant's DATA(p).
// spec.md §4.6 resends on matched-change to the SPDP reader and on
// interface changes, in addition to the periodic timer; callers drive
// both from here. The writer's KEEP_LAST depth 1 history means a repeat
// Announce evicts the prior sample of this single instance automatically.
func (p *SimplePDP) Announce() {
	p.mu.Lock()
	payload := p.local.Encode().Encode(binary.LittleEndian)
	p.mu.Unlock()

	c := p.wh.CreateChange(types.ChangeKindAlive, p.instanceHandle(), payload, types.WriteParams{SourceTimestamp: time.Now()})
	if err := p.writer.AddChange(c); err != nil {
		p.log.WithError(err).Warn("failed to announce participant proxy data")
	}
}

// StartAnnouncing begins the initial-announcement burst followed by
// steady-state resends (spec.md §4.6: "the first initial_announcements.count
// DATA(p)s are spaced by initial_announcements.period; thereafter resend
// interval = lease_announcement_period").
func (p *SimplePDP) StartAnnouncing(initialCount int, initialPeriod, steadyPeriod time.Duration) {
	p.mu.Lock()
	p.steadyPeriod = steadyPeriod
	if p.announceTimer == nil {
		p.announceTimer = p.sched.NewTimer(p.fireAnnounce)
	}
	remaining := initialCount - 1
	p.mu.Unlock()

	p.Announce()

	p.mu.Lock()
	defer p.mu.Unlock()
	if remaining <= 0 {
		p.announceTimer.Restart(steadyPeriod)
		return
	}
	p.burstRemaining = remaining
	p.burstPeriod = initialPeriod
	p.announceTimer.Restart(initialPeriod)
}

func (p *SimplePDP) fireAnnounce() {
	p.Announce()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.burstRemaining > 0 {
		p.burstRemaining--
		if p.burstRemaining == 0 {
			p.announceTimer.Restart(p.steadyPeriod)
			return
		}
		p.announceTimer.Restart(p.burstPeriod)
		return
	}
	p.announceTimer.Restart(p.steadyPeriod)
}

// ProcessSPDPData handles a decoded DATA(p) submessage payload from a
// remote participant: it refreshes that participant's lease and notifies
// the listener (spec.md §4.6: "a lease_duration timer from the last
// received announcement").
func (p *SimplePDP) ProcessSPDPData(payload []byte, disposed bool) {
	pl, err := wire.DecodeParameterList(payload, binary.LittleEndian, false)
	if err != nil {
		p.log.WithError(err).Warn("malformed SPDP payload")
		return
	}
	data, err := DecodeParticipantProxyData(pl)
	if err != nil {
		p.log.WithError(err).Warn("undecodable SPDP payload")
		return
	}
	if data.GuidPrefix.IsUnknown() {
		return
	}
	key := string(data.GuidPrefix[:])
	if disposed {
		// Delete runs the OnEvicted callback registered in NewSimplePDP,
		// which updates the gauge and reports the participant lost.
		p.leases.Delete(key)
		return
	}

	// A resend may omit locator lists or user data it already announced
	// once; merge the new announcement onto whatever is on file so an
	// abbreviated refresh doesn't erase previously known fields, the same
	// "override only where the new value is actually set" merge the
	// teacher runs for QoS overrides (pkg/rtps/qos/defaults.go).
	merged := data
	if prior, ok := p.leases.Get(key); ok {
		merged = prior.(ParticipantProxyData)
		if err := mergo.Merge(&merged, data, mergo.WithOverride); err != nil {
			p.log.WithError(err).Warn("failed to merge participant proxy data update")
			merged = data
		}
	}
	p.leases.Set(key, merged, merged.LeaseDuration)
	participantsDiscovered.WithLabelValues().Set(float64(p.leases.ItemCount()))
	p.listener.ParticipantDiscovered(merged)
}

// Writer returns the builtin SPDP announcer endpoint, for registration in
// pkg/rtps/participant's entity-id-keyed writer table.
func (p *SimplePDP) Writer() *endpoint.StatelessWriter { return p.writer }

// Reader returns the builtin SPDP detector endpoint, for registration in
// pkg/rtps/participant's entity-id-keyed reader table.
func (p *SimplePDP) Reader() *endpoint.StatelessReader { return p.reader }

// Lookup returns the most recently received proxy data for prefix, if its
// lease has not expired.
func (p *SimplePDP) Lookup(prefix types.GuidPrefix) (ParticipantProxyData, bool) {
	v, ok := p.leases.Get(string(prefix[:]))
	if !ok {
		return ParticipantProxyData{}, false
	}
	return v.(ParticipantProxyData), true
}

// Dispose announces this participant's departure with
// status_info = DISPOSED|UNREGISTERED (spec.md §4.6: "dispose (graceful
// shutdown) sends a DATA(p) with status_info = DISPOSED|UNREGISTERED") and
// stops the announce timer.
func (p *SimplePDP) Dispose() {
	p.mu.Lock()
	if p.announceTimer != nil {
		p.announceTimer.Cancel()
	}
	payload := p.local.Encode().Encode(binary.LittleEndian)
	p.mu.Unlock()

	c := p.wh.CreateChange(types.ChangeKindNotAliveDisposedUnregistered, p.instanceHandle(), payload, types.WriteParams{SourceTimestamp: time.Now()})
	if err := p.writer.AddChange(c); err != nil {
		p.log.WithError(err).Warn("failed to announce participant disposal")
	}
}
