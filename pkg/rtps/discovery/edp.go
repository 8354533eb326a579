package discovery

import (
	"encoding/binary"
	"sync"

	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/endpoint"
	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// LocalEndpointKind distinguishes a local publication from a local
// subscription in SimpleEDP's registry.
type LocalEndpointKind int

const (
	LocalWriter LocalEndpointKind = iota
	LocalReader
)

// LocalEndpoint is what pkg/rtps/participant tells SimpleEDP about one of
// its own endpoints so EDP can announce it and match it against remote
// descriptors (spec.md §4.6 SIMPLE EDP).
type LocalEndpoint struct {
	GUID      types.GUID
	Kind      LocalEndpointKind
	Policies  qos.Policies
	Unicast   []types.Locator
	Multicast []types.Locator
}

// MatchListener receives SIMPLE EDP matching outcomes. pkg/rtps/participant
// implements it to wire ReaderProxy/WriterProxy entries into the real
// user endpoints.
type MatchListener interface {
	// EndpointMatched fires once per (local, remote) pair the first time
	// qos.Match succeeds between them.
	EndpointMatched(local LocalEndpoint, remote EndpointProxyData)
	// EndpointUnmatched fires when a previously matched remote endpoint
	// disappears (disposed, or its participant was lost).
	EndpointUnmatched(localGUID, remoteGUID types.GUID)
	// IncompatibleQos fires when a same-topic local/remote pair fails
	// qos.Match, so the caller can raise OFFERED_/REQUESTED_INCOMPATIBLE_QOS.
	IncompatibleQos(local LocalEndpoint, remote EndpointProxyData, outcome qos.MatchingOutcome)
}

// SimpleEDP runs the builtin publication/subscription announcer/detector
// pairs (spec.md §4.6 SIMPLE EDP): local endpoint descriptors are
// announced over a reliable builtin writer per direction, and every
// remote descriptor received is matched against every local endpoint of
// the same topic via pkg/rtps/qos, the same table-of-watchers-over-a-set
// pattern the teacher's servicePublisher runs per listener on every
// endpoint change (controller/api/destination/watcher/endpoints_watcher.go).
type SimpleEDP struct {
	mu sync.Mutex

	pubWriter *endpoint.StatefulWriter // announces local writers
	pubWH     *history.WriterHistory
	pubReader *endpoint.StatefulReader // receives remote writers

	subWriter *endpoint.StatefulWriter // announces local readers
	subWH     *history.WriterHistory
	subReader *endpoint.StatefulReader // receives remote readers

	locals        map[types.GUID]LocalEndpoint
	remoteWriters map[types.GUID]EndpointProxyData
	remoteReaders map[types.GUID]EndpointProxyData

	// matched tracks which (local, remote) pairs have already fired
	// EndpointMatched, so a lease refresh or a duplicate DATA(w)/DATA(r)
	// does not re-fire it.
	matched map[types.GUID]map[types.GUID]bool

	listener MatchListener
	log      *logrus.Entry
}

// edpLimits is the resource-limit/history policy builtin EDP endpoints
// use: unbounded samples, one per instance (each instance is one remote
// endpoint's latest descriptor).
var edpLimits = qos.ResourceLimits{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: 1}
var edpHistory = qos.History{Kind: qos.KeepLast, Depth: 1}

// NewSimpleEDP builds the four builtin SEDP endpoints for localGUID.
func NewSimpleEDP(localGUID types.GUID, sender endpoint.Sender, sched *scheduler.Scheduler, pool *history.ChangePool, listener MatchListener) *SimpleEDP {
	reliablePolicies := qos.Policies{Reliability: qos.Reliable, Durability: qos.TransientLocal}

	pubWriterGUID := types.GUID{Prefix: localGUID.Prefix, Entity: types.EntityIdSEDPPubWriter}
	pubReaderGUID := types.GUID{Prefix: localGUID.Prefix, Entity: types.EntityIdSEDPPubReader}
	subWriterGUID := types.GUID{Prefix: localGUID.Prefix, Entity: types.EntityIdSEDPSubWriter}
	subReaderGUID := types.GUID{Prefix: localGUID.Prefix, Entity: types.EntityIdSEDPSubReader}

	pubWH := history.NewWriterHistory(pubWriterGUID, "DCPSPublication", edpLimits, edpHistory, pool)
	subWH := history.NewWriterHistory(subWriterGUID, "DCPSSubscription", edpLimits, edpHistory, pool)

	e := &SimpleEDP{
		pubWriter: endpoint.NewStatefulWriter(pubWriterGUID, "DCPSPublication", reliablePolicies, pubWH, pool, sender, sched, localGUID.Prefix),
		pubWH:     pubWH,
		pubReader: endpoint.NewStatefulReader(pubReaderGUID, "DCPSPublication", reliablePolicies, history.NewReaderHistory("DCPSPublication", edpLimits, edpHistory, pool), sender, sched, localGUID.Prefix),

		subWriter: endpoint.NewStatefulWriter(subWriterGUID, "DCPSSubscription", reliablePolicies, subWH, pool, sender, sched, localGUID.Prefix),
		subWH:     subWH,
		subReader: endpoint.NewStatefulReader(subReaderGUID, "DCPSSubscription", reliablePolicies, history.NewReaderHistory("DCPSSubscription", edpLimits, edpHistory, pool), sender, sched, localGUID.Prefix),

		locals:        make(map[types.GUID]LocalEndpoint),
		remoteWriters: make(map[types.GUID]EndpointProxyData),
		remoteReaders: make(map[types.GUID]EndpointProxyData),
		matched:       make(map[types.GUID]map[types.GUID]bool),
		listener:      listener,
		log:           logrus.WithField("component", "rtps-edp"),
	}
	e.pubReader.SetChangeListener(func(_ types.GUID, c *types.CacheChange) {
		e.ProcessPublicationData(c.Payload, c.Kind != types.ChangeKindAlive)
	})
	e.subReader.SetChangeListener(func(_ types.GUID, c *types.CacheChange) {
		e.ProcessSubscriptionData(c.Payload, c.Kind != types.ChangeKindAlive)
	})
	return e
}

// PubWriter returns the builtin publication announcer endpoint, for
// registration in pkg/rtps/participant's entity-id-keyed writer table.
func (e *SimpleEDP) PubWriter() *endpoint.StatefulWriter { return e.pubWriter }

// PubReader returns the builtin publication detector endpoint, for
// registration in pkg/rtps/participant's entity-id-keyed reader table.
func (e *SimpleEDP) PubReader() *endpoint.StatefulReader { return e.pubReader }

// SubWriter returns the builtin subscription announcer endpoint, for
// registration in pkg/rtps/participant's entity-id-keyed writer table.
func (e *SimpleEDP) SubWriter() *endpoint.StatefulWriter { return e.subWriter }

// SubReader returns the builtin subscription detector endpoint, for
// registration in pkg/rtps/participant's entity-id-keyed reader table.
func (e *SimpleEDP) SubReader() *endpoint.StatefulReader { return e.subReader }

// MatchBuiltinParticipant matches this participant's builtin SEDP
// endpoints against a newly discovered remote participant's, for
// whichever builtin endpoints it advertises (spec.md §4.6: incremental
// matching triggered by PDP discovery). remote's metatraffic locators
// carry the builtin traffic.
func (e *SimpleEDP) MatchBuiltinParticipant(remote ParticipantProxyData) {
	uni, multi := remote.MetatrafficUnicastLocators, remote.MetatrafficMulticastLocators

	if remote.AvailableBuiltinEndpoints.Has(BuiltinPublicationAnnouncer) {
		e.pubReader.MatchedWriterAdd(types.GUID{Prefix: remote.GuidPrefix, Entity: types.EntityIdSEDPPubWriter}, uni, multi, 0)
	}
	if remote.AvailableBuiltinEndpoints.Has(BuiltinPublicationDetector) {
		e.pubWriter.MatchedReaderAdd(types.GUID{Prefix: remote.GuidPrefix, Entity: types.EntityIdSEDPPubReader}, uni, multi, false)
	}
	if remote.AvailableBuiltinEndpoints.Has(BuiltinSubscriptionAnnouncer) {
		e.subReader.MatchedWriterAdd(types.GUID{Prefix: remote.GuidPrefix, Entity: types.EntityIdSEDPSubWriter}, uni, multi, 0)
	}
	if remote.AvailableBuiltinEndpoints.Has(BuiltinSubscriptionDetector) {
		e.subWriter.MatchedReaderAdd(types.GUID{Prefix: remote.GuidPrefix, Entity: types.EntityIdSEDPSubReader}, uni, multi, false)
	}
}

// UnmatchParticipant tears down builtin proxies and forgets every remote
// endpoint descriptor belonging to prefix, unmatching any local endpoint
// that had matched one of them (spec.md §4.6: "expiration unmatches all
// endpoints of that participant").
func (e *SimpleEDP) UnmatchParticipant(prefix types.GuidPrefix) {
	e.pubReader.MatchedWriterRemove(types.GUID{Prefix: prefix, Entity: types.EntityIdSEDPPubWriter})
	e.pubWriter.MatchedReaderRemove(types.GUID{Prefix: prefix, Entity: types.EntityIdSEDPPubReader})
	e.subReader.MatchedWriterRemove(types.GUID{Prefix: prefix, Entity: types.EntityIdSEDPSubWriter})
	e.subWriter.MatchedReaderRemove(types.GUID{Prefix: prefix, Entity: types.EntityIdSEDPSubReader})

	e.mu.Lock()
	var gone []types.GUID
	for g := range e.remoteWriters {
		if g.Prefix == prefix {
			gone = append(gone, g)
		}
	}
	for g := range e.remoteReaders {
		if g.Prefix == prefix {
			gone = append(gone, g)
		}
	}
	e.mu.Unlock()
	for _, g := range gone {
		e.forgetRemote(g)
	}
}

// AnnounceLocalEndpoint publishes local's descriptor over the appropriate
// builtin writer and immediately matches it against every already-known
// remote descriptor of the opposite kind (spec.md §4.6: "incremental:
// local endpoint create -> publish DATA to matched SEDP readers").
func (e *SimpleEDP) AnnounceLocalEndpoint(local LocalEndpoint) {
	e.mu.Lock()
	e.locals[local.GUID] = local
	e.mu.Unlock()

	e.publish(local, types.ChangeKindAlive)

	e.mu.Lock()
	var remotes []EndpointProxyData
	if local.Kind == LocalWriter {
		for _, r := range e.remoteReaders {
			remotes = append(remotes, r)
		}
	} else {
		for _, r := range e.remoteWriters {
			remotes = append(remotes, r)
		}
	}
	e.mu.Unlock()

	for _, r := range remotes {
		e.tryMatch(local, r)
	}
}

// WithdrawLocalEndpoint announces local's removal and unmatches it from
// whatever it had matched.
func (e *SimpleEDP) WithdrawLocalEndpoint(guid types.GUID) {
	e.mu.Lock()
	local, ok := e.locals[guid]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.locals, guid)
	var remotes []types.GUID
	for r := range e.matched[guid] {
		remotes = append(remotes, r)
	}
	delete(e.matched, guid)
	e.mu.Unlock()

	e.publish(local, types.ChangeKindNotAliveDisposedUnregistered)
	for _, r := range remotes {
		e.listener.EndpointUnmatched(guid, r)
	}
}

func (e *SimpleEDP) publish(local LocalEndpoint, kind types.ChangeKind) {
	epd := EndpointProxyData{GUID: local.GUID, Policies: local.Policies, Unicast: local.Unicast, Multicast: local.Multicast}
	var ih types.InstanceHandle
	gb := local.GUID.Bytes()
	copy(ih[:], gb[:])

	// The parameter list (and in particular PID_ENDPOINT_GUID) is encoded
	// even for a disposal change, since a reader needs it to know which
	// remote instance just went away.
	payload := epd.Encode().Encode(binary.LittleEndian)
	if local.Kind == LocalWriter {
		c := e.pubWH.CreateChange(kind, ih, payload, types.WriteParams{})
		if err := e.pubWriter.AddChange(c); err != nil {
			e.log.WithError(err).Warn("failed to announce local publication")
		}
		return
	}
	c := e.subWH.CreateChange(kind, ih, payload, types.WriteParams{})
	if err := e.subWriter.AddChange(c); err != nil {
		e.log.WithError(err).Warn("failed to announce local subscription")
	}
}

// ProcessPublicationData handles a decoded DATA(w) payload: a remote
// writer descriptor, matched against every local reader on the same
// topic.
func (e *SimpleEDP) ProcessPublicationData(payload []byte, disposed bool) {
	e.processRemote(payload, disposed, true)
}

// ProcessSubscriptionData handles a decoded DATA(r) payload: a remote
// reader descriptor, matched against every local writer on the same
// topic.
func (e *SimpleEDP) ProcessSubscriptionData(payload []byte, disposed bool) {
	e.processRemote(payload, disposed, false)
}

func (e *SimpleEDP) processRemote(payload []byte, disposed, isWriter bool) {
	epd, err := decodeEndpointPayload(payload)
	if err != nil {
		e.log.WithError(err).Warn("undecodable SEDP payload")
		return
	}
	if disposed {
		e.forgetRemote(epd.GUID)
		return
	}

	e.mu.Lock()
	registry := e.remoteReaders
	if isWriter {
		registry = e.remoteWriters
	}
	// Same abbreviated-resend tolerance as SimplePDP: merge onto whatever
	// descriptor is already on file rather than letting a partial update
	// blank out previously known QoS or locators.
	merged := epd
	if prior, ok := registry[epd.GUID]; ok {
		merged = prior
		if err := mergo.Merge(&merged, epd, mergo.WithOverride); err != nil {
			e.log.WithError(err).Warn("failed to merge endpoint proxy data update")
			merged = epd
		}
	}
	registry[epd.GUID] = merged
	epd = merged
	var candidates []LocalEndpoint
	for _, l := range e.locals {
		if isWriter && l.Kind == LocalReader && l.Policies.TopicName == epd.Policies.TopicName {
			candidates = append(candidates, l)
		}
		if !isWriter && l.Kind == LocalWriter && l.Policies.TopicName == epd.Policies.TopicName {
			candidates = append(candidates, l)
		}
	}
	e.mu.Unlock()

	for _, l := range candidates {
		e.tryMatch(l, epd)
	}
}

func (e *SimpleEDP) tryMatch(local LocalEndpoint, remote EndpointProxyData) {
	var outcome qos.MatchingOutcome
	if local.Kind == LocalWriter {
		outcome = qos.Match(local.Policies, remote.Policies)
	} else {
		outcome = qos.Match(remote.Policies, local.Policies)
	}

	if !outcome.Ok {
		incompatibleQosTotal.WithLabelValues(local.Policies.TopicName).Inc()
		e.listener.IncompatibleQos(local, remote, outcome)
		return
	}

	e.mu.Lock()
	if e.matched[local.GUID] == nil {
		e.matched[local.GUID] = make(map[types.GUID]bool)
	}
	already := e.matched[local.GUID][remote.GUID]
	e.matched[local.GUID][remote.GUID] = true
	matchCount := len(e.matched[local.GUID])
	e.mu.Unlock()
	if already {
		return
	}

	endpointsMatched.WithLabelValues(local.Policies.TopicName).Set(float64(matchCount))
	e.listener.EndpointMatched(local, remote)
}

func decodeEndpointPayload(payload []byte) (EndpointProxyData, error) {
	pl, err := wire.DecodeParameterList(payload, binary.LittleEndian, false)
	if err != nil {
		return EndpointProxyData{}, err
	}
	return DecodeEndpointProxyData(pl)
}

func (e *SimpleEDP) forgetRemote(remoteGUID types.GUID) {
	e.mu.Lock()
	delete(e.remoteWriters, remoteGUID)
	delete(e.remoteReaders, remoteGUID)
	var affected []types.GUID
	for local, remotes := range e.matched {
		if remotes[remoteGUID] {
			delete(remotes, remoteGUID)
			topic := e.locals[local].Policies.TopicName
			endpointsMatched.WithLabelValues(topic).Set(float64(len(remotes)))
			affected = append(affected, local)
		}
	}
	e.mu.Unlock()
	for _, local := range affected {
		e.listener.EndpointUnmatched(local, remoteGUID)
	}
}
