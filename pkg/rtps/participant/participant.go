package participant

import (
	"fmt"
	"sync"

	"github.com/imdario/mergo"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/discovery"
	"github.com/rtps-io/rtps-core/pkg/rtps/endpoint"
	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/locator"
	"github.com/rtps-io/rtps-core/pkg/rtps/persistence"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// newGuidPrefix derives a 12-byte participant GUID prefix from a fresh xid,
// the same globally-unique-enough-without-coordination identifier
// pkg/rtps/history's ChangePool tags its pool slots with.
func newGuidPrefix() types.GuidPrefix {
	var p types.GuidPrefix
	id := xid.New()
	copy(p[:], id.Bytes())
	return p
}

// Participant is the participant core (spec.md §4.9, C10): it owns a
// domain participant's transports, its entity-id-keyed local endpoint
// tables, its SIMPLE PDP/EDP discovery instances, its scheduler, and the
// incoming-message demultiplex that feeds all of them from every bound
// input locator.
type Participant struct {
	cfg  Config
	guid types.GUID

	registryMu sync.Mutex // spec.md §5: one mutex per participant, guarding remote-participant bookkeeping below
	remotes    map[types.GuidPrefix]discovery.ParticipantProxyData

	endpoints *endpointRegistry
	pool      *history.ChangePool
	sched     *scheduler.Scheduler
	sender    *transportSender
	transports *locator.Registry
	inputs    []locator.InputChannel
	demux     *demux

	pdp    *discovery.SimplePDP
	edp    *discovery.SimpleEDP
	client *discovery.Client

	external *locator.ExternalLocatorsProcessor

	persistence persistence.Service

	log *logrus.Entry
}

// New builds and starts a Participant: it merges cfg onto DefaultConfig(),
// binds its well-known metatraffic locators on every transport in
// transports, brings up SIMPLE PDP/EDP (or Discovery-Server client mode),
// and starts the scheduler (spec.md §4.9, §4.6, §5).
func New(cfg Config, transports *locator.Registry) (*Participant, error) {
	merged, err := mergeConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("merge participant config: %w", err)
	}

	prefix := newGuidPrefix()
	guid := types.GUID{Prefix: prefix, Entity: types.EntityIdParticipant}
	log := logrus.WithFields(logrus.Fields{"component": "rtps-participant", "guid": guid.String()})

	p := &Participant{
		cfg:         merged,
		guid:        guid,
		remotes:     make(map[types.GuidPrefix]discovery.ParticipantProxyData),
		endpoints:   newEndpointRegistry(),
		pool:        history.NewChangePool(),
		sched:       scheduler.New(),
		transports:  transports,
		external:    locator.NewExternalLocatorsProcessor(merged.ExternalLocators),
		persistence: merged.Persistence,
		log:         log,
	}
	p.sender = newTransportSender(transports, log)
	p.demux = newDemux(prefix, p.endpoints, p.pool, log)

	metaUnicast, err := p.bindWellKnown(offsetMetatrafficUnicast)
	if err != nil {
		return nil, fmt.Errorf("bind metatraffic unicast locators: %w", err)
	}
	userUnicast, err := p.bindWellKnown(offsetUserUnicast)
	if err != nil {
		return nil, fmt.Errorf("bind user unicast locators: %w", err)
	}

	announceTo := []types.Locator{spdpMulticastLocator(merged.DomainId)}
	if len(merged.Discovery.Servers) > 0 {
		announceTo = merged.Discovery.Servers
	}

	local := discovery.ParticipantProxyData{
		GuidPrefix:                   prefix,
		MetatrafficUnicastLocators:   metaUnicast,
		DefaultUnicastLocators:       userUnicast,
		AvailableBuiltinEndpoints: discovery.BuiltinParticipantAnnouncer | discovery.BuiltinParticipantDetector |
			discovery.BuiltinPublicationAnnouncer | discovery.BuiltinPublicationDetector |
			discovery.BuiltinSubscriptionAnnouncer | discovery.BuiltinSubscriptionDetector,
		LeaseDuration: merged.Discovery.LeaseDuration,
	}

	p.pdp = discovery.NewSimplePDP(guid, local, announceTo, p.sender, p.sched, p.pool, p)
	p.edp = discovery.NewSimpleEDP(guid, p.sender, p.sched, p.pool, p)

	p.endpoints.addWriter(types.EntityIdSPDPWriter, statelessWriterSink{p.pdp.Writer()})
	p.endpoints.addReader(types.EntityIdSPDPReader, statelessReaderSink{p.pdp.Reader()})
	p.endpoints.addWriter(types.EntityIdSEDPPubWriter, statefulWriterSink{p.edp.PubWriter()})
	p.endpoints.addReader(types.EntityIdSEDPPubReader, statefulReaderSink{p.edp.PubReader()})
	p.endpoints.addWriter(types.EntityIdSEDPSubWriter, statefulWriterSink{p.edp.SubWriter()})
	p.endpoints.addReader(types.EntityIdSEDPSubReader, statefulReaderSink{p.edp.SubReader()})
	localEndpoints.WithLabelValues("reader").Add(3)
	localEndpoints.WithLabelValues("writer").Add(3)

	if err := p.bindInputs(append(append([]types.Locator{}, metaUnicast...), userUnicast...)); err != nil {
		return nil, fmt.Errorf("bind participant input channels: %w", err)
	}
	if err := p.bindMulticastInput(spdpMulticastLocator(merged.DomainId)); err != nil {
		log.WithError(err).Warn("failed to bind SPDP multicast input locator")
	}

	p.sched.Start()

	if merged.Discovery.Protocol == DiscoveryClient || merged.Discovery.Protocol == DiscoverySuperClient {
		p.client = discovery.NewClient(p.pdp, discovery.ClientConfig{Servers: merged.Discovery.Servers}, p.sched)
	}
	if merged.Discovery.Protocol != DiscoveryNone {
		p.pdp.StartAnnouncing(merged.Discovery.InitialAnnouncementCount, merged.Discovery.InitialAnnouncementPeriod, merged.Discovery.LeaseAnnouncementPeriod)
		if p.client != nil {
			p.client.Start()
		}
	}

	return p, nil
}

// bindWellKnown computes the well-known locator for offset on every
// registered transport and returns the concrete (non-ANY) locators
// NormalizeLocator resolves each to, so they can be advertised in this
// participant's proxy data (spec.md §6).
func (p *Participant) bindWellKnown(offset int) ([]types.Locator, error) {
	var out []types.Locator
	port := wellKnownPort(p.cfg.DomainId, p.cfg.ParticipantId, offset)
	for _, t := range p.transports.All() {
		want := types.Locator{Kind: types.LocatorKindUDPv4, Port: port}
		for _, loc := range t.NormalizeLocator(want) {
			if !t.IsLocatorSupported(loc) {
				continue
			}
			out = append(out, loc)
		}
	}
	return out, nil
}

// bindInputs opens an input channel on every transport that supports each
// of locs, wiring the demux as every channel's datagram callback.
func (p *Participant) bindInputs(locs []types.Locator) error {
	for _, loc := range locs {
		t := p.transports.For(loc)
		if t == nil {
			continue
		}
		ch, err := t.CreateInputChannel(loc, p.cfg.MaxMessageSize, p.demux.onDatagram)
		if err != nil {
			return err
		}
		p.inputs = append(p.inputs, ch)
	}
	return nil
}

func (p *Participant) bindMulticastInput(loc types.Locator) error {
	t := p.transports.For(loc)
	if t == nil {
		return &rtpserrors.TransportError{Locator: loc.String(), Err: fmt.Errorf("no transport registered supports this locator kind")}
	}
	ch, err := t.CreateInputChannel(loc, p.cfg.MaxMessageSize, p.demux.onDatagram)
	if err != nil {
		return err
	}
	p.inputs = append(p.inputs, ch)
	return nil
}

// GUID returns this participant's own GUID (entity id EntityIdParticipant).
func (p *Participant) GUID() types.GUID { return p.guid }

// KnownParticipants returns a snapshot of every remote participant this
// participant currently believes is alive.
func (p *Participant) KnownParticipants() []discovery.ParticipantProxyData {
	p.registryMu.Lock()
	defer p.registryMu.Unlock()
	out := make([]discovery.ParticipantProxyData, 0, len(p.remotes))
	for _, data := range p.remotes {
		out = append(out, data)
	}
	return out
}

// Stats satisfies pkg/admin.StatusProvider: a point-in-time snapshot of how
// many remote participants this participant currently tracks and how many
// local readers/writers it owns.
func (p *Participant) Stats() (participants, readers, writers int) {
	p.registryMu.Lock()
	participants = len(p.remotes)
	p.registryMu.Unlock()
	return participants, len(p.endpoints.allReaders()), len(p.endpoints.allWriters())
}

// CreateWriter builds a user DataWriter-side endpoint for topic, merges
// policies onto the participant's endpoint defaults, registers it with
// discovery, and returns it for the caller to publish on via AddChange
// (spec.md §4.9: "on create_writer ... assigns an entity id ... and pushes
// the endpoint through discovery"). entityId, if the zero value, is
// auto-generated from this participant's entity-key counter.
func (p *Participant) CreateWriter(topic string, keyed bool, override qos.Policies, entityId types.EntityId) (*endpoint.StatefulWriter, error) {
	policies, err := p.mergeEndpointPolicies(topic, override)
	if err != nil {
		return nil, err
	}

	id := entityId
	if id == (types.EntityId{}) {
		kind := types.EntityKindWriterNoKey
		if keyed {
			kind = types.EntityKindWriterWithKey
		}
		id = types.EntityId{Key: types.NextUserEntityKey(p.endpoints.allocateEntityKey()), Kind: kind}
	}
	guid := types.GUID{Prefix: p.guid.Prefix, Entity: id}

	wh := history.NewWriterHistory(guid, topic, policies.ResourceLimits, policies.History, p.pool)
	w := endpoint.NewStatefulWriter(guid, topic, policies, wh, p.pool, p.sender, p.sched, p.guid.Prefix)

	p.endpoints.addWriter(id, statefulWriterSink{w})
	localEndpoints.WithLabelValues("writer").Inc()

	p.edp.AnnounceLocalEndpoint(discovery.LocalEndpoint{GUID: guid, Kind: discovery.LocalWriter, Policies: policies})
	return w, nil
}

// CreateReader is CreateWriter's mirror for the DataReader side.
func (p *Participant) CreateReader(topic string, keyed bool, override qos.Policies, entityId types.EntityId) (*endpoint.StatefulReader, error) {
	policies, err := p.mergeEndpointPolicies(topic, override)
	if err != nil {
		return nil, err
	}

	id := entityId
	if id == (types.EntityId{}) {
		kind := types.EntityKindReaderNoKey
		if keyed {
			kind = types.EntityKindReaderWithKey
		}
		id = types.EntityId{Key: types.NextUserEntityKey(p.endpoints.allocateEntityKey()), Kind: kind}
	}
	guid := types.GUID{Prefix: p.guid.Prefix, Entity: id}

	rh := history.NewReaderHistory(topic, policies.ResourceLimits, policies.History, p.pool)
	r := endpoint.NewStatefulReader(guid, topic, policies, rh, p.sender, p.sched, p.guid.Prefix)

	p.endpoints.addReader(id, statefulReaderSink{r})
	localEndpoints.WithLabelValues("reader").Inc()

	p.edp.AnnounceLocalEndpoint(discovery.LocalEndpoint{GUID: guid, Kind: discovery.LocalReader, Policies: policies})
	return r, nil
}

// DeleteWriter withdraws writerGUID from discovery and this participant's
// writer table.
func (p *Participant) DeleteWriter(writerGUID types.GUID) {
	p.edp.WithdrawLocalEndpoint(writerGUID)
	p.endpoints.removeWriter(writerGUID.Entity)
	localEndpoints.WithLabelValues("writer").Dec()
}

// DeleteReader withdraws readerGUID from discovery and this participant's
// reader table.
func (p *Participant) DeleteReader(readerGUID types.GUID) {
	p.edp.WithdrawLocalEndpoint(readerGUID)
	p.endpoints.removeReader(readerGUID.Entity)
	localEndpoints.WithLabelValues("reader").Dec()
}

// mergeEndpointPolicies overlays override onto this participant's
// EndpointDefaults the way pkg/rtps/qos.Merge overlays onto the package
// global default — but grounded on this participant's own configured
// baseline rather than qos.DefaultPolicies(), since a participant's
// EndpointDefaults may itself already be a caller override of that.
func (p *Participant) mergeEndpointPolicies(topic string, override qos.Policies) (qos.Policies, error) {
	merged := override
	if merged.TopicName == "" {
		merged.TopicName = topic
	}
	base := p.cfg.EndpointDefaults
	if base.TopicName == "" {
		base.TopicName = topic
	}
	if err := mergo.Merge(&merged, base); err != nil {
		return qos.Policies{}, fmt.Errorf("merge endpoint qos: %w", err)
	}
	return merged, nil
}

// Close tears down discovery, the scheduler, every bound input channel and
// this participant's output channels, in that order so nothing is still
// trying to send while the transports are half-closed.
func (p *Participant) Close() error {
	if p.client != nil {
		p.client.Stop()
	}
	p.pdp.Dispose()
	p.sched.Stop()
	for _, ch := range p.inputs {
		_ = ch.Close()
	}
	p.sender.Close()
	if p.persistence != nil {
		return p.persistence.Close()
	}
	return nil
}
