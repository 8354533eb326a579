package participant

import (
	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/discovery"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// ParticipantDiscovered implements discovery.Listener. It records the
// remote's proxy data and immediately tries to match SimpleEDP's builtin
// publication/subscription endpoints against it: discovering a participant
// is what makes its builtin endpoints reachable at all.
//
// Every locator data advertises is translated through this participant's
// ExternalLocatorsProcessor first (spec.md §4.5 "External locators"), so
// anything stored in p.remotes or handed to SimpleEDP already reflects
// any configured NAT/firewall substitution.
func (p *Participant) ParticipantDiscovered(data discovery.ParticipantProxyData) {
	data.MetatrafficUnicastLocators = p.external.Process(data.MetatrafficUnicastLocators)
	data.MetatrafficMulticastLocators = p.external.Process(data.MetatrafficMulticastLocators)
	data.DefaultUnicastLocators = p.external.Process(data.DefaultUnicastLocators)
	data.DefaultMulticastLocators = p.external.Process(data.DefaultMulticastLocators)

	p.registryMu.Lock()
	p.remotes[data.GuidPrefix] = data
	p.registryMu.Unlock()

	p.edp.MatchBuiltinParticipant(data)

	if p.client != nil && locatorsContainAny(data.MetatrafficUnicastLocators, p.cfg.Discovery.Servers) {
		p.client.NoteServerSeen(data.GuidPrefix)
	}
}

// locatorsContainAny reports whether any locator in haystack also appears
// in needles, used to recognize a just-discovered participant as one of a
// Discovery-Server client's configured servers.
func locatorsContainAny(haystack, needles []types.Locator) bool {
	for _, n := range needles {
		for _, h := range haystack {
			if h == n {
				return true
			}
		}
	}
	return false
}

// ParticipantLost implements discovery.Listener, firing when a remote's
// lease expires or it disposed itself on shutdown.
func (p *Participant) ParticipantLost(prefix types.GuidPrefix) {
	p.registryMu.Lock()
	delete(p.remotes, prefix)
	p.registryMu.Unlock()

	p.edp.UnmatchParticipant(prefix)
}

// EndpointMatched implements discovery.MatchListener, wiring a SimpleEDP
// match outcome into the real local endpoint's proxy table.
//
// remote's locators are translated through this participant's
// ExternalLocatorsProcessor before either sink sees them, same as
// ParticipantDiscovered. A matched writer also gets the translated
// locators' externality fed into its Selector, so Selector.Plan's
// multicast-vs-unicast tie-break (spec.md §4.5) actually sees something
// other than the LocalExternality every entry starts with.
//
// expectsInlineQos is always true: EndpointProxyData carries no
// PID_EXPECTS_INLINE_QOS (this implementation never encodes it, matching
// proxy_data.go), and buildInlineQos always attaches PID_STATUS_INFO/
// PID_KEY_HASH regardless of what a reader asked for, so assuming the
// reader wants it is always safe.
func (p *Participant) EndpointMatched(local discovery.LocalEndpoint, remote discovery.EndpointProxyData) {
	unicast := p.external.Process(remote.Unicast)
	multicast := p.external.Process(remote.Multicast)

	switch local.Kind {
	case discovery.LocalReader:
		if r, ok := p.endpoints.reader(local.GUID.Entity); ok {
			r.matchedWriterAdd(remote.GUID, unicast, multicast, remote.Policies.OwnershipStrength)
		}
	case discovery.LocalWriter:
		if w, ok := p.endpoints.writer(local.GUID.Entity); ok {
			w.matchedReaderAdd(remote.GUID, unicast, multicast, true)
			if len(p.cfg.ExternalLocators) > 0 {
				w.setExternality(remote.GUID, p.external.BestExternalityAmong(unicast, multicast))
			}
		}
	}
}

// EndpointUnmatched implements discovery.MatchListener.
func (p *Participant) EndpointUnmatched(localGUID, remoteGUID types.GUID) {
	if r, ok := p.endpoints.reader(localGUID.Entity); ok {
		r.matchedWriterRemove(remoteGUID)
	}
	if w, ok := p.endpoints.writer(localGUID.Entity); ok {
		w.matchedReaderRemove(remoteGUID)
	}
}

// IncompatibleQos implements discovery.MatchListener. SimpleEDP already
// counts this via its own metric before calling the listener; this just
// logs, since an incompatible-QoS pairing never fails discovery itself.
func (p *Participant) IncompatibleQos(local discovery.LocalEndpoint, remote discovery.EndpointProxyData, outcome qos.MatchingOutcome) {
	p.log.WithFields(logrus.Fields{
		"local_guid":  local.GUID,
		"remote_guid": remote.GUID,
		"topic":       local.Policies.TopicName,
		"reason_mask": outcome.ReasonMask,
		"policy":      outcome.LastPolicyID,
	}).Warn("incompatible QoS between matched-topic endpoints")
}
