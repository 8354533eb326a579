package locator

import (
	"net"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// ExternalityGroup describes one (address, mask) group a participant
// advertises as externally reachable, with an optional local equivalent
// to substitute when a remote locator matches it (spec.md §4.5 "External
// locators"). This mirrors the translate-then-filter structure of
// original_source's ExternalLocatorsProcessor.cpp.
type ExternalityGroup struct {
	Network net.IPNet
	// LocalEquivalent, if non-nil, replaces a matching remote locator
	// with this local one instead of merely accepting it.
	LocalEquivalent *types.Locator
	Externality     types.Externality
}

// ExternalLocatorsProcessor filters/translates remote locators against a
// set of advertised externality groups.
type ExternalLocatorsProcessor struct {
	groups []ExternalityGroup
}

// NewExternalLocatorsProcessor builds a processor over the given groups.
func NewExternalLocatorsProcessor(groups []ExternalityGroup) *ExternalLocatorsProcessor {
	return &ExternalLocatorsProcessor{groups: groups}
}

// Process runs the two-pass translate-then-filter algorithm: first any
// locator matching a group's network is substituted with that group's
// local equivalent (if any); then every resulting locator is kept (it was
// either already local/no group applied, or just got substituted to a
// reachable local address).
func (p *ExternalLocatorsProcessor) Process(remote []types.Locator) []types.Locator {
	out := make([]types.Locator, 0, len(remote))
	for _, loc := range remote {
		out = append(out, p.translate(loc))
	}
	return out
}

func (p *ExternalLocatorsProcessor) translate(loc types.Locator) types.Locator {
	ip := loc.IP()
	if ip == nil {
		return loc
	}
	for _, g := range p.groups {
		if g.Network.Contains(ip) {
			if g.LocalEquivalent != nil {
				return *g.LocalEquivalent
			}
			return loc
		}
	}
	return loc
}

// ExternalityFor returns the externality class for a locator: a loopback
// address is LocalExternality, an address inside a configured group gets
// that group's externality, and anything else (including a locator with no
// IP address) gets the maximally external {Class: 1<<20, Cost: 1}.
// ShmExternality is the caller's own responsibility to set for SHM kinds.
func (p *ExternalLocatorsProcessor) ExternalityFor(loc types.Locator) types.Externality {
	ip := loc.IP()
	if ip != nil && ip.IsLoopback() {
		return types.LocalExternality
	}
	for _, g := range p.groups {
		if ip != nil && g.Network.Contains(ip) {
			return g.Externality
		}
	}
	// Unmatched, non-loopback address: treat as maximally external so it
	// loses every tie-break against a configured group.
	return types.Externality{Class: 1 << 20, Cost: 1}
}

// BestExternalityAmong returns the least-external (lowest Class, then
// lowest Cost) classification among all of the given locators, used when a
// single remote endpoint's externality must be fed into a Selector entry
// that is shared across its unicast and multicast locators alike
// (spec.md §4.5). An endpoint with no locators at all gets LocalExternality,
// matching a newly-added Selector entry's default.
func (p *ExternalLocatorsProcessor) BestExternalityAmong(locatorLists ...[]types.Locator) types.Externality {
	best := types.LocalExternality
	found := false
	for _, locs := range locatorLists {
		for _, loc := range locs {
			ext := p.ExternalityFor(loc)
			if !found || ext.Less(best) {
				best = ext
				found = true
			}
		}
	}
	return best
}
