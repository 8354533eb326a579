package locator

import (
	"sort"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// Entry is one matched remote endpoint's locator set, as maintained by a
// Selector (spec.md §4.5).
type Entry struct {
	RemoteGUID        types.GUID
	UnicastLocators   []types.Locator
	MulticastLocators []types.Locator

	enabled   bool
	selected  bool
}

// Selector produces the minimal set of send operations per submessage
// group, following the reset/enable/selection_start/transport_starts/
// select protocol of spec.md §4.5.
type Selector struct {
	entries     []*Entry
	externality map[types.GUID]types.Externality
}

// NewSelector creates an empty Selector.
func NewSelector() *Selector {
	return &Selector{externality: make(map[types.GUID]types.Externality)}
}

// AddEntry registers (or replaces) the locator set for a matched remote
// endpoint.
func (s *Selector) AddEntry(e Entry) {
	for i, existing := range s.entries {
		if existing.RemoteGUID == e.RemoteGUID {
			s.entries[i] = &e
			return
		}
	}
	s.entries = append(s.entries, &e)
}

// RemoveEntry drops a matched remote endpoint from consideration.
func (s *Selector) RemoveEntry(guid types.GUID) {
	for i, e := range s.entries {
		if e.RemoteGUID == guid {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// SetExternality records the externality class to use for a remote
// endpoint's locators during tie-break (spec.md §4.5).
func (s *Selector) SetExternality(guid types.GUID, ext types.Externality) {
	s.externality[guid] = ext
}

func (s *Selector) externalityFor(guid types.GUID) types.Externality {
	if ext, ok := s.externality[guid]; ok {
		return ext
	}
	return types.LocalExternality
}

// Reset starts a new send cycle. When enableAll is true every entry
// starts enabled; otherwise callers must opt entries in via Enable
// (spec.md §4.5 step 1).
func (s *Selector) Reset(enableAll bool) {
	for _, e := range s.entries {
		e.enabled = enableAll
		e.selected = false
	}
}

// Enable opts a specific destination in (spec.md §4.5 step 2).
func (s *Selector) Enable(guid types.GUID) {
	for _, e := range s.entries {
		if e.RemoteGUID == guid {
			e.enabled = true
			return
		}
	}
}

// Disable opts a specific destination out.
func (s *Selector) Disable(guid types.GUID) {
	for _, e := range s.entries {
		if e.RemoteGUID == guid {
			e.enabled = false
			return
		}
	}
}

// SelectionStart clears per-cycle selection state without touching which
// entries are enabled (spec.md §4.5 step 4).
func (s *Selector) SelectionStart() {
	for _, e := range s.entries {
		e.selected = false
	}
}

// Enabled returns the currently-enabled entries, in registration order
// (spec.md §4.5 step 5: "transport_starts() returns enabled entries").
func (s *Selector) Enabled() []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.enabled {
			out = append(out, e)
		}
	}
	return out
}

// Select records that entry has been addressed this cycle.
func (s *Selector) Select(entry *Entry) {
	entry.selected = true
}

// SendPlan is one planned transmission: a locator to send to, and the set
// of remote GUIDs it covers.
type SendPlan struct {
	Locator types.Locator
	Covers  []types.GUID
}

// Plan computes the minimal set of SendPlans covering every enabled
// entry (the selected flag set by Select is not consulted), applying the tie-break rules of spec.md §4.5:
// prefer a multicast locator that covers >=2 remaining entries; otherwise
// unicast; among ties, lowest (externality, cost) wins.
func (s *Selector) Plan() []SendPlan {
	var plan []SendPlan
	remaining := s.Enabled()

	for len(remaining) > 0 {
		mcLoc, mcCovers := s.bestMulticast(remaining)
		if mcLoc != nil && len(mcCovers) >= 2 {
			plan = append(plan, SendPlan{Locator: *mcLoc, Covers: guidsOf(mcCovers)})
			remaining = subtract(remaining, mcCovers)
			continue
		}

		// Fall back to one unicast send per remaining entry, in
		// externality/cost order for determinism.
		sort.Slice(remaining, func(i, j int) bool {
			return s.externalityFor(remaining[i].RemoteGUID).Less(s.externalityFor(remaining[j].RemoteGUID))
		})
		e := remaining[0]
		loc := s.bestUnicast(e)
		if loc != nil {
			plan = append(plan, SendPlan{Locator: *loc, Covers: []types.GUID{e.RemoteGUID}})
		}
		remaining = remaining[1:]
	}
	return plan
}

func guidsOf(entries []*Entry) []types.GUID {
	out := make([]types.GUID, len(entries))
	for i, e := range entries {
		out[i] = e.RemoteGUID
	}
	return out
}

func subtract(all, remove []*Entry) []*Entry {
	skip := make(map[types.GUID]bool, len(remove))
	for _, e := range remove {
		skip[e.RemoteGUID] = true
	}
	var out []*Entry
	for _, e := range all {
		if !skip[e.RemoteGUID] {
			out = append(out, e)
		}
	}
	return out
}

// bestMulticast finds the multicast locator shared by the most entries,
// breaking ties by lowest externality/cost.
func (s *Selector) bestMulticast(entries []*Entry) (*types.Locator, []*Entry) {
	counts := map[types.Locator][]*Entry{}
	for _, e := range entries {
		for _, mc := range e.MulticastLocators {
			counts[mc] = append(counts[mc], e)
		}
	}
	var bestLoc *types.Locator
	var bestCovers []*Entry
	var bestExt types.Externality
	first := true
	for loc, covers := range counts {
		l := loc
		ext := s.bestExternalityAmong(covers)
		if first || len(covers) > len(bestCovers) || (len(covers) == len(bestCovers) && ext.Less(bestExt)) {
			bestLoc = &l
			bestCovers = covers
			bestExt = ext
			first = false
		}
	}
	return bestLoc, bestCovers
}

func (s *Selector) bestExternalityAmong(entries []*Entry) types.Externality {
	best := types.Externality{Class: int(^uint(0) >> 1), Cost: int(^uint(0) >> 1)}
	for _, e := range entries {
		ext := s.externalityFor(e.RemoteGUID)
		if ext.Less(best) {
			best = ext
		}
	}
	return best
}

// bestUnicast picks the lowest (externality, cost) unicast locator for a
// single entry; entries carry no per-locator externality in this model so
// we use the entry's own externality for all its locators, then prefer
// the first-advertised locator as a stable tie-break.
func (s *Selector) bestUnicast(e *Entry) *types.Locator {
	if len(e.UnicastLocators) == 0 {
		return nil
	}
	loc := e.UnicastLocators[0]
	return &loc
}
