package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

func guidFor(key byte) types.GUID {
	return types.GUID{Entity: types.EntityId{Key: [3]byte{key}}}
}

func ucLoc(port uint32) types.Locator {
	return types.Locator{Kind: types.LocatorKindUDPv4, Port: port}
}

func mcLoc(port uint32) types.Locator {
	return types.Locator{Kind: types.LocatorKindUDPv4, Port: port, Address: [16]byte{0: 224}}
}

func TestSelectorPlanPrefersMulticastWhenItCoversAtLeastTwo(t *testing.T) {
	s := NewSelector()
	mc := mcLoc(7410)
	a, b := guidFor(1), guidFor(2)
	s.AddEntry(Entry{RemoteGUID: a, UnicastLocators: []types.Locator{ucLoc(7411)}, MulticastLocators: []types.Locator{mc}})
	s.AddEntry(Entry{RemoteGUID: b, UnicastLocators: []types.Locator{ucLoc(7412)}, MulticastLocators: []types.Locator{mc}})
	s.Reset(true)

	plan := s.Plan()

	require.Len(t, plan, 1)
	assert.Equal(t, mc, plan[0].Locator)
	assert.ElementsMatch(t, []types.GUID{a, b}, plan[0].Covers)
}

func TestSelectorPlanFallsBackToUnicastWhenMulticastCoversOnlyOne(t *testing.T) {
	s := NewSelector()
	a := guidFor(1)
	s.AddEntry(Entry{RemoteGUID: a, UnicastLocators: []types.Locator{ucLoc(7411)}, MulticastLocators: []types.Locator{mcLoc(7410)}})
	s.Reset(true)

	plan := s.Plan()

	require.Len(t, plan, 1)
	assert.Equal(t, ucLoc(7411), plan[0].Locator)
	assert.Equal(t, []types.GUID{a}, plan[0].Covers)
}

func TestSelectorPlanOnlyCoversEnabledEntries(t *testing.T) {
	s := NewSelector()
	a, b := guidFor(1), guidFor(2)
	s.AddEntry(Entry{RemoteGUID: a, UnicastLocators: []types.Locator{ucLoc(7411)}})
	s.AddEntry(Entry{RemoteGUID: b, UnicastLocators: []types.Locator{ucLoc(7412)}})
	s.Reset(false)
	s.Enable(a)

	plan := s.Plan()

	require.Len(t, plan, 1)
	assert.Equal(t, []types.GUID{a}, plan[0].Covers)
}

func TestSelectorDisableRemovesEntryFromNextPlan(t *testing.T) {
	s := NewSelector()
	a, b := guidFor(1), guidFor(2)
	s.AddEntry(Entry{RemoteGUID: a, UnicastLocators: []types.Locator{ucLoc(7411)}})
	s.AddEntry(Entry{RemoteGUID: b, UnicastLocators: []types.Locator{ucLoc(7412)}})
	s.Reset(true)
	s.Disable(a)

	plan := s.Plan()

	require.Len(t, plan, 1)
	assert.Equal(t, []types.GUID{b}, plan[0].Covers)
}

func TestSelectorRemoveEntryDropsItEntirely(t *testing.T) {
	s := NewSelector()
	a := guidFor(1)
	s.AddEntry(Entry{RemoteGUID: a, UnicastLocators: []types.Locator{ucLoc(7411)}})
	s.RemoveEntry(a)
	s.Reset(true)

	assert.Empty(t, s.Plan())
}

func TestSelectorPlanBreaksMulticastTiesByLowerExternality(t *testing.T) {
	s := NewSelector()
	mcLow := mcLoc(7410)
	mcHigh := types.Locator{Kind: types.LocatorKindUDPv4, Port: 7420, Address: [16]byte{0: 224, 1: 1}}

	a, b := guidFor(1), guidFor(2)
	c, d := guidFor(3), guidFor(4)
	s.AddEntry(Entry{RemoteGUID: a, MulticastLocators: []types.Locator{mcLow}})
	s.AddEntry(Entry{RemoteGUID: b, MulticastLocators: []types.Locator{mcLow}})
	s.AddEntry(Entry{RemoteGUID: c, MulticastLocators: []types.Locator{mcHigh}})
	s.AddEntry(Entry{RemoteGUID: d, MulticastLocators: []types.Locator{mcHigh}})
	s.SetExternality(a, types.Externality{Class: 5, Cost: 5})
	s.SetExternality(b, types.Externality{Class: 5, Cost: 5})
	s.SetExternality(c, types.LocalExternality)
	s.SetExternality(d, types.LocalExternality)
	s.Reset(true)

	plan := s.Plan()

	require.Len(t, plan, 2)
	assert.Equal(t, mcHigh, plan[0].Locator, "the multicast group with the lower externality must win an equal-coverage tie")
	assert.Equal(t, mcLow, plan[1].Locator, "the losing group still covers its own remaining entries")
}

func TestSelectorPlanOrdersUnicastFallbackByLowestExternalityFirst(t *testing.T) {
	s := NewSelector()
	a, b := guidFor(1), guidFor(2)
	s.AddEntry(Entry{RemoteGUID: a, UnicastLocators: []types.Locator{ucLoc(7411)}})
	s.AddEntry(Entry{RemoteGUID: b, UnicastLocators: []types.Locator{ucLoc(7412)}})
	s.SetExternality(a, types.Externality{Class: 9, Cost: 9})
	s.SetExternality(b, types.LocalExternality)
	s.Reset(true)

	plan := s.Plan()

	require.Len(t, plan, 2)
	assert.Equal(t, []types.GUID{b}, plan[0].Covers, "the lower-externality entry must be scheduled first")
	assert.Equal(t, []types.GUID{a}, plan[1].Covers)
}

func TestSelectorUnsetExternalityDefaultsToLocal(t *testing.T) {
	s := NewSelector()
	assert.Equal(t, types.LocalExternality, s.externalityFor(guidFor(9)))
}

func TestSelectorSelectStartResetsSelectedWithoutAffectingEnabled(t *testing.T) {
	s := NewSelector()
	a := guidFor(1)
	s.AddEntry(Entry{RemoteGUID: a, UnicastLocators: []types.Locator{ucLoc(7411)}})
	s.Reset(true)
	s.Select(s.Enabled()[0])
	s.SelectionStart()

	enabled := s.Enabled()
	require.Len(t, enabled, 1)
	assert.False(t, enabled[0].selected)
	assert.True(t, enabled[0].enabled)
}
