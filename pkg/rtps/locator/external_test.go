package locator

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

func udpLocator(t *testing.T, ip string, port uint32) types.Locator {
	t.Helper()
	v4 := net.ParseIP(ip).To4()
	var loc types.Locator
	loc.Kind = types.LocatorKindUDPv4
	loc.Port = port
	copy(loc.Address[12:], v4)
	return loc
}

func TestProcessPassesThroughWhenNoGroupsConfigured(t *testing.T) {
	p := NewExternalLocatorsProcessor(nil)
	remote := []types.Locator{udpLocator(t, "203.0.113.5", 7410)}

	got := p.Process(remote)

	assert.Equal(t, remote, got)
}

func TestProcessSubstitutesLocalEquivalentForMatchingGroup(t *testing.T) {
	localEquiv := udpLocator(t, "192.168.1.10", 7411)
	_, network, _ := net.ParseCIDR("203.0.113.0/24")
	p := NewExternalLocatorsProcessor([]ExternalityGroup{
		{Network: *network, LocalEquivalent: &localEquiv, Externality: types.Externality{Class: 1, Cost: 1}},
	})
	remote := []types.Locator{udpLocator(t, "203.0.113.5", 7410)}

	got := p.Process(remote)

	assert.Equal(t, []types.Locator{localEquiv}, got)
}

func TestProcessPassesThroughMatchingGroupWithNoLocalEquivalent(t *testing.T) {
	_, network, _ := net.ParseCIDR("203.0.113.0/24")
	p := NewExternalLocatorsProcessor([]ExternalityGroup{
		{Network: *network, Externality: types.Externality{Class: 1, Cost: 1}},
	})
	remote := []types.Locator{udpLocator(t, "203.0.113.5", 7410)}

	got := p.Process(remote)

	assert.Equal(t, remote, got)
}

func TestProcessLeavesUnmatchedLocatorsUntouched(t *testing.T) {
	_, network, _ := net.ParseCIDR("203.0.113.0/24")
	localEquiv := udpLocator(t, "192.168.1.10", 7411)
	p := NewExternalLocatorsProcessor([]ExternalityGroup{
		{Network: *network, LocalEquivalent: &localEquiv},
	})
	remote := []types.Locator{udpLocator(t, "198.51.100.7", 7410)}

	got := p.Process(remote)

	assert.Equal(t, remote, got)
}

func TestExternalityForLoopbackIsAlwaysLocal(t *testing.T) {
	p := NewExternalLocatorsProcessor(nil)
	loop := udpLocator(t, "127.0.0.1", 7410)

	assert.Equal(t, types.LocalExternality, p.ExternalityFor(loop))
}

func TestExternalityForMatchedGroupReturnsGroupClass(t *testing.T) {
	_, network, _ := net.ParseCIDR("203.0.113.0/24")
	want := types.Externality{Class: 2, Cost: 5}
	p := NewExternalLocatorsProcessor([]ExternalityGroup{{Network: *network, Externality: want}})
	loc := udpLocator(t, "203.0.113.5", 7410)

	assert.Equal(t, want, p.ExternalityFor(loc))
}

func TestExternalityForUnmatchedNonLoopbackIsMaximallyExternal(t *testing.T) {
	p := NewExternalLocatorsProcessor(nil)
	loc := udpLocator(t, "198.51.100.7", 7410)

	got := p.ExternalityFor(loc)

	assert.True(t, types.LocalExternality.Less(got), "an unmatched public address must lose any tie-break against LocalExternality")
}

func TestBestExternalityAmongPicksTheLeastExternalLocator(t *testing.T) {
	_, network, _ := net.ParseCIDR("203.0.113.0/24")
	better := types.Externality{Class: 1, Cost: 1}
	p := NewExternalLocatorsProcessor([]ExternalityGroup{{Network: *network, Externality: better}})

	unicast := []types.Locator{udpLocator(t, "198.51.100.7", 7410)}
	multicast := []types.Locator{udpLocator(t, "203.0.113.5", 7411)}

	got := p.BestExternalityAmong(unicast, multicast)

	assert.Equal(t, better, got)
}

func TestBestExternalityAmongWithNoLocatorsIsLocal(t *testing.T) {
	p := NewExternalLocatorsProcessor(nil)

	assert.Equal(t, types.LocalExternality, p.BestExternalityAmong(nil, nil))
}
