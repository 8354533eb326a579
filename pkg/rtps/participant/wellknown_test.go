package participant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWellKnownPortFormula(t *testing.T) {
	// spec.md's formula: PB + DG*domain_id + offset + PG*participant_id.
	assert.Equal(t, uint32(7400+0+0+0), wellKnownPort(0, 0, offsetMetatrafficMulticast))
	assert.Equal(t, uint32(7400+0+1+0), wellKnownPort(0, 0, offsetMetatrafficUnicast))
	assert.Equal(t, uint32(7400+250+1+2), wellKnownPort(1, 1, offsetMetatrafficUnicast))
	assert.Equal(t, uint32(7400+500+11+4), wellKnownPort(2, 2, offsetUserUnicast))
}

func TestMetatrafficAndUserPortsDiffer(t *testing.T) {
	meta := metatrafficUnicastPort(0, 3)
	user := userUnicastPort(0, 3)
	mcast := userMulticastPort(0, 3)
	assert.NotEqual(t, meta, user)
	assert.NotEqual(t, user, mcast)
}

func TestSpdpMulticastLocatorUsesWellKnownAddressAndPort(t *testing.T) {
	loc := spdpMulticastLocator(0)
	assert.True(t, loc.IsMulticast())
	assert.Equal(t, spdpMulticastAddress, loc.IP().String())
	assert.Equal(t, wellKnownPort(0, 0, offsetMetatrafficMulticast), loc.Port)
}

func TestSpdpMulticastLocatorVariesByDomain(t *testing.T) {
	a := spdpMulticastLocator(0)
	b := spdpMulticastLocator(1)
	assert.NotEqual(t, a.Port, b.Port)
}
