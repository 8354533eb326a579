package discovery

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

func udpLocator(port uint32, a, b, c, d byte) types.Locator {
	var loc types.Locator
	loc.Kind = types.LocatorKindUDPv4
	loc.Port = port
	loc.Address[12], loc.Address[13], loc.Address[14], loc.Address[15] = a, b, c, d
	return loc
}

func TestParticipantProxyDataEncodeDecodeRoundTrip(t *testing.T) {
	prefix := types.GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	p := ParticipantProxyData{
		GuidPrefix:                   prefix,
		MetatrafficUnicastLocators:   []types.Locator{udpLocator(7410, 127, 0, 0, 1)},
		MetatrafficMulticastLocators: []types.Locator{udpLocator(7411, 239, 255, 0, 1)},
		DefaultUnicastLocators:       []types.Locator{udpLocator(7412, 127, 0, 0, 1)},
		AvailableBuiltinEndpoints:    BuiltinParticipantAnnouncer | BuiltinPublicationAnnouncer | BuiltinSubscriptionDetector,
		LeaseDuration:                11 * time.Second,
		UserData:                     []byte("hello"),
	}

	raw := p.Encode().Encode(binary.LittleEndian)
	pl, err := wire.DecodeParameterList(raw, binary.LittleEndian, false)
	require.NoError(t, err)

	got, err := DecodeParticipantProxyData(pl)
	require.NoError(t, err)

	assert.Equal(t, p.GuidPrefix, got.GuidPrefix)
	assert.Equal(t, p.MetatrafficUnicastLocators, got.MetatrafficUnicastLocators)
	assert.Equal(t, p.MetatrafficMulticastLocators, got.MetatrafficMulticastLocators)
	assert.Equal(t, p.DefaultUnicastLocators, got.DefaultUnicastLocators)
	assert.Equal(t, p.AvailableBuiltinEndpoints, got.AvailableBuiltinEndpoints)
	assert.Equal(t, p.LeaseDuration, got.LeaseDuration)
	assert.Equal(t, p.UserData, got.UserData)

	assert.True(t, got.AvailableBuiltinEndpoints.Has(BuiltinParticipantAnnouncer))
	assert.False(t, got.AvailableBuiltinEndpoints.Has(BuiltinPublicationDetector))
}

func TestEndpointProxyDataEncodeDecodeRoundTrip(t *testing.T) {
	guid := types.GUID{
		Prefix: types.GuidPrefix{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9},
		Entity: types.EntityId{Key: [3]byte{0, 0, 1}, Kind: types.EntityKindWriterWithKey},
	}
	e := EndpointProxyData{
		GUID: guid,
		Policies: qos.Policies{
			TopicName:         "Square",
			TypeName:          "ShapeType",
			Reliability:       qos.Reliable,
			Durability:        qos.TransientLocal,
			Ownership:         qos.ExclusiveOwnership,
			OwnershipStrength: 42,
			Partitions:        []string{"red", "blue*"},
			TypeInformation:   []byte{0xde, 0xad},
		},
		Unicast: []types.Locator{udpLocator(7413, 10, 0, 0, 1)},
	}

	raw := e.Encode().Encode(binary.LittleEndian)
	pl, err := wire.DecodeParameterList(raw, binary.LittleEndian, false)
	require.NoError(t, err)

	got, err := DecodeEndpointProxyData(pl)
	require.NoError(t, err)

	assert.Equal(t, e.GUID, got.GUID)
	assert.Equal(t, e.Policies.TopicName, got.Policies.TopicName)
	assert.Equal(t, e.Policies.TypeName, got.Policies.TypeName)
	assert.Equal(t, e.Policies.Reliability, got.Policies.Reliability)
	assert.Equal(t, e.Policies.Durability, got.Policies.Durability)
	assert.Equal(t, e.Policies.Ownership, got.Policies.Ownership)
	assert.Equal(t, e.Policies.OwnershipStrength, got.Policies.OwnershipStrength)
	assert.Equal(t, e.Policies.Partitions, got.Policies.Partitions)
	assert.Equal(t, e.Policies.TypeInformation, got.Policies.TypeInformation)
	assert.Equal(t, e.Unicast, got.Unicast)

	// deep.Equal walks every field of Policies at once, rather than the
	// field-by-field asserts above, so an encoder/decoder change that
	// silently drops or zeroes a field shows up even if nobody updates
	// this test's assert list.
	if diff := deep.Equal(e.Policies, got.Policies); diff != nil {
		t.Errorf("Policies round-trip diff: %v", diff)
	}
}

func TestBuiltinEndpointSetHasRequiresAllBits(t *testing.T) {
	s := BuiltinParticipantAnnouncer | BuiltinPublicationDetector
	assert.True(t, s.Has(BuiltinParticipantAnnouncer))
	assert.True(t, s.Has(BuiltinParticipantAnnouncer|BuiltinPublicationDetector))
	assert.False(t, s.Has(BuiltinSubscriptionAnnouncer))
}
