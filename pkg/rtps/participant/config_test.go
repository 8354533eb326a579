package participant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsSimpleDiscoveryWithResolvedSecurity(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DiscoverySimple, cfg.Discovery.Protocol)
	assert.Equal(t, cfg.Discovery.LeaseDuration/3, cfg.Discovery.LeaseAnnouncementPeriod)
	assert.NotNil(t, cfg.Security.Authenticator)
	assert.NotNil(t, cfg.Security.AccessController)
}

func TestMergeConfigOverridesOnlyNonZeroFields(t *testing.T) {
	override := Config{DomainId: 7}
	merged, err := mergeConfig(override)
	require.NoError(t, err)

	assert.Equal(t, 7, merged.DomainId)
	assert.Equal(t, DefaultConfig().MaxMessageSize, merged.MaxMessageSize)
	assert.Equal(t, DiscoverySimple, merged.Discovery.Protocol)
}

func TestMergeConfigPreservesExplicitDiscoveryOverride(t *testing.T) {
	override := Config{
		Discovery: DiscoveryConfig{
			Protocol:      DiscoveryClient,
			LeaseDuration: 5 * time.Second,
		},
	}
	merged, err := mergeConfig(override)
	require.NoError(t, err)

	assert.Equal(t, DiscoveryClient, merged.Discovery.Protocol)
	assert.Equal(t, 5*time.Second, merged.Discovery.LeaseDuration)
}
