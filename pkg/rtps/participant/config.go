// Package participant implements the participant core (spec.md §4.9, C10):
// it owns a participant's transports, its entity-id-keyed local endpoint
// tables, its discovery (PDP/EDP) instances and scheduler, and the
// incoming-message demultiplex loop that feeds them.
package participant

import (
	"time"

	"github.com/imdario/mergo"

	"github.com/rtps-io/rtps-core/pkg/rtps/discovery"
	"github.com/rtps-io/rtps-core/pkg/rtps/endpoint"
	"github.com/rtps-io/rtps-core/pkg/rtps/locator"
	"github.com/rtps-io/rtps-core/pkg/rtps/persistence"
	"github.com/rtps-io/rtps-core/pkg/rtps/qos"
	"github.com/rtps-io/rtps-core/pkg/rtps/security"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// DiscoveryProtocol selects how a participant discovers its peers
// (spec.md §6 discovery.protocol).
type DiscoveryProtocol int

const (
	DiscoverySimple DiscoveryProtocol = iota
	DiscoveryClient
	DiscoveryServer
	DiscoveryBackup
	DiscoverySuperClient
	DiscoveryNone
)

// DiscoveryConfig holds every discovery.* option spec.md §6 enumerates.
type DiscoveryConfig struct {
	Protocol DiscoveryProtocol

	LeaseDuration            time.Duration
	LeaseAnnouncementPeriod  time.Duration
	InitialAnnouncementCount int
	InitialAnnouncementPeriod time.Duration

	// Servers addresses the Discovery-Server this participant announces
	// to exclusively when Protocol is DiscoveryClient or
	// DiscoverySuperClient (spec.md §6 discovery.servers[]).
	Servers []types.Locator
}

// Config is a participant's full construction-time configuration. A zero
// value is not usable directly — build one with DefaultConfig and
// override only the fields that matter, then pass it to New, which merges
// it onto the defaults the same way pkg/rtps/qos/defaults.go merges QoS
// overrides.
type Config struct {
	DomainId      int
	ParticipantId int

	Discovery DiscoveryConfig

	// EndpointDefaults is merged under any QoS a caller supplies to
	// CreateWriter/CreateReader, via qos.Merge.
	EndpointDefaults qos.Policies

	// MaxMessageSize bounds a single outgoing RTPS message
	// (spec.md §4.2 "messages respect max_message_size").
	MaxMessageSize int

	Security    security.Plugins
	Persistence persistence.Service

	// ExternalLocators translates and ranks remote locators discovered
	// through NAT/firewall boundaries (spec.md §4.5 "External locators"),
	// the same externality map original_source's ExternalLocatorsProcessor
	// builds from <external_locators> participant XML config. Empty means
	// every remote locator is used as advertised, with LocalExternality
	// for every one of them.
	ExternalLocators []locator.ExternalityGroup
}

// DefaultConfig returns the configuration a participant is built with
// when the caller overrides nothing: SIMPLE discovery at the standard
// lease/3 resend cadence, a five-announcement fast-start burst, and
// qos.DefaultPolicies() as the per-endpoint baseline.
func DefaultConfig() Config {
	lease := discovery.DefaultLeaseDuration
	return Config{
		DomainId:      0,
		ParticipantId: 0,
		Discovery: DiscoveryConfig{
			Protocol:                  DiscoverySimple,
			LeaseDuration:             lease,
			LeaseAnnouncementPeriod:   lease / 3,
			InitialAnnouncementCount:  5,
			InitialAnnouncementPeriod: 100 * time.Millisecond,
		},
		EndpointDefaults: qos.DefaultPolicies(),
		MaxMessageSize:   endpoint.DefaultMaxMessageSize,
		Security:         security.Plugins{}.Resolved(),
	}
}

// mergeConfig overlays override onto DefaultConfig() the way
// qos.Merge overlays a QoS override onto qos.DefaultPolicies(): every
// non-zero field in override wins, every zero field falls back to the
// default. Config.Persistence and Config.Security.* are pointers/
// interfaces and so are left exactly as the caller set them — mergo
// treats a nil interface as "unset" and a non-nil one as an override,
// which is what we want here.
func mergeConfig(override Config) (Config, error) {
	base := DefaultConfig()
	if err := mergo.Merge(&override, base); err != nil {
		return Config{}, err
	}
	override.Security = override.Security.Resolved()
	return override, nil
}
