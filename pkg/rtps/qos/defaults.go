package qos

import (
	"time"

	"github.com/imdario/mergo"
)

// DefaultPolicies mirrors the RTPS/DDS spec's default QoS profile: best
// effort, volatile, keep-last(1), unlimited resources. User overrides are
// mergo-merged on top, the way the teacher merges Helm chart overrides
// onto built-in defaults in pkg/charts/linkerd2/values.go.
func DefaultPolicies() Policies {
	return Policies{
		Reliability:    BestEffort,
		MaxBlockingTime: 100 * time.Millisecond,
		Durability:     Volatile,
		History:        History{Kind: KeepLast, Depth: 1},
		ResourceLimits: ResourceLimits{
			MaxSamples:            Unlimited,
			MaxInstances:          Unlimited,
			MaxSamplesPerInstance: Unlimited,
		},
		Ownership:         SharedOwnership,
		Liveliness:        Automatic,
		LivelinessLease:    10 * time.Second,
		LivelinessAnnounce: 3 * time.Second,
		DestinationOrder:  ByReceptionTimestamp,
		TypeConsistency:   TypeConsistencyExact,
		AccessScope:       InstancePresentation,
	}
}

// Merge overlays non-zero-valued fields of override onto a copy of
// DefaultPolicies(), following the same "don't overwrite non-empty
// defaults unless the override sets it" semantics the teacher documents
// at pkg/charts/linkerd2/values.go:280 for mergo.Merge.
func Merge(override Policies) (Policies, error) {
	base := DefaultPolicies()
	// mergo.Merge(&dst, src) fills zero fields of dst from src, so we
	// merge the defaults onto the override: override's explicitly-set
	// fields win, unset (zero-value) fields fall back to base.
	if err := mergo.Merge(&override, base); err != nil {
		return Policies{}, err
	}
	return override, nil
}
