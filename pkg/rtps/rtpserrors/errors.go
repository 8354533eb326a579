// Package rtpserrors defines the typed error taxonomy from spec.md §7.
// Core operations never panic or throw; they return one of these typed
// errors (or nil) so a caller can branch on errors.As instead of string
// matching, in the same plain-wrapped-error style the teacher uses
// throughout controller/api/destination.
package rtpserrors

import "fmt"

// ProtocolError indicates a malformed submessage, invalid length, or an
// unrecognized must-understand PID in strict mode. Recovery: drop the
// enclosing message, keep the session alive (spec.md §7).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("rtps protocol error: %s", e.Reason) }

// NewProtocolError constructs a ProtocolError with a formatted reason.
func NewProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// ResourceLimitError indicates history/pool/proxy capacity was reached
// (spec.md §7). Kind further identifies which limit, matching the
// SAMPLE_REJECTED reason vocabulary of spec.md §4.1.
type ResourceLimitError struct {
	Kind   ResourceLimitKind
	Detail string
}

// ResourceLimitKind enumerates the SAMPLE_REJECTED reasons from spec.md §4.1.
type ResourceLimitKind int

const (
	ResourceLimitSamples ResourceLimitKind = iota
	ResourceLimitInstances
	ResourceLimitSamplesPerInstance
	ResourceLimitHistoryFull
)

func (k ResourceLimitKind) String() string {
	switch k {
	case ResourceLimitSamples:
		return "REJECTED_BY_SAMPLES_LIMIT"
	case ResourceLimitInstances:
		return "REJECTED_BY_INSTANCES_LIMIT"
	case ResourceLimitSamplesPerInstance:
		return "REJECTED_BY_SAMPLES_PER_INSTANCE_LIMIT"
	case ResourceLimitHistoryFull:
		return "HistoryFull"
	default:
		return "UNKNOWN_RESOURCE_LIMIT"
	}
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("rtps resource limit exceeded: %s: %s", e.Kind, e.Detail)
}

// NewResourceLimitError constructs a ResourceLimitError.
func NewResourceLimitError(kind ResourceLimitKind, detail string) *ResourceLimitError {
	return &ResourceLimitError{Kind: kind, Detail: detail}
}

// QosInconsistentError is reported at create-endpoint and at match time;
// surfaced via listener/status, never fatal (spec.md §7).
type QosInconsistentError struct {
	PolicyID string
	Reason   string
}

func (e *QosInconsistentError) Error() string {
	return fmt.Sprintf("rtps qos inconsistent: policy=%s: %s", e.PolicyID, e.Reason)
}

// TimeoutError is a distinct status from a generic Error (spec.md §7, §5).
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rtps operation timed out: %s", e.Operation)
}

// TransportError wraps a failure reported by a transport plugin. For
// RELIABLE endpoints this is transparent (the protocol retries); for
// BEST_EFFORT the sample is simply lost (spec.md §7).
type TransportError struct {
	Locator string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rtps transport error on %s: %v", e.Locator, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Fatal indicates an internal invariant was violated. This should only
// occur on a bug and is the only class of error that may justify tearing
// down the participant (spec.md §7).
type Fatal struct {
	Reason string
}

func (e *Fatal) Error() string { return fmt.Sprintf("rtps fatal internal error: %s", e.Reason) }
