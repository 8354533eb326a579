// Package qos models RTPS/DDS QoS policies and implements the
// offered-vs-requested compatibility matcher (spec.md §4.7, C8).
package qos

import "time"

// ReliabilityKind selects best-effort or reliable delivery.
type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

// DurabilityKind orders VOLATILE < TRANSIENT_LOCAL < TRANSIENT < PERSISTENT
// (spec.md §4.7 rule 3).
type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

// HistoryKind selects KEEP_LAST or KEEP_ALL retention.
type HistoryKind int

const (
	KeepLast HistoryKind = iota
	KeepAll
)

// OwnershipKind selects SHARED or EXCLUSIVE ownership arbitration.
type OwnershipKind int

const (
	SharedOwnership OwnershipKind = iota
	ExclusiveOwnership
)

// LivelinessKind orders AUTOMATIC < MANUAL_BY_PARTICIPANT < MANUAL_BY_TOPIC
// (spec.md §4.7 rule 7).
type LivelinessKind int

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

// DestinationOrderKind orders RECEPTION < SOURCE (spec.md §4.7 rule 8).
type DestinationOrderKind int

const (
	ByReceptionTimestamp DestinationOrderKind = iota
	BySourceTimestamp
)

// TypeConsistencyKind selects the type-assignability rule used when
// matching writer and reader type information (spec.md §4.7 rule 1).
type TypeConsistencyKind int

const (
	TypeConsistencyExact TypeConsistencyKind = iota
	TypeConsistencyDeclared
	TypeConsistencyAssignable
)

// AccessScopeKind is the PresentationQos access_scope kind. Coherent
// GROUP access across multiple writers is not enforced as a protocol by
// this implementation — see DESIGN.md Open Question 2; it is modeled here
// only as a value carried for matching.
type AccessScopeKind int

const (
	InstancePresentation AccessScopeKind = iota
	TopicPresentation
	GroupPresentation
)

// ResourceLimits bounds a history's storage (spec.md §3).
type ResourceLimits struct {
	MaxSamples           int
	MaxInstances         int
	MaxSamplesPerInstance int
}

// Unlimited is the sentinel meaning "no limit" for any ResourceLimits field.
const Unlimited = -1

// History selects retention policy and, for KEEP_LAST, depth.
type History struct {
	Kind  HistoryKind
	Depth int
}

// Policies is the full QoS profile of one endpoint (spec.md §6's
// enumerated configuration options, per-endpoint subset).
type Policies struct {
	TopicName string
	TypeName  string

	Reliability       ReliabilityKind
	MaxBlockingTime    time.Duration
	Durability        DurabilityKind
	History           History
	ResourceLimits    ResourceLimits
	DeadlinePeriod     time.Duration
	LatencyBudget      time.Duration
	Ownership         OwnershipKind
	OwnershipStrength  int32
	Liveliness        LivelinessKind
	LivelinessLease    time.Duration
	LivelinessAnnounce time.Duration
	DestinationOrder  DestinationOrderKind
	LifespanDuration   time.Duration
	Partitions        []string
	UserData          []byte
	TopicData         []byte
	GroupData         []byte
	TypeConsistency   TypeConsistencyKind
	AccessScope       AccessScopeKind
	CoherentAccess    bool

	// TypeInformation is an opaque, optional type-compatibility token
	// advertised by discovery (spec.md §4.7 rule 10); nil means the side
	// did not advertise type information.
	TypeInformation []byte
}
