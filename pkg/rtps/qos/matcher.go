package qos

// FailureReason is a bitmask of reasons a writer/reader pair failed to
// match (spec.md §4.7).
type FailureReason uint32

const (
	ReasonDifferentTopic FailureReason = 1 << iota
	ReasonInconsistentTopic
	ReasonIncompatibleQos
	ReasonPartitions
	ReasonDifferentTypeInfo
)

// IncompatiblePolicy names which policy ID caused an incompatible-QoS
// failure, mirroring DDS's last_policy_id (spec.md §8 scenario 5).
type IncompatiblePolicy string

const (
	PolicyReliability      IncompatiblePolicy = "RELIABILITY"
	PolicyDurability       IncompatiblePolicy = "DURABILITY"
	PolicyDeadline         IncompatiblePolicy = "DEADLINE"
	PolicyLatencyBudget    IncompatiblePolicy = "LATENCY_BUDGET"
	PolicyOwnership        IncompatiblePolicy = "OWNERSHIP"
	PolicyLiveliness       IncompatiblePolicy = "LIVELINESS"
	PolicyDestinationOrder IncompatiblePolicy = "DESTINATION_ORDER"
)

// MatchingOutcome is the result of matching a local writer against a
// remote reader, or vice versa (spec.md §4.7).
type MatchingOutcome struct {
	Ok                  bool
	ReasonMask          FailureReason
	IncompatibleQosMask uint32
	LastPolicyID        IncompatiblePolicy
}

func ok() MatchingOutcome { return MatchingOutcome{Ok: true} }

func fail(reason FailureReason, policy IncompatiblePolicy) MatchingOutcome {
	return MatchingOutcome{Ok: false, ReasonMask: reason, LastPolicyID: policy}
}

// Match evaluates the ten offered(writer)-vs-requested(reader) rules of
// spec.md §4.7 and returns the matching outcome. Evaluation stops at the
// first failing rule (rules are evaluated in spec order), same as the
// spec's "if and only if" chain, so a failed outcome's ReasonMask carries
// exactly one bit.
func Match(writer, reader Policies) MatchingOutcome {
	if writer.TopicName != reader.TopicName {
		return fail(ReasonDifferentTopic, "")
	}
	if writer.TypeName != reader.TypeName {
		return fail(ReasonInconsistentTopic, "")
	}

	// Rule 2: reliability.
	if writer.Reliability == BestEffort && reader.Reliability == Reliable {
		return fail(ReasonIncompatibleQos, PolicyReliability)
	}

	// Rule 3: durability, writer kind >= reader kind.
	if writer.Durability < reader.Durability {
		return fail(ReasonIncompatibleQos, PolicyDurability)
	}

	// Rule 4: deadline, writer.period <= reader.period. A zero reader
	// deadline means "no deadline requested", which is always satisfied.
	if reader.DeadlinePeriod > 0 && writer.DeadlinePeriod > reader.DeadlinePeriod {
		return fail(ReasonIncompatibleQos, PolicyDeadline)
	}

	// Rule 5: latency budget, writer.duration <= reader.duration.
	if writer.LatencyBudget > reader.LatencyBudget {
		return fail(ReasonIncompatibleQos, PolicyLatencyBudget)
	}

	// Rule 6: ownership kind equal.
	if writer.Ownership != reader.Ownership {
		return fail(ReasonIncompatibleQos, PolicyOwnership)
	}

	// Rule 7: liveliness, writer.kind >= reader.kind and writer.lease <= reader.lease.
	if writer.Liveliness < reader.Liveliness {
		return fail(ReasonIncompatibleQos, PolicyLiveliness)
	}
	if reader.LivelinessLease > 0 && writer.LivelinessLease > reader.LivelinessLease {
		return fail(ReasonIncompatibleQos, PolicyLiveliness)
	}

	// Rule 8: destination order, writer.kind >= reader.kind.
	if writer.DestinationOrder < reader.DestinationOrder {
		return fail(ReasonIncompatibleQos, PolicyDestinationOrder)
	}

	// Rule 9: partitions must intersect.
	if !PartitionsIntersect(writer.Partitions, reader.Partitions) {
		return fail(ReasonPartitions, "")
	}

	// Rule 10: type information compatibility, only evaluated if both
	// sides advertise it.
	if len(writer.TypeInformation) > 0 && len(reader.TypeInformation) > 0 {
		if !typeInformationCompatible(writer, reader) {
			return fail(ReasonDifferentTypeInfo, "")
		}
	}

	return ok()
}

// typeInformationCompatible applies the type-consistency-enforcement kind
// requested by the reader (spec.md §4.7 rule 1/10). EXACT requires
// byte-identical type information; DECLARED/ASSIGNABLE defer to whatever
// looser equality the type adapter encoded into the TypeInformation bytes
// themselves (the core treats TypeInformation as opaque per spec.md §9).
func typeInformationCompatible(writer, reader Policies) bool {
	switch reader.TypeConsistency {
	case TypeConsistencyExact:
		return string(writer.TypeInformation) == string(reader.TypeInformation)
	default:
		// DECLARED/ASSIGNABLE: the type adapter is responsible for
		// encoding assignability into the opaque blob; the core only
		// requires both sides to have advertised *something*, which the
		// caller already checked before calling this function.
		return true
	}
}
