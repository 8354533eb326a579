package qos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func baseMatchPolicies() (Policies, Policies) {
	writer := Policies{TopicName: "t", TypeName: "T"}
	reader := Policies{TopicName: "t", TypeName: "T"}
	return writer, reader
}

func TestMatchRule1DifferentTopicFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	reader.TopicName = "other"

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, ReasonDifferentTopic, got.ReasonMask)
}

func TestMatchRule1InconsistentTypeNameFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	reader.TypeName = "Other"

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, ReasonInconsistentTopic, got.ReasonMask)
}

func TestMatchRule2BestEffortWriterAgainstReliableReaderFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Reliability = BestEffort
	reader.Reliability = Reliable

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, ReasonIncompatibleQos, got.ReasonMask)
	assert.Equal(t, PolicyReliability, got.LastPolicyID)
}

func TestMatchRule2ReliableWriterAgainstBestEffortReaderSucceeds(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Reliability = Reliable
	reader.Reliability = BestEffort

	assert.True(t, Match(writer, reader).Ok)
}

func TestMatchRule3DurabilityWriterBelowReaderFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Durability = Volatile
	reader.Durability = TransientLocal

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, PolicyDurability, got.LastPolicyID)
}

func TestMatchRule3DurabilityWriterAtOrAboveReaderSucceeds(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Durability = Persistent
	reader.Durability = TransientLocal

	assert.True(t, Match(writer, reader).Ok)
}

func TestMatchRule4DeadlineWriterSlowerThanReaderFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.DeadlinePeriod = 2 * time.Second
	reader.DeadlinePeriod = time.Second

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, PolicyDeadline, got.LastPolicyID)
}

func TestMatchRule4ZeroReaderDeadlineIsAlwaysSatisfied(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.DeadlinePeriod = time.Hour
	reader.DeadlinePeriod = 0

	assert.True(t, Match(writer, reader).Ok)
}

func TestMatchRule5LatencyBudgetWriterAboveReaderFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.LatencyBudget = 2 * time.Second
	reader.LatencyBudget = time.Second

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, PolicyLatencyBudget, got.LastPolicyID)
}

func TestMatchRule6OwnershipKindMismatchFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Ownership = SharedOwnership
	reader.Ownership = ExclusiveOwnership

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, PolicyOwnership, got.LastPolicyID)
}

func TestMatchRule7LivelinessKindBelowReaderFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Liveliness = Automatic
	reader.Liveliness = ManualByTopic

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, PolicyLiveliness, got.LastPolicyID)
}

func TestMatchRule7LivelinessLeaseAboveReaderFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Liveliness = ManualByTopic
	reader.Liveliness = ManualByTopic
	writer.LivelinessLease = 2 * time.Second
	reader.LivelinessLease = time.Second

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, PolicyLiveliness, got.LastPolicyID)
}

func TestMatchRule7ZeroReaderLivelinessLeaseIsAlwaysSatisfied(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.LivelinessLease = time.Hour
	reader.LivelinessLease = 0

	assert.True(t, Match(writer, reader).Ok)
}

func TestMatchRule8DestinationOrderBelowReaderFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.DestinationOrder = ByReceptionTimestamp
	reader.DestinationOrder = BySourceTimestamp

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, PolicyDestinationOrder, got.LastPolicyID)
}

func TestMatchRule9NonIntersectingPartitionsFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Partitions = []string{"a"}
	reader.Partitions = []string{"b"}

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, ReasonPartitions, got.ReasonMask)
}

func TestMatchRule9IntersectingPartitionsSucceeds(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.Partitions = []string{"a", "b"}
	reader.Partitions = []string{"b", "c"}

	assert.True(t, Match(writer, reader).Ok)
}

func TestMatchRule10ExactTypeInformationMismatchFails(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.TypeInformation = []byte("sig-a")
	reader.TypeInformation = []byte("sig-b")
	reader.TypeConsistency = TypeConsistencyExact

	got := Match(writer, reader)

	assert.False(t, got.Ok)
	assert.Equal(t, ReasonDifferentTypeInfo, got.ReasonMask)
}

func TestMatchRule10ExactTypeInformationMatchSucceeds(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.TypeInformation = []byte("sig-a")
	reader.TypeInformation = []byte("sig-a")
	reader.TypeConsistency = TypeConsistencyExact

	assert.True(t, Match(writer, reader).Ok)
}

func TestMatchRule10DeclaredConsistencySkipsByteComparison(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.TypeInformation = []byte("sig-a")
	reader.TypeInformation = []byte("sig-b")
	reader.TypeConsistency = TypeConsistencyDeclared

	assert.True(t, Match(writer, reader).Ok)
}

func TestMatchRule10SkippedWhenEitherSideOmitsTypeInformation(t *testing.T) {
	writer, reader := baseMatchPolicies()
	writer.TypeInformation = nil
	reader.TypeInformation = []byte("sig-b")
	reader.TypeConsistency = TypeConsistencyExact

	assert.True(t, Match(writer, reader).Ok)
}

func TestMatchAllCompatiblePoliciesSucceeds(t *testing.T) {
	writer, reader := baseMatchPolicies()

	got := Match(writer, reader)

	assert.True(t, got.Ok)
	assert.Equal(t, FailureReason(0), got.ReasonMask)
}
