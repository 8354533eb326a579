package proxy

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// ChangeForReaderStatus is the delivery status of one change with respect
// to one matched reader (spec.md §3, RTPS 2.3 §8.4.9.1).
type ChangeForReaderStatus int

const (
	StatusUnsent ChangeForReaderStatus = iota
	StatusUnacknowledged
	StatusRequested
	StatusAcknowledged
	StatusUnderway
)

func (s ChangeForReaderStatus) String() string {
	switch s {
	case StatusUnsent:
		return "UNSENT"
	case StatusUnacknowledged:
		return "UNACKNOWLEDGED"
	case StatusRequested:
		return "REQUESTED"
	case StatusAcknowledged:
		return "ACKNOWLEDGED"
	case StatusUnderway:
		return "UNDERWAY"
	default:
		return "UNKNOWN"
	}
}

// ChangeForReader tracks one change's delivery state to one matched reader.
// It references the change by history.Handle rather than by pointer, so a
// ReaderProxy never extends a CacheChange's lifetime on its own — the
// owning WriterHistory decides when a change is actually freed.
type ChangeForReader struct {
	SequenceNumber types.SequenceNumber
	Handle         history.Handle
	Status         ChangeForReaderStatus
	// IsRelevant is false for changes the reader must be told about via
	// GAP rather than DATA — e.g. a change removed from history before
	// this reader ever saw it (spec.md §4.3).
	IsRelevant bool
}
