package types

import "time"

// ChangeKind is the kind of a CacheChange (spec.md §3).
type ChangeKind int

const (
	ChangeKindAlive ChangeKind = iota
	ChangeKindNotAliveDisposed
	ChangeKindNotAliveUnregistered
	ChangeKindNotAliveDisposedUnregistered
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeKindAlive:
		return "ALIVE"
	case ChangeKindNotAliveDisposed:
		return "NOT_ALIVE_DISPOSED"
	case ChangeKindNotAliveUnregistered:
		return "NOT_ALIVE_UNREGISTERED"
	case ChangeKindNotAliveDisposedUnregistered:
		return "NOT_ALIVE_DISPOSED_UNREGISTERED"
	default:
		return "UNKNOWN"
	}
}

// InstanceHandleSize is the fixed width of a keyed instance handle.
const InstanceHandleSize = 16

// InstanceHandle identifies a keyed topic instance. It is derived
// deterministically from the key fields of a sample by the type adapter's
// ComputeKey callback (spec.md §3, §9).
type InstanceHandle [InstanceHandleSize]byte

// InstanceHandleNil is the unkeyed / "no instance" sentinel.
var InstanceHandleNil = InstanceHandle{}

// SampleIdentity names a specific sample by its writer and sequence number,
// used in WriteParams for request/reply correlation.
type SampleIdentity struct {
	WriterGUID     GUID
	SequenceNumber SequenceNumber
}

// WriteParams carries the per-change metadata supplied at add_change time
// (spec.md §3: "write params").
type WriteParams struct {
	SourceTimestamp        time.Time
	SampleIdentity         SampleIdentity
	RelatedSampleIdentity  SampleIdentity
}

// FragmentationState tracks reassembly/fragmentation bookkeeping for a
// change whose payload exceeds a single DATA submessage (spec.md §3, §4.1:
// "fragments tracked as an intrusive linked list embedded in the payload
// buffer" — here represented as a flat bitset, which gives the same O(k)
// update cost without unsafe pointer arithmetic).
type FragmentationState struct {
	FragmentSize         uint32
	FragmentCount        uint32
	ReceivedFragments    []bool // index 0 == fragment number 1
	FirstMissingFragment FragmentNumber
}

// NewFragmentationState lays out per-fragment bookkeeping for a payload of
// totalSize split into fragments of fragmentSize bytes (spec.md §4.1
// set_fragments).
func NewFragmentationState(totalSize, fragmentSize uint32) FragmentationState {
	count := totalSize / fragmentSize
	if totalSize%fragmentSize != 0 {
		count++
	}
	return FragmentationState{
		FragmentSize:         fragmentSize,
		FragmentCount:        count,
		ReceivedFragments:    make([]bool, count),
		FirstMissingFragment: FragmentNumberBase,
	}
}

// MarkReceived records fragment fn as received and advances
// FirstMissingFragment in O(k) amortized — it only scans forward from the
// previous first-missing mark, never the whole fragment_count, satisfying
// spec.md §4.1's complexity requirement.
func (f *FragmentationState) MarkReceived(fn FragmentNumber) {
	idx := int(fn) - 1
	if idx < 0 || idx >= len(f.ReceivedFragments) {
		return
	}
	if f.ReceivedFragments[idx] {
		return // duplicate fragment: idempotent, per spec.md §8
	}
	f.ReceivedFragments[idx] = true
	if fn == f.FirstMissingFragment {
		for int(f.FirstMissingFragment)-1 < len(f.ReceivedFragments) &&
			f.ReceivedFragments[int(f.FirstMissingFragment)-1] {
			f.FirstMissingFragment++
		}
	}
}

// Complete reports whether every fragment has been received.
func (f *FragmentationState) Complete() bool {
	return int(f.FirstMissingFragment)-1 >= len(f.ReceivedFragments)
}

// MissingFragments returns the ascending list of fragment numbers not yet
// received.
func (f *FragmentationState) MissingFragments() []FragmentNumber {
	var out []FragmentNumber
	for i, got := range f.ReceivedFragments {
		if !got {
			out = append(out, FragmentNumber(i+1))
		}
	}
	return out
}

// CacheChange is the unit of replication (spec.md §3).
type CacheChange struct {
	Kind           ChangeKind
	WriterGUID     GUID
	SequenceNumber SequenceNumber
	InstanceHandle InstanceHandle

	Payload []byte

	SourceTimestamp    time.Time
	ReceptionTimestamp time.Time // reader-side only

	WriteParams WriteParams

	Fragmented bool
	Fragments  FragmentationState

	IsRead bool // reader-side only

	// poolSlot is the arena slot this change was allocated from; 0 means
	// not pool-backed (e.g. a change built for a unit test). See
	// pkg/rtps/history for the pool implementation.
	poolSlot      uint32
	poolRefCount  int32
}

// SetPoolSlot / PoolSlot are used by pkg/rtps/history's pool to track
// which arena slot a change was allocated from, without the history
// package needing to reach into unexported fields via reflection.
func (c *CacheChange) SetPoolSlot(slot uint32) { c.poolSlot = slot }
func (c *CacheChange) PoolSlot() uint32        { return c.poolSlot }

// AddRef / Release implement the reference count described in spec.md §3
// ("CacheChanges referenced by multiple ReaderProxies share the same
// underlying payload buffer; the last releasing ReaderProxy returns it to
// the pool"). Release reports whether this was the last reference.
func (c *CacheChange) AddRef() { c.poolRefCount++ }
func (c *CacheChange) Release() (last bool) {
	c.poolRefCount--
	return c.poolRefCount <= 0
}
func (c *CacheChange) RefCount() int32 { return c.poolRefCount }
