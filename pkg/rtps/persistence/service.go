package persistence

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// Service is the storage contract a TRANSIENT/PERSISTENT writer or reader
// is built against (spec.md §6). It mirrors IPersistenceService one to
// one: a writer's side loads and mutates its own change log keyed by a
// caller-chosen persistence GUID string; a reader's side tracks, per
// matched writer, the highest sequence number already delivered, so a
// restart does not redeliver it.
type Service interface {
	// LoadWriterChanges returns every change durably stored for writer,
	// in the order they should be replayed.
	LoadWriterChanges(persistenceGUID string, writer types.GUID) ([]*types.CacheChange, error)

	// AddWriterChange durably records c against persistenceGUID.
	AddWriterChange(persistenceGUID string, c *types.CacheChange) error

	// RemoveWriterChange durably forgets sn from writer's log.
	RemoveWriterChange(persistenceGUID string, writer types.GUID, sn types.SequenceNumber) error

	// LoadReaderState returns, for persistenceGUID, the last sequence
	// number already delivered from each matched writer.
	LoadReaderState(persistenceGUID string) (map[types.GUID]types.SequenceNumber, error)

	// UpdateWriterSeqOnStorage records that everything up to and
	// including sn from writer has now been delivered to persistenceGUID.
	UpdateWriterSeqOnStorage(persistenceGUID string, writer types.GUID, sn types.SequenceNumber) error

	// Close releases any resources (file handles, connections) the
	// service holds.
	Close() error
}
