// Package persistence defines the storage plugin contract for
// TRANSIENT/PERSISTENT durability (spec.md §6, C11). The core never talks
// to a concrete database; it only ever sees the Service interface,
// obtained through a Factory keyed by a plugin name, the same
// property-lookup pattern as PersistenceFactory::create_persistence_service.
// No backend is shipped here — persistence backends are explicitly out of
// scope — only the seam a backend would plug into.
package persistence
