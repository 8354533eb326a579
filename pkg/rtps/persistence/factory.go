package persistence

import (
	"fmt"
	"sync"
)

// pluginProperty is the property key a Factory looks up to choose a
// backend, matching PersistenceFactory's "dds.persistence.plugin".
const pluginProperty = "dds.persistence.plugin"

// Builder constructs a Service from the same opaque property map a
// PropertyPolicy carries on the wire (spec.md §6: config is a flat string
// map, not a typed struct, so a plugin can define its own keys).
type Builder func(properties map[string]string) (Service, error)

// Factory selects a persistence backend by name at participant
// construction time, the same indirection PersistenceFactory.cpp performs
// by reading "dds.persistence.plugin" out of a PropertyPolicy. No builder
// is registered by default; a participant configured without persistence
// properties gets no Service at all (Create returns nil, nil).
type Factory struct {
	mu       sync.Mutex
	builders map[string]Builder
}

// NewFactory returns a Factory with no backends registered.
func NewFactory() *Factory {
	return &Factory{builders: make(map[string]Builder)}
}

// Register adds (or replaces) the builder for a named plugin, e.g.
// "builtin.SQLITE3". Call this from an init() in a backend package that
// imports persistence, never from this package itself.
func (f *Factory) Register(name string, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[name] = b
}

// Create builds the Service named by properties[pluginProperty]. Absence
// of that property means "no persistence configured" and is not an
// error. An unregistered plugin name is.
func (f *Factory) Create(properties map[string]string) (Service, error) {
	name := properties[pluginProperty]
	if name == "" {
		return nil, nil
	}
	f.mu.Lock()
	b, ok := f.builders[name]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("persistence: unregistered plugin %q", name)
	}
	return b(properties)
}
