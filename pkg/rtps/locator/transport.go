// Package locator implements the locator/transport abstraction (C1) and
// the multi-transport send-planning selector (C6) of spec.md §4.5/§6.
package locator

import (
	"context"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// Datagram is one received buffer plus the locator it arrived from.
type Datagram struct {
	Payload []byte
	Source  types.Locator
}

// OnDatagram is the callback a Transport invokes for each received buffer
// on an input channel (spec.md §6 "create_input_channel").
type OnDatagram func(Datagram)

// InputChannel is a bound receive channel; Close releases its resources.
type InputChannel interface {
	Close() error
}

// OutputChannel is a bound send channel for one or more destination
// locators.
type OutputChannel interface {
	// Send transmits buffers to destinations, honouring deadline. It
	// returns false (not an error) on a transport-level failure that the
	// reliability protocol should treat as a dropped best-effort send
	// (spec.md §6, §7 TransportError).
	Send(ctx context.Context, buffers [][]byte, destinations []types.Locator) bool
	Close() error
}

// Transport is the plugin interface described in spec.md §6. The core
// never implements a transport itself; pkg/rtps/transport/udp ships one
// reference implementation so cmd/rtpsd can run end to end.
type Transport interface {
	// CreateInputChannel binds a receive channel on loc; maxMsgSize
	// bounds the largest buffer it will deliver to onDatagram.
	CreateInputChannel(loc types.Locator, maxMsgSize int, onDatagram OnDatagram) (InputChannel, error)
	// CreateOutputChannel opens a send channel addressed at loc.
	CreateOutputChannel(loc types.Locator) (OutputChannel, error)
	// IsLocatorSupported reports whether this transport can send/receive
	// on loc's kind.
	IsLocatorSupported(loc types.Locator) bool
	// NormalizeLocator expands a locator that may stand for several
	// concrete ones (e.g. ANY address) into the list this transport will
	// actually bind.
	NormalizeLocator(loc types.Locator) []types.Locator
	// Shutdown closes every channel opened through this transport and
	// joins its internal goroutines.
	Shutdown() error
}

// Registry holds the set of transports a participant has enabled, in
// registration order.
type Registry struct {
	transports []Transport
}

// NewRegistry builds a Registry over the given transports, in priority
// order (earlier transports are preferred when more than one supports a
// given locator kind).
func NewRegistry(transports ...Transport) *Registry {
	return &Registry{transports: transports}
}

// For returns the first registered transport that supports loc, or nil.
func (r *Registry) For(loc types.Locator) Transport {
	for _, t := range r.transports {
		if t.IsLocatorSupported(loc) {
			return t
		}
	}
	return nil
}

// All returns every registered transport.
func (r *Registry) All() []Transport {
	return r.transports
}

// Shutdown shuts down every registered transport, collecting (not
// stopping at) the first error so all transports get a chance to close.
func (r *Registry) Shutdown() error {
	var first error
	for _, t := range r.transports {
		if err := t.Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
