package endpoint

import "github.com/rtps-io/rtps-core/pkg/rtps/types"

// Sender transmits an already-encoded RTPS message to a set of
// destination locators. pkg/rtps/participant owns the locator registry
// and per-destination output channels and supplies the concrete
// implementation; endpoints never open a channel or block on I/O
// themselves (spec.md §5: "endpoints must not perform I/O in their
// receive paths", and sends are snapshotted under the endpoint lock then
// released before emission).
type Sender interface {
	Send(locators []types.Locator, payload []byte)
}
