package participant

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rtps-io/rtps-core/pkg/rtps/locator"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// transportSender is the concrete endpoint.Sender every local endpoint is
// built with: it groups destinations by the transport that serves their
// locator kind, opens one output channel per transport lazily and caches
// it, and fans a single payload out to every destination through that
// channel (spec.md §5: "no lock held across transport send; send buffers
// are snapshotted under the lock, then released before emission" — the
// snapshotting itself happens in the caller, endpoint.StatefulWriter et
// al.; this type only owns the channel cache mutex, never an endpoint
// lock).
type transportSender struct {
	registry *locator.Registry
	log      *logrus.Entry

	mu       sync.Mutex
	channels map[locator.Transport]locator.OutputChannel
}

func newTransportSender(registry *locator.Registry, log *logrus.Entry) *transportSender {
	return &transportSender{
		registry: registry,
		log:      log,
		channels: make(map[locator.Transport]locator.OutputChannel),
	}
}

// Send implements endpoint.Sender. A destination whose kind has no
// registered transport is silently skipped — the same "unknown entity ids
// are silently ignored" tolerance spec.md §4.9 applies to demux applies
// here to unreachable locators.
func (s *transportSender) Send(locators []types.Locator, payload []byte) {
	byTransport := make(map[locator.Transport][]types.Locator)
	for _, loc := range locators {
		t := s.registry.For(loc)
		if t == nil {
			s.log.WithField("locator", loc.String()).Debug("no transport registered for locator, dropping send")
			continue
		}
		byTransport[t] = append(byTransport[t], loc)
	}

	for t, dests := range byTransport {
		ch, err := s.channelFor(t, dests[0])
		if err != nil {
			s.log.WithError(err).Warn("failed to open output channel")
			continue
		}
		ch.Send(context.Background(), [][]byte{payload}, dests)
	}
}

func (s *transportSender) channelFor(t locator.Transport, sample types.Locator) (locator.OutputChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[t]; ok {
		return ch, nil
	}
	ch, err := t.CreateOutputChannel(sample)
	if err != nil {
		return nil, err
	}
	s.channels[t] = ch
	return ch, nil
}

// Close shuts down every output channel this sender opened.
func (s *transportSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.channels {
		_ = ch.Close()
	}
	s.channels = make(map[locator.Transport]locator.OutputChannel)
}
