// Package udp is the reference UDPv4 Transport: plain unicast sockets via
// net.ListenUDP, multicast group membership via golang.org/x/net/ipv4, so
// cmd/rtpsd has a concrete transport to run against. pkg/rtps/locator and
// every package above it only ever see the locator.Transport interface;
// nothing in pkg/rtps imports this package.
package udp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/rtps-io/rtps-core/pkg/rtps/locator"
	"github.com/rtps-io/rtps-core/pkg/rtps/rtpserrors"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// Transport is a locator.Transport over UDPv4 sockets.
type Transport struct {
	log *logrus.Entry

	mu       sync.Mutex
	channels []io.Closer
}

// New builds a UDPv4 Transport logging through log.
func New(log *logrus.Entry) *Transport {
	return &Transport{log: log}
}

// IsLocatorSupported reports whether loc is a UDPv4 locator.
func (t *Transport) IsLocatorSupported(loc types.Locator) bool {
	return loc.Kind == types.LocatorKindUDPv4
}

// NormalizeLocator expands an ANY-address UDPv4 locator into one concrete
// locator per non-loopback IPv4 interface address; a locator that already
// names a concrete address is returned unchanged.
func (t *Transport) NormalizeLocator(loc types.Locator) []types.Locator {
	if loc.Kind != types.LocatorKindUDPv4 {
		return nil
	}
	if ip := loc.IP(); ip != nil && !ip.IsUnspecified() {
		return []types.Locator{loc}
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		t.log.WithError(err).Warn("failed to enumerate interface addresses")
		return []types.Locator{loc}
	}
	var out []types.Locator
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4.IsLoopback() {
			continue
		}
		out = append(out, types.Locator{Kind: types.LocatorKindUDPv4, Port: loc.Port, Address: addressFromIPv4(ip4)})
	}
	if len(out) == 0 {
		return []types.Locator{loc}
	}
	return out
}

func addressFromIPv4(ip4 net.IP) [types.LocatorAddressSize]byte {
	var addr [types.LocatorAddressSize]byte
	copy(addr[12:], ip4)
	return addr
}

// CreateInputChannel binds loc and delivers every received datagram up to
// maxMsgSize to onDatagram from a dedicated read goroutine, joining loc's
// multicast group via ipv4.PacketConn when loc is a multicast address
// (spec.md §6 "create_input_channel").
func (t *Transport) CreateInputChannel(loc types.Locator, maxMsgSize int, onDatagram locator.OnDatagram) (locator.InputChannel, error) {
	if !t.IsLocatorSupported(loc) {
		return nil, &rtpserrors.TransportError{Locator: loc.String(), Err: fmt.Errorf("udp transport does not support locator kind %d", loc.Kind)}
	}

	udpAddr := &net.UDPAddr{Port: int(loc.Port)}
	if loc.IsMulticast() {
		udpAddr.IP = net.IPv4zero
	} else {
		udpAddr.IP = loc.IP()
	}

	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, &rtpserrors.TransportError{Locator: loc.String(), Err: err}
	}

	var pc *ipv4.PacketConn
	if loc.IsMulticast() {
		pc = ipv4.NewPacketConn(conn)
		group := &net.UDPAddr{IP: loc.IP()}
		if err := pc.JoinGroup(nil, group); err != nil {
			conn.Close()
			return nil, &rtpserrors.TransportError{Locator: loc.String(), Err: fmt.Errorf("join multicast group: %w", err)}
		}
	}

	ch := &inputChannel{conn: conn, pc: pc}
	go ch.readLoop(maxMsgSize, onDatagram, t.log.WithField("locator", loc.String()))

	t.mu.Lock()
	t.channels = append(t.channels, ch)
	t.mu.Unlock()
	return ch, nil
}

// CreateOutputChannel opens an unconnected UDPv4 socket for sending to
// whatever destinations Send is called with.
func (t *Transport) CreateOutputChannel(loc types.Locator) (locator.OutputChannel, error) {
	if !t.IsLocatorSupported(loc) {
		return nil, &rtpserrors.TransportError{Locator: loc.String(), Err: fmt.Errorf("udp transport does not support locator kind %d", loc.Kind)}
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, &rtpserrors.TransportError{Locator: loc.String(), Err: err}
	}
	ch := &outputChannel{conn: conn, log: t.log}

	t.mu.Lock()
	t.channels = append(t.channels, ch)
	t.mu.Unlock()
	return ch, nil
}

// Shutdown closes every channel this transport has opened.
func (t *Transport) Shutdown() error {
	t.mu.Lock()
	channels := t.channels
	t.channels = nil
	t.mu.Unlock()

	var first error
	for _, ch := range channels {
		if err := ch.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type inputChannel struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn
}

func (c *inputChannel) readLoop(maxMsgSize int, onDatagram locator.OnDatagram, log *logrus.Entry) {
	buf := make([]byte, maxMsgSize)
	for {
		n, src, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if !isClosedConnError(err) {
				log.WithError(err).Debug("udp read failed")
			}
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		onDatagram(locator.Datagram{Payload: payload, Source: types.LocatorFromUDPAddr(src)})
	}
}

func (c *inputChannel) Close() error {
	return c.conn.Close()
}

type outputChannel struct {
	conn *net.UDPConn
	log  *logrus.Entry
}

// Send writes buffers to every destination, returning false (not an
// error) the first time a write fails, per locator.OutputChannel's
// contract that transport failures degrade to a dropped best-effort send.
func (c *outputChannel) Send(ctx context.Context, buffers [][]byte, destinations []types.Locator) bool {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	for _, dest := range destinations {
		addr := &net.UDPAddr{IP: dest.IP(), Port: int(dest.Port)}
		for _, b := range buffers {
			if _, err := c.conn.WriteToUDP(b, addr); err != nil {
				c.log.WithError(err).WithField("destination", dest.String()).Debug("udp send failed")
				return false
			}
		}
	}
	return true
}

func (c *outputChannel) Close() error {
	return c.conn.Close()
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
