// Package transport delivers report payloads to the statistics server.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"
)

// UDPSender writes each payload as a single datagram to a fixed destination.
// The socket is unconnected and bound once to an ephemeral local port, so
// the destination may be down or absent without affecting later sends.
type UDPSender struct {
	dest netip.AddrPort

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool
}

// NewUDPSender binds a local socket of the destination's address family.
func NewUDPSender(dest netip.AddrPort) (*UDPSender, error) {
	if !dest.IsValid() {
		return nil, fmt.Errorf("invalid destination %q", dest)
	}

	network, laddr := "udp4", &net.UDPAddr{IP: net.IPv4zero}
	if dest.Addr().Unmap().Is6() {
		network, laddr = "udp6", &net.UDPAddr{IP: net.IPv6unspecified}
	}

	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, fmt.Errorf("bind local socket: %w", err)
	}
	return &UDPSender{dest: dest, conn: conn}, nil
}

// Destination returns where payloads are sent.
func (s *UDPSender) Destination() netip.AddrPort {
	return s.dest
}

// Send writes payload as one datagram. A deadline on ctx bounds the write.
// Errors are returned as *SendError.
func (s *UDPSender) Send(ctx context.Context, payload []byte) error {
	dest := s.dest.String()
	if err := ctx.Err(); err != nil {
		return MapError(err, dest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return MapError(ErrClosed, dest)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return MapError(err, dest)
		}
		defer s.conn.SetWriteDeadline(time.Time{})
	}

	to := netip.AddrPortFrom(s.dest.Addr().Unmap(), s.dest.Port())
	n, err := s.conn.WriteToUDPAddrPort(payload, to)
	if err != nil {
		return MapError(err, dest)
	}
	if n != len(payload) {
		return MapError(fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(payload)), dest)
	}
	return nil
}

// Close releases the socket. Further sends fail with ErrClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
