// Package sink is a minimal statistics server: it listens for report
// datagrams, decodes them, and hands each snapshot to a handler.
package sink

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/bc-dunia/hoststat/internal/events"
	"github.com/bc-dunia/hoststat/internal/probe"
	"github.com/bc-dunia/hoststat/internal/wire"
)

// maxDatagramSize bounds a single read; reports are far smaller.
const maxDatagramSize = 2048

// Config configures the sink.
type Config struct {
	Addr string
}

func DefaultConfig() *Config {
	return &Config{Addr: "127.0.0.1:8125"}
}

// Handler receives every decoded report.
type Handler func(from netip.AddrPort, snap probe.Snapshot)

// Server receives reports until stopped.
type Server struct {
	cfg     *Config
	logger  *events.EventLogger
	handler Handler

	conn *net.UDPConn
	addr string
	wg   sync.WaitGroup

	received  atomic.Int64
	malformed atomic.Int64
}

// New creates a sink. A nil handler only logs; a nil logger logs nothing.
func New(cfg *Config, logger *events.EventLogger, handler Handler) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = events.NoopEventLogger()
	}
	return &Server{cfg: cfg, logger: logger, handler: handler}
}

// Start binds the socket and begins receiving in the background.
func (s *Server) Start() error {
	laddr, err := net.ResolveUDPAddr("udp", normalizeAddr(s.cfg.Addr))
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.addr = conn.LocalAddr().String()
	s.logger.LogSinkListening(s.addr)

	s.wg.Add(1)
	go s.serve()
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		snap, err := wire.Decode(buf[:n])
		if err != nil {
			s.malformed.Add(1)
			s.logger.LogMalformedReport(from, err)
			continue
		}

		s.received.Add(1)
		s.logger.LogReportReceived(from, snap.MemoryUsedBytes, snap.DiskUsedMegabytes, snap.HardwareAddr)
		if s.handler != nil {
			s.handler(from, snap)
		}
	}
}

// Stop closes the socket and waits for the receive loop to exit or ctx to
// expire.
func (s *Server) Stop(ctx context.Context) {
	if s.conn == nil {
		return
	}
	_ = s.conn.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() string {
	return s.addr
}

// Received returns the number of decoded reports.
func (s *Server) Received() int64 {
	return s.received.Load()
}

// Malformed returns the number of datagrams that failed to decode.
func (s *Server) Malformed() int64 {
	return s.malformed.Load()
}

func normalizeAddr(addr string) string {
	if addr == "" {
		return "127.0.0.1:0"
	}
	if addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}
