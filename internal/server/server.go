package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IDNT/AppBasics-Network-Protocol-Syslog/internal/config"
	"github.com/IDNT/AppBasics-Network-Protocol-Syslog/internal/metrics"
	"github.com/IDNT/AppBasics-Network-Protocol-Syslog/internal/syslog"
)

// Handler receives each successfully framed and decoded message. It is
// invoked synchronously from the receiving loop: its latency directly
// throttles intake on that session or the UDP socket, which is the only
// backpressure mechanism. Handlers are called concurrently from independent
// sessions and must be safe under concurrent invocation if they touch shared
// state. Transport and protocol faults never reach the handler.
type Handler func(ctx context.Context, msg *syslog.Message) error

// Control-path errors.
var (
	ErrServerClosed        = errors.New("syslog server is closed")
	ErrAlreadyRunning      = errors.New("syslog server is already running")
	ErrNotConfigured       = errors.New("no tcp or udp port configured")
	ErrNilHandler          = errors.New("handler must not be nil")
	ErrOperationInProgress = errors.New("another start or stop operation is in progress")
)

// Protocol label values used in logs and metrics.
const (
	protocolTCP = "tcp"
	protocolUDP = "udp"
)

// Server listens for syslog messages over TCP and UDP and hands decoded
// messages to a Handler. The TCP accept loop, the UDP receive loop and every
// accepted TCP connection run as independent goroutines; there is no bound on
// connection fan-out. Messages from a single TCP connection are dispatched in
// stream order and datagrams in receipt order, with no ordering guarantee
// across sessions or between protocols.
type Server struct {
	cfg     *config.ServerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// ctrl serializes Start/Stop/Close: a control call made while another is
	// in flight fails immediately instead of blocking.
	ctrl   atomic.Bool
	closed atomic.Bool

	closeOnce sync.Once

	// Mutated only while ctrl is held.
	running bool
	handler Handler
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	tcpLn   net.Listener
	udpConn *net.UDPConn

	sessions *sessionRegistry
	stats    serverStats
}

// serverStats mirrors the Prometheus counters for the monitoring endpoints.
type serverStats struct {
	messagesReceived   atomic.Uint64
	messagesDispatched atomic.Uint64
	parseErrors        atomic.Uint64
	oversizedMessages  atomic.Uint64
	sessionsAccepted   atomic.Uint64
}

// Statistics is a point-in-time view of the server counters.
type Statistics struct {
	MessagesReceived   uint64 `json:"messages_received"`
	MessagesDispatched uint64 `json:"messages_dispatched"`
	ParseErrors        uint64 `json:"parse_errors"`
	OversizedMessages  uint64 `json:"oversized_messages"`
	SessionsAccepted   uint64 `json:"sessions_accepted"`
	ActiveSessions     int    `json:"active_sessions"`
}

// New creates a syslog server from a validated configuration.
func New(cfg *config.ServerConfig, logger *slog.Logger, m *metrics.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		sessions: newSessionRegistry(),
	}
}

// Start binds the configured listeners and spawns one receive loop per
// enabled protocol, then returns; listening proceeds in the background. The
// loops stop when ctx is cancelled or Stop is called. Start fails after
// Close, while already running, or while another control operation is in
// flight.
func (s *Server) Start(ctx context.Context, handler Handler) error {
	if !s.ctrl.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	defer s.ctrl.Store(false)

	if s.closed.Load() {
		return ErrServerClosed
	}
	if s.running {
		return ErrAlreadyRunning
	}
	if handler == nil {
		return ErrNilHandler
	}
	if s.cfg.TCPPort == 0 && s.cfg.UDPPort == 0 {
		return ErrNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)

	if s.cfg.TCPPort > 0 {
		ln, err := net.Listen("tcp", s.addr(s.cfg.TCPPort))
		if err != nil {
			cancel()
			return fmt.Errorf("failed to listen on TCP: %w", err)
		}
		s.tcpLn = ln
	}

	if s.cfg.UDPPort > 0 {
		addr, err := net.ResolveUDPAddr("udp", s.addr(s.cfg.UDPPort))
		if err != nil {
			cancel()
			s.closeSockets()
			s.tcpLn = nil
			return fmt.Errorf("failed to resolve UDP address: %w", err)
		}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			cancel()
			s.closeSockets()
			s.tcpLn = nil
			return fmt.Errorf("failed to listen on UDP: %w", err)
		}
		s.udpConn = conn
	}

	s.handler = handler
	s.cancel = cancel
	s.running = true

	// Closing the sockets on cancellation is the primary mechanism for
	// unblocking in-flight accepts and reads.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-runCtx.Done()
		s.closeSockets()
		s.sessions.closeAll()
	}()

	if s.tcpLn != nil {
		s.logger.Info("TCP listener started",
			slog.String("address", s.tcpLn.Addr().String()),
			slog.Int("backlog", s.cfg.ListenBacklog),
		)
		s.wg.Add(1)
		go s.runTCP(runCtx, s.tcpLn)
	}

	if s.udpConn != nil {
		s.logger.Info("UDP listener started",
			slog.String("address", s.udpConn.LocalAddr().String()),
		)
		s.wg.Add(1)
		go s.runUDP(runCtx, s.udpConn)
	}

	return nil
}

// Stop signals cancellation and blocks until every listener task has
// finished. Cancellation-induced faults are swallowed. Stop is idempotent:
// calling it on a server that was never started, or twice, is a no-op.
func (s *Server) Stop() error {
	if !s.ctrl.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	defer s.ctrl.Store(false)

	if !s.running {
		return nil
	}

	s.logger.Info("stopping syslog server")
	s.cancel()
	s.wg.Wait()

	s.tcpLn = nil
	s.udpConn = nil
	s.cancel = nil
	s.handler = nil
	s.running = false

	stats := s.Statistics()
	s.logger.Info("syslog server stopped",
		slog.Uint64("messages_received", stats.MessagesReceived),
		slog.Uint64("messages_dispatched", stats.MessagesDispatched),
		slog.Uint64("parse_errors", stats.ParseErrors),
		slog.Uint64("oversized_messages", stats.OversizedMessages),
	)

	return nil
}

// Close stops the server and prevents any further Start. Repeated Close
// calls are no-ops.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// Another Start or Stop may hold the control flag. Wait it out
		// instead of failing so a closed server is never left running.
		for {
			err = s.Stop()
			if !errors.Is(err, ErrOperationInProgress) {
				return
			}
			time.Sleep(time.Millisecond)
		}
	})
	return err
}

// TCPAddr returns the bound TCP listener address, or nil when TCP is
// disabled or the server is stopped.
func (s *Server) TCPAddr() net.Addr {
	if s.tcpLn == nil {
		return nil
	}
	return s.tcpLn.Addr()
}

// UDPAddr returns the bound UDP socket address, or nil when UDP is disabled
// or the server is stopped.
func (s *Server) UDPAddr() net.Addr {
	if s.udpConn == nil {
		return nil
	}
	return s.udpConn.LocalAddr()
}

// Statistics returns current server counters.
func (s *Server) Statistics() Statistics {
	return Statistics{
		MessagesReceived:   s.stats.messagesReceived.Load(),
		MessagesDispatched: s.stats.messagesDispatched.Load(),
		ParseErrors:        s.stats.parseErrors.Load(),
		OversizedMessages:  s.stats.oversizedMessages.Load(),
		SessionsAccepted:   s.stats.sessionsAccepted.Load(),
		ActiveSessions:     s.sessions.count(),
	}
}

// Sessions returns a snapshot of the open TCP sessions.
func (s *Server) Sessions() []SessionInfo {
	return s.sessions.snapshot()
}

func (s *Server) addr(port int) string {
	return net.JoinHostPort(s.cfg.ListenAddress, strconv.Itoa(port))
}

func (s *Server) closeSockets() {
	if s.tcpLn != nil {
		if err := s.tcpLn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("error closing TCP listener", slog.String("error", err.Error()))
		}
	}
	if s.udpConn != nil {
		if err := s.udpConn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("error closing UDP socket", slog.String("error", err.Error()))
		}
	}
}

// dispatch decodes one framed message text and hands it to the handler.
// Grammar mismatches are recovered locally: they surface as a diagnostic log
// line and a counter, never as an error to the caller.
func (s *Server) dispatch(ctx context.Context, logger *slog.Logger, protocol, remoteAddr, raw string) {
	s.stats.messagesReceived.Add(1)
	s.metrics.RecordMessageReceived(protocol)

	msg, ok := syslog.TryParse(remoteAddr, raw)
	if !ok {
		s.stats.parseErrors.Add(1)
		s.metrics.RecordParseError(protocol)
		logger.Warn("discarding unparsable message", slog.String("raw", raw))
		return
	}

	start := time.Now()
	if err := s.handler(ctx, msg); err != nil {
		logger.Error("message handler failed", slog.String("error", err.Error()))
	}

	s.stats.messagesDispatched.Add(1)
	s.metrics.RecordMessageDispatched(protocol, time.Since(start).Seconds())
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
