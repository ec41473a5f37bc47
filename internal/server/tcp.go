package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// runTCP is the accept loop. Each accepted connection gets its own goroutine
// and its own frame assembler; sessions share no state. Accept failures are
// logged and looped past, except when the listening socket itself was closed
// by cancellation, which ends the loop.
func (s *Server) runTCP(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	var sessions sync.WaitGroup
	defer sessions.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				s.logger.Debug("TCP accept loop stopping")
				return
			}
			s.logger.Warn("failed to accept TCP connection", slog.String("error", err.Error()))
			continue
		}

		sessions.Add(1)
		go func() {
			defer sessions.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn runs one TCP session: read with a per-read deadline, reassemble
// frames, dispatch each in stream order. The session ends on EOF, timeout,
// size violation, socket error or cancellation, and always closes its socket
// on exit.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sess := s.sessions.add(conn)
	s.stats.sessionsAccepted.Add(1)
	s.metrics.RecordSessionOpened()
	defer func() {
		s.sessions.remove(sess.id)
		s.metrics.RecordSessionClosed(time.Since(sess.startedAt).Seconds())
	}()

	logger := s.logger.With(
		slog.String("session_id", sess.id),
		slog.String("remote_addr", sess.remoteAddr),
	)
	logger.Debug("TCP session started")

	assembler := NewFrameAssembler(s.cfg.MaxMessageSize)
	buf := make([]byte, s.cfg.MaxMessageSize)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("TCP session stopping due to cancellation")
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.GetReadTimeout())); err != nil {
			logger.Warn("failed to set read deadline", slog.String("error", err.Error()))
			return
		}

		n, err := conn.Read(buf)
		if n > 0 {
			frames, ferr := assembler.Push(buf[:n])
			for _, frame := range frames {
				if ctx.Err() != nil {
					return
				}
				sess.frames.Add(1)
				s.dispatch(ctx, logger, protocolTCP, sess.remoteAddr, frame)
			}
			if ferr != nil {
				// Protocol violation: abort without dispatching the
				// accumulated partial content.
				s.stats.oversizedMessages.Add(1)
				s.metrics.RecordOversizedMessage(protocolTCP)
				logger.Warn("message exceeds size limit, closing connection",
					slog.Int("max_message_size", s.cfg.MaxMessageSize),
					slog.Int("buffered", assembler.Pending()),
				)
				return
			}
		}

		if err != nil {
			// EOF, timeout and socket errors all terminate a TCP session.
			// The leftover buffer is dispatched once as a final message,
			// unless the session is being cancelled.
			if ctx.Err() != nil {
				return
			}
			if leftover, ok := assembler.Flush(); ok {
				sess.frames.Add(1)
				s.dispatch(ctx, logger, protocolTCP, sess.remoteAddr, leftover)
			}
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("TCP session ended, peer closed connection")
			case isTimeout(err):
				logger.Debug("TCP session ended, read timed out")
			case errors.Is(err, net.ErrClosed):
				logger.Debug("TCP session ended, socket closed")
			default:
				logger.Warn("TCP read failed", slog.String("error", err.Error()))
			}
			return
		}
	}
}
