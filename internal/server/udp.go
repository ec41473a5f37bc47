package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"
)

// runUDP is the single receive loop for the UDP socket. Each datagram is one
// complete message; no framing is needed. Datagrams are parsed and dispatched
// serially in receipt order, with the dispatch awaited before the next
// receive begins.
//
// A read timeout ends only that one receive and the loop continues. A
// transport fault or an oversized datagram terminates the entire loop: the
// socket is not per-sender, so there is no smaller unit to isolate.
func (s *Server) runUDP(ctx context.Context, conn *net.UDPConn) {
	defer s.wg.Done()

	logger := s.logger.With(slog.String("protocol", protocolUDP))

	// One extra byte so datagrams larger than the limit are detectable.
	buf := make([]byte, s.cfg.MaxMessageSize+1)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("UDP receive loop stopping due to cancellation")
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.GetReadTimeout())); err != nil {
			logger.Warn("failed to set read deadline", slog.String("error", err.Error()))
			return
		}

		n, remoteAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("UDP read failed, stopping UDP listener", slog.String("error", err.Error()))
			return
		}

		if n > s.cfg.MaxMessageSize {
			s.stats.oversizedMessages.Add(1)
			s.metrics.RecordOversizedMessage(protocolUDP)
			logger.Error("datagram exceeds size limit, stopping UDP listener",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("datagram_size", n),
				slog.Int("max_message_size", s.cfg.MaxMessageSize),
			)
			return
		}

		if n == 0 {
			continue
		}

		if ctx.Err() != nil {
			return
		}
		s.dispatch(ctx, logger, protocolUDP, remoteAddr.String(), trimDatagram(buf[:n]))
	}
}

// trimDatagram strips one trailing newline (and optional carriage return)
// from a datagram; each datagram carries exactly one line.
func trimDatagram(b []byte) string {
	if len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return string(trimCR(b))
}
