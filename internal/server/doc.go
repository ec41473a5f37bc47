// Package server implements the TCP and UDP listeners for receiving syslog messages.
// It handles newline framing of TCP byte streams, concurrent per-connection sessions,
// lifecycle orchestration with cooperative cancellation, and monitoring endpoints.
//
// Fault isolation is asymmetric on purpose: a transport or size fault on a
// TCP connection ends only that session, while the same fault on the single
// UDP socket terminates the entire UDP receive loop.
package server
