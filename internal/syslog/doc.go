// Package syslog implements parsing and rendering of RFC 5424-style messages.
// It provides a tolerant line parser that recovers priority, version,
// timestamp, header fields, structured data and free-text content, and a
// best-effort canonical renderer for outbound representation.
package syslog
