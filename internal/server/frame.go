package server

import (
	"bytes"
	"errors"
)

// ErrFrameTooLarge reports an unterminated frame growing past the configured
// maximum message size.
var ErrFrameTooLarge = errors.New("frame exceeds maximum message size")

// frameDelimiter separates messages within a TCP byte stream.
const frameDelimiter = '\n'

// FrameAssembler reassembles delimited messages out of a TCP byte stream.
// TCP delivers no message boundaries, so received bytes accumulate in a
// per-connection buffer until a delimiter arrives. Each assembler is owned
// exclusively by one session and is not safe for concurrent use.
type FrameAssembler struct {
	buf     bytes.Buffer
	maxSize int
}

// NewFrameAssembler returns an assembler enforcing maxSize on unterminated
// accumulation.
func NewFrameAssembler(maxSize int) *FrameAssembler {
	return &FrameAssembler{maxSize: maxSize}
}

// Push appends received bytes and returns every complete frame now available,
// in stream order, with the delimiter (and an optional carriage return before
// it) stripped. After all complete frames are drained, a leftover buffer
// still lacking a delimiter and exceeding the maximum size is a protocol
// violation: Push returns the frames extracted so far together with
// ErrFrameTooLarge, and the caller must abort the session without dispatching
// the partial content.
func (a *FrameAssembler) Push(p []byte) ([]string, error) {
	a.buf.Write(p)

	var frames []string
	for {
		b := a.buf.Bytes()
		i := bytes.IndexByte(b, frameDelimiter)
		if i < 0 {
			break
		}
		frames = append(frames, string(trimCR(b[:i])))
		a.buf.Next(i + 1)
	}

	if a.buf.Len() > a.maxSize {
		return frames, ErrFrameTooLarge
	}
	return frames, nil
}

// Flush returns the unterminated leftover buffer as a final frame. Messages
// need not be delimiter-terminated at end of stream, so sessions call Flush
// once when the peer closes or the read loop ends on a fatal result.
func (a *FrameAssembler) Flush() (string, bool) {
	if a.buf.Len() == 0 {
		return "", false
	}
	frame := string(trimCR(a.buf.Bytes()))
	a.buf.Reset()
	if frame == "" {
		return "", false
	}
	return frame, true
}

// Pending returns the number of buffered bytes still lacking a delimiter.
func (a *FrameAssembler) Pending() int {
	return a.buf.Len()
}

func trimCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}
