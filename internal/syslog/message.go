package syslog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Message is a single decoded syslog message. A fresh record is produced per
// parse attempt; records are exclusively owned by the callback invocation that
// receives them and are safe to mutate afterwards.
type Message struct {
	Version  int
	Facility Facility
	Severity Severity

	// Timestamp is the sender-reported time, or the construction time when
	// the line carried no parsable timestamp.
	Timestamp time.Time

	// Hostname, AppName, ProcID and MsgID are empty when the line omitted
	// them or carried the nil value "-".
	Hostname string
	AppName  string
	ProcID   string
	MsgID    string

	// Content is the free-text remainder of the line. It is never empty on
	// a successfully parsed message.
	Content string

	// RemoteAddr and ReceivedAt identify where and when the message arrived.
	RemoteAddr string
	ReceivedAt time.Time

	// StructuredData maps term keys to values. A nil value marks a bare term
	// with no "=value" part. Keys are unique; on duplicate keys the first
	// occurrence wins and later ones are dropped.
	StructuredData map[string]*string
}

// NewMessage returns a message with protocol defaults: version 1, facility
// user, severity notice and the current time as timestamp.
func NewMessage() *Message {
	return &Message{
		Version:        1,
		Facility:       FacilityUser,
		Severity:       SeverityNotice,
		Timestamp:      time.Now(),
		StructuredData: make(map[string]*string),
	}
}

// Priority encodes facility and severity into the wire PRI value. For a
// message parsed from a line carrying a PRI element this reproduces the
// original value.
func (m *Message) Priority() int {
	return int(m.Facility)*8 + int(m.Severity)
}

// String renders the message in canonical form:
//
//	<PRI>VERSION TIMESTAMP HOST APP PROCID MSGID [SD-TERMS] CONTENT
//
// Unset header fields render as "-" and the structured-data section is
// omitted entirely when the map is empty. The rendering is best-effort and
// not guaranteed to round-trip byte-for-byte with arbitrary input: timestamps
// are renormalized and absent fields become "-".
func (m *Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%d>%d %s %s %s %s %s",
		m.Priority(), m.Version,
		m.Timestamp.Format(time.RFC3339Nano),
		orNil(m.Hostname), orNil(m.AppName), orNil(m.ProcID), orNil(m.MsgID))

	if len(m.StructuredData) > 0 {
		keys := make([]string, 0, len(m.StructuredData))
		for k := range m.StructuredData {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			if v := m.StructuredData[k]; v != nil {
				fmt.Fprintf(&b, "%s=%q", k, *v)
			} else {
				b.WriteString(k)
			}
		}
		b.WriteByte(']')
	}

	b.WriteByte(' ')
	b.WriteString(m.Content)
	return b.String()
}

func orNil(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
