package syslog

import (
	"strings"
	"testing"
	"time"
)

func TestMessageString(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	value := "3"

	tests := []struct {
		name string
		msg  *Message
		want string
	}{
		{
			name: "all fields set",
			msg: &Message{
				Version:   1,
				Facility:  FacilityAuth,
				Severity:  SeverityCritical,
				Timestamp: ts,
				Hostname:  "host",
				AppName:   "app",
				ProcID:    "proc",
				MsgID:     "msgid",
				Content:   "hello",
			},
			want: "<34>1 2023-01-01T00:00:00Z host app proc msgid hello",
		},
		{
			name: "unset fields render as dash",
			msg: &Message{
				Version:   1,
				Facility:  FacilityUser,
				Severity:  SeverityNotice,
				Timestamp: ts,
				Content:   "hello",
			},
			want: "<13>1 2023-01-01T00:00:00Z - - - - hello",
		},
		{
			name: "structured data terms",
			msg: &Message{
				Version:   1,
				Facility:  FacilityUser,
				Severity:  SeverityNotice,
				Timestamp: ts,
				Hostname:  "host",
				StructuredData: map[string]*string{
					"iut":  &value,
					"bare": nil,
				},
				Content: "hello",
			},
			want: `<13>1 2023-01-01T00:00:00Z host - - - [bare iut="3"] hello`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageStringOmitsEmptyStructuredData(t *testing.T) {
	msg := NewMessage()
	msg.Content = "hello"
	if got := msg.String(); strings.Contains(got, "[") {
		t.Errorf("expected no structured-data section, got %q", got)
	}
}

func TestMessageStringParsesBack(t *testing.T) {
	// Rendering is not an exact inverse of parsing, but the documented
	// fields must survive one render-parse cycle.
	orig := NewMessage()
	orig.Facility = FacilityLocal3
	orig.Severity = SeverityWarning
	orig.Hostname = "web01"
	orig.AppName = "nginx"
	orig.Content = "request served"

	parsed, ok := TryParse(testAddr, orig.String())
	if !ok {
		t.Fatalf("TryParse(%q) failed", orig.String())
	}
	if parsed.Priority() != orig.Priority() {
		t.Errorf("priority changed: got %d, want %d", parsed.Priority(), orig.Priority())
	}
	if parsed.Hostname != orig.Hostname || parsed.AppName != orig.AppName {
		t.Errorf("headers changed: got %q %q", parsed.Hostname, parsed.AppName)
	}
	if parsed.Content != orig.Content {
		t.Errorf("content changed: got %q", parsed.Content)
	}
}

func TestFacilitySeverityNames(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{FacilityKern.String(), "kern"},
		{FacilityUser.String(), "user"},
		{FacilityAuth.String(), "auth"},
		{FacilityLocal7.String(), "local7"},
		{Facility(42).String(), "facility(42)"},
		{SeverityEmergency.String(), "emerg"},
		{SeverityCritical.String(), "crit"},
		{SeverityNotice.String(), "notice"},
		{SeverityDebug.String(), "debug"},
		{Severity(12).String(), "severity(12)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
