package syslog

import (
	"strconv"
	"testing"
	"time"
)

const testAddr = "192.0.2.10:51423"

func TestTryParsePriorityRange(t *testing.T) {
	// Every valid PRI value must decode to facility = p/8, severity = p%8
	// and re-encode to the original value.
	for p := 0; p <= 191; p++ {
		raw := "<" + strconv.Itoa(p) + ">1 message"
		msg, ok := TryParse(testAddr, raw)
		if !ok {
			t.Fatalf("TryParse(%q) failed", raw)
		}
		if int(msg.Facility) != p/8 || int(msg.Severity) != p%8 {
			t.Errorf("PRI %d: got facility=%d severity=%d", p, msg.Facility, msg.Severity)
		}
		if msg.Priority() != p {
			t.Errorf("PRI %d: Priority() round-trip gave %d", p, msg.Priority())
		}
	}
}

func TestTryParseDefaults(t *testing.T) {
	before := time.Now()
	msg, ok := TryParse(testAddr, "plain message without any header")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	after := time.Now()

	if msg.Facility != FacilityUser {
		t.Errorf("expected default facility user, got %v", msg.Facility)
	}
	if msg.Severity != SeverityNotice {
		t.Errorf("expected default severity notice, got %v", msg.Severity)
	}
	if msg.Version != 1 {
		t.Errorf("expected default version 1, got %d", msg.Version)
	}
	if msg.Timestamp.Before(before) || msg.Timestamp.After(after) {
		t.Errorf("expected construction-time timestamp, got %v", msg.Timestamp)
	}
	if msg.RemoteAddr != testAddr {
		t.Errorf("expected remote addr %q, got %q", testAddr, msg.RemoteAddr)
	}
}

func TestTryParse(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		raw      string
		wantOK   bool
		validate func(t *testing.T, m *Message)
	}{
		{
			name:   "full message",
			raw:    "<34>1 2023-01-01T00:00:00Z host app proc msgid [x=1] hello world",
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				if m.Facility != FacilityAuth || m.Severity != SeverityCritical {
					t.Errorf("got facility=%v severity=%v", m.Facility, m.Severity)
				}
				if !m.Timestamp.Equal(ts) {
					t.Errorf("got timestamp %v", m.Timestamp)
				}
				if m.Hostname != "host" || m.AppName != "app" || m.ProcID != "proc" || m.MsgID != "msgid" {
					t.Errorf("got headers %q %q %q %q", m.Hostname, m.AppName, m.ProcID, m.MsgID)
				}
				if m.Content != "hello world" {
					t.Errorf("got content %q", m.Content)
				}
				assertValue(t, m, "x", "1")
			},
		},
		{
			name:   "nil value dash leaves fields unset",
			raw:    "<34>1 2023-01-01T00:00:00Z - - - - content",
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				if m.Hostname != "" || m.AppName != "" || m.ProcID != "" || m.MsgID != "" {
					t.Errorf("expected unset headers, got %q %q %q %q",
						m.Hostname, m.AppName, m.ProcID, m.MsgID)
				}
			},
		},
		{
			name:   "duplicate key first occurrence wins",
			raw:    "host app - - [x a=1 a=2] content",
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				assertValue(t, m, "a", "1")
				assertBare(t, m, "x")
			},
		},
		{
			name:   "escaped double quote in value",
			raw:    `app - - - [eventID="10\"11"] content`,
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				assertValue(t, m, "eventID", `10"11`)
			},
		},
		{
			name:   "escaped single quote in value",
			raw:    `app - - - [note='it\'s fine'] content`,
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				assertValue(t, m, "note", "it's fine")
			},
		},
		{
			name:   "quoted value with spaces",
			raw:    `[msg="hello there" mode=fast] content`,
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				assertValue(t, m, "msg", "hello there")
				assertValue(t, m, "mode", "fast")
			},
		},
		{
			name:   "unparsable timestamp leaves default",
			raw:    "<34>1 not-a-timestamp host content",
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				if m.Timestamp.Year() < 2020 {
					t.Errorf("expected construction-time timestamp, got %v", m.Timestamp)
				}
				// The unparsable token flows into the hostname field.
				if m.Hostname != "not-a-timestamp" {
					t.Errorf("got hostname %q", m.Hostname)
				}
			},
		},
		{
			name:   "priority above 191 is not a PRI element",
			raw:    "<192>1 content",
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				if m.Facility != FacilityUser || m.Severity != SeverityNotice {
					t.Errorf("got facility=%v severity=%v", m.Facility, m.Severity)
				}
				if m.Hostname != "<192>1" {
					t.Errorf("got hostname %q", m.Hostname)
				}
			},
		},
		{
			name:   "unterminated bracket becomes content",
			raw:    "host app - - [x=1 oops",
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				if len(m.StructuredData) != 0 {
					t.Errorf("expected no structured data, got %v", m.StructuredData)
				}
				if m.Content != "[x=1 oops" {
					t.Errorf("got content %q", m.Content)
				}
			},
		},
		{
			name:   "single token is content not hostname",
			raw:    "hello",
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				if m.Hostname != "" {
					t.Errorf("expected unset hostname, got %q", m.Hostname)
				}
				if m.Content != "hello" {
					t.Errorf("got content %q", m.Content)
				}
			},
		},
		{
			name:   "structured data only has no content",
			raw:    "[x=1]",
			wantOK: true,
			validate: func(t *testing.T, m *Message) {
				// The section cannot be consumed without starving the
				// required content field, so it becomes content.
				if m.Content != "[x=1]" {
					t.Errorf("got content %q", m.Content)
				}
			},
		},
		{name: "empty input", raw: "", wantOK: false},
		{name: "blank input", raw: "   ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := TryParse(testAddr, tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("TryParse(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && tt.validate != nil {
				tt.validate(t, msg)
			}
		})
	}
}

func TestTryParseEmptySenderFails(t *testing.T) {
	if _, ok := TryParse("", "<34>1 content"); ok {
		t.Error("expected parse to fail for empty sender address")
	}
}

func TestTryParseExampleEndToEnd(t *testing.T) {
	raw := `<34>1 2003-10-11T22:14:15.003Z mymachine.example.com su - ID47 [ex@32473 iut="3"] 'su root' failed`

	msg, ok := TryParse(testAddr, raw)
	if !ok {
		t.Fatalf("TryParse(%q) failed", raw)
	}

	if msg.Facility != FacilityAuth {
		t.Errorf("expected facility auth(4), got %v(%d)", msg.Facility, msg.Facility)
	}
	if msg.Severity != SeverityCritical {
		t.Errorf("expected severity crit(2), got %v(%d)", msg.Severity, msg.Severity)
	}
	if msg.Hostname != "mymachine.example.com" {
		t.Errorf("got hostname %q", msg.Hostname)
	}
	if msg.AppName != "su" {
		t.Errorf("got app name %q", msg.AppName)
	}
	if msg.ProcID != "" {
		t.Errorf("expected unset procid, got %q", msg.ProcID)
	}
	if msg.MsgID != "ID47" {
		t.Errorf("got msgid %q", msg.MsgID)
	}
	want := time.Date(2003, 10, 11, 22, 14, 15, 3_000_000, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Errorf("got timestamp %v, want %v", msg.Timestamp, want)
	}
	assertValue(t, msg, "iut", "3")
	assertBare(t, msg, "ex@32473")
	if msg.Content != "'su root' failed" {
		t.Errorf("got content %q", msg.Content)
	}
}

func assertValue(t *testing.T, m *Message, key, want string) {
	t.Helper()
	v, exists := m.StructuredData[key]
	if !exists {
		t.Errorf("expected structured-data key %q", key)
		return
	}
	if v == nil {
		t.Errorf("expected value %q for key %q, got bare term", want, key)
		return
	}
	if *v != want {
		t.Errorf("key %q: got value %q, want %q", key, *v, want)
	}
}

func assertBare(t *testing.T, m *Message, key string) {
	t.Helper()
	v, exists := m.StructuredData[key]
	if !exists {
		t.Errorf("expected bare structured-data term %q", key)
		return
	}
	if v != nil {
		t.Errorf("expected bare term %q, got value %q", key, *v)
	}
}
