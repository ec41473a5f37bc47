package syslog

import (
	"strconv"
	"strings"
	"time"
)

// maxPriority is the largest valid PRI value (facility 23, severity 7).
const maxPriority = 191

// TryParse decodes a single line of syslog text received from remoteAddr.
// Every grammar element is optional except the final content field; elements
// that fail to match simply leave their defaults in place and the text flows
// into the following fields. TryParse reports false for an empty sender
// address, empty input, or a line with no content; it never returns an error
// and the caller must not inspect the message unless ok is true.
func TryParse(remoteAddr, raw string) (msg *Message, ok bool) {
	if remoteAddr == "" || raw == "" {
		return nil, false
	}

	m := NewMessage()
	m.RemoteAddr = remoteAddr
	m.ReceivedAt = time.Now()

	p := parser{s: raw}
	p.skipSpaces()
	p.parsePriority(m)
	p.parseVersion(m)
	p.parseTimestamp(m)
	p.parseHeaders(m)
	p.parseStructuredData(m)

	p.skipSpaces()
	content := p.s[p.pos:]
	if content == "" {
		return nil, false
	}
	m.Content = content
	return m, true
}

// parser is a cursor over a single input line. Each parse step consumes its
// element only when doing so still leaves non-blank text to serve as the
// required content field; otherwise the element is left for later fields.
type parser struct {
	s   string
	pos int
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

func (p *parser) skipSpaces() {
	for p.pos < len(p.s) && isSpace(p.s[p.pos]) {
		p.pos++
	}
}

// peekToken returns the run of non-blank bytes at the cursor.
func (p *parser) peekToken() string {
	i := p.pos
	for i < len(p.s) && !isSpace(p.s[i]) {
		i++
	}
	return p.s[p.pos:i]
}

// consume advances the cursor past n bytes and any following blanks, but only
// when non-blank text remains afterwards. It reports whether it advanced.
func (p *parser) consume(n int) bool {
	i := p.pos + n
	for i < len(p.s) && isSpace(p.s[i]) {
		i++
	}
	if i >= len(p.s) {
		return false
	}
	p.pos = i
	return true
}

// parsePriority matches an optional leading "<digits>" element with a value
// of at most 191. Larger values or malformed brackets are not a PRI and the
// text flows into the following fields untouched.
func (p *parser) parsePriority(m *Message) {
	if p.pos >= len(p.s) || p.s[p.pos] != '<' {
		return
	}
	i := p.pos + 1
	start := i
	for i < len(p.s) && p.s[i] >= '0' && p.s[i] <= '9' {
		i++
	}
	if i == start || i >= len(p.s) || p.s[i] != '>' {
		return
	}
	v, err := strconv.Atoi(p.s[start:i])
	if err != nil || v > maxPriority {
		return
	}
	if !p.consume(i + 1 - p.pos) {
		return
	}
	m.Facility = Facility(v / 8)
	m.Severity = Severity(v % 8)
}

func (p *parser) parseVersion(m *Message) {
	tok := p.peekToken()
	if tok == "" || !isDigits(tok) {
		return
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return
	}
	if p.consume(len(tok)) {
		m.Version = v
	}
}

// parseTimestamp matches an ISO 8601 round-trippable timestamp. An absent or
// unparsable timestamp leaves the construction-time default untouched.
func (p *parser) parseTimestamp(m *Message) {
	tok := p.peekToken()
	if tok == "" {
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, tok)
	if err != nil {
		return
	}
	if p.consume(len(tok)) {
		m.Timestamp = ts
	}
}

// parseHeaders assigns up to four blank-delimited tokens to hostname,
// app-name, procid and msgid, in that order. Assignment stops at the
// structured-data section or when the next token is the last text on the
// line, which must remain available as content. The nil value "-" consumes
// its token but leaves the field unset.
func (p *parser) parseHeaders(m *Message) {
	for _, field := range []*string{&m.Hostname, &m.AppName, &m.ProcID, &m.MsgID} {
		if p.pos < len(p.s) && p.s[p.pos] == '[' {
			return
		}
		tok := p.peekToken()
		if tok == "" || !p.consume(len(tok)) {
			return
		}
		if tok != "-" {
			*field = tok
		}
	}
}

// parseStructuredData matches an optional bracketed section of blank-
// separated terms. Each term is either key=value or a bare token; bare terms
// are stored with a nil value. The first occurrence of a key wins and later
// duplicates are dropped. An unterminated section is not structured data and
// the text from "[" onward becomes content.
func (p *parser) parseStructuredData(m *Message) {
	if p.pos >= len(p.s) || p.s[p.pos] != '[' {
		return
	}
	end, ok := p.findSectionEnd()
	if !ok {
		return
	}
	inner := p.s[p.pos+1 : end]
	if !p.consume(end + 1 - p.pos) {
		return
	}
	parseTerms(inner, m.StructuredData)
}

// findSectionEnd locates the closing bracket of the structured-data section
// at the cursor. Brackets inside quoted values do not close the section; a
// quote opens only directly after "=" so bare tokens containing quote
// characters cannot swallow the terminator.
func (p *parser) findSectionEnd() (int, bool) {
	s := p.s
	var quote byte
	for i := p.pos + 1; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' && i+1 < len(s) && s[i+1] == quote {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case (c == '\'' || c == '"') && s[i-1] == '=':
			quote = c
		case c == ']':
			return i, true
		}
	}
	return 0, false
}

// parseTerms splits the inside of a structured-data section into terms and
// stores them into sd. A value is either a quoted string (single or double
// quote, with an escaped instance of its own quote character allowed inside)
// or an unquoted run of non-blank bytes.
func parseTerms(s string, sd map[string]*string) {
	i := 0
	for i < len(s) {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return
		}

		start := i
		for i < len(s) && s[i] != '=' && !isSpace(s[i]) {
			i++
		}
		key := s[start:i]

		if i >= len(s) || s[i] != '=' {
			// Bare term without a value.
			if key != "" {
				if _, exists := sd[key]; !exists {
					sd[key] = nil
				}
			}
			continue
		}

		i++ // consume '='
		var value string
		if i < len(s) && (s[i] == '"' || s[i] == '\'') {
			quote := s[i]
			i++
			var b strings.Builder
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) && s[i+1] == quote {
					b.WriteByte(quote)
					i += 2
					continue
				}
				if s[i] == quote {
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			value = b.String()
		} else {
			vs := i
			for i < len(s) && !isSpace(s[i]) {
				i++
			}
			value = s[vs:i]
		}

		if key == "" {
			continue
		}
		if _, exists := sd[key]; !exists {
			v := value
			sd[key] = &v
		}
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
