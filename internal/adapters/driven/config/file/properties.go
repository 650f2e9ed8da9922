package file

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/magiconair/properties"
)

// propertyLine is one logical entry of a properties file. A logical entry
// spans several physical lines when they end in a backslash.
type propertyLine struct {
	key   string
	first int // index of the first physical line
	last  int // index of the last physical line
}

// loadProperties parses a properties document. ${...} references are kept
// literally so a secret containing them reads back unchanged.
func loadProperties(data []byte) (*properties.Properties, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	p.DisableExpansion = true
	return p, nil
}

// parsePropertyLines returns every key/value entry of a properties file in
// file order, with the physical lines it occupies.
func parsePropertyLines(lines []string) ([]propertyLine, error) {
	var entries []propertyLine
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimLeftFunc(lines[i], unicode.IsSpace)
		if trimmed == "" || trimmed[0] == '#' || trimmed[0] == '!' {
			continue
		}

		first := i
		for endsWithContinuation(lines[i]) && i+1 < len(lines) {
			i++
		}

		p, err := loadProperties([]byte(strings.Join(lines[first:i+1], "\n")))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", first+1, err)
		}
		keys := p.Keys()
		if len(keys) != 1 {
			return nil, fmt.Errorf("line %d: expected one entry, found %d", first+1, len(keys))
		}
		entries = append(entries, propertyLine{key: keys[0], first: first, last: i})
	}
	return entries, nil
}

// parseProperties reads a properties document into a flat key/value map.
// Later duplicates win.
func parseProperties(data []byte) (map[string]any, error) {
	p, err := loadProperties(data)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, p.Len())
	for key, value := range p.Map() {
		values[key] = resolveScalar(value)
	}
	return values, nil
}

// rewriteProperty replaces the value of key, keeping every other line
// byte-for-byte. A key defined more than once has every definition replaced.
func rewriteProperty(data []byte, key, value string) ([]byte, error) {
	lines := splitLines(data)
	entries, err := parsePropertyLines(lines)
	if err != nil {
		return nil, err
	}

	var out []string
	next := 0
	found := false
	for _, e := range entries {
		if e.key != key {
			continue
		}
		found = true
		out = append(out, lines[next:e.first]...)
		out = append(out, replacePropertyValue(lines[e.first], escapePropertyValue(value)))
		next = e.last + 1
	}
	if !found {
		return nil, fmt.Errorf("key %s not found", key)
	}
	out = append(out, lines[next:]...)

	result := strings.Join(out, "\n")
	if bytes.HasSuffix(data, []byte("\n")) {
		result += "\n"
	}
	return []byte(result), nil
}

// replacePropertyValue keeps the indentation, key and separator of line and
// substitutes the value.
func replacePropertyValue(line, escaped string) string {
	indent := len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
	body := line[indent:]
	keyEnd := keyLength(body)

	sepEnd := keyEnd
	for sepEnd < len(body) && (body[sepEnd] == ' ' || body[sepEnd] == '\t') {
		sepEnd++
	}
	if sepEnd < len(body) && (body[sepEnd] == '=' || body[sepEnd] == ':') {
		sepEnd++
		for sepEnd < len(body) && (body[sepEnd] == ' ' || body[sepEnd] == '\t') {
			sepEnd++
		}
	}
	prefix := line[:indent] + body[:sepEnd]
	if sepEnd == keyEnd {
		prefix += "="
	}
	return prefix + escaped
}

// keyLength returns the length of the (escaped) key at the start of s.
func keyLength(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '=', ':', ' ', '\t', '\f':
			return i
		}
	}
	return len(s)
}

func endsWithContinuation(s string) bool {
	backslashes := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		backslashes++
	}
	return backslashes%2 == 1
}

// escapePropertyValue escapes a value so it reads back unchanged.
func escapePropertyValue(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case ' ':
			if i == 0 {
				b.WriteString(`\ `)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	return lines
}
