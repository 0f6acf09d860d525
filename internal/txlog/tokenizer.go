// ABOUTME: Tokenizer for log lines: space-separated fields with quoting
// ABOUTME: Quoted fields may contain spaces and escaped characters

package txlog

import (
	"fmt"
	"strings"
)

// tokenize splits a log line into fields. Fields are separated by
// runs of spaces; a field starting with a double quote runs to the
// closing quote and may contain escaped characters.
func tokenize(line string) ([]string, error) {
	var fields []string
	i := 0
	for i < len(line) {
		switch {
		case line[i] == ' ':
			i++
		case line[i] == '"':
			field, rest, err := readQuoted(line[i+1:])
			if err != nil {
				return nil, err
			}
			fields = append(fields, field)
			i = len(line) - len(rest)
		default:
			end := strings.IndexByte(line[i:], ' ')
			if end < 0 {
				fields = append(fields, line[i:])
				i = len(line)
			} else {
				fields = append(fields, line[i:i+end])
				i += end
			}
		}
	}
	return fields, nil
}

// readQuoted consumes a quoted field body (the opening quote already
// stripped) and returns the decoded field and the unconsumed tail.
func readQuoted(s string) (string, string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			return b.String(), s[i+1:], nil
		case '\\':
			i++
			if i >= len(s) {
				return "", "", fmt.Errorf("truncated escape in quoted field")
			}
			switch s[i] {
			case '"', '\\':
				b.WriteByte(s[i])
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			default:
				return "", "", fmt.Errorf("unknown escape %q in quoted field", s[i])
			}
		default:
			b.WriteByte(s[i])
		}
	}
	return "", "", fmt.Errorf("unterminated quoted field")
}

// quoteField renders a text field for a log line. Plain fields pass
// through bare; anything the tokenizer would split on gets quoted.
func quoteField(s string) string {
	if s != "" && !strings.ContainsAny(s, " \"\\\n\r") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	return b.String()
}
