package logformat

import (
	"errors"
	"strings"
)

// NullToken marks a column that carries no value.
const NullToken = "-"

var (
	// ErrUnterminatedQuote is returned when a quoted column is never closed.
	ErrUnterminatedQuote = errors.New("unterminated quoted field")
	// ErrUnterminatedBracket is returned when a bracketed column is never closed.
	ErrUnterminatedBracket = errors.New("unterminated bracketed field")
)

// Split tokenizes one access-log line (or a format template) into columns.
//
// Columns are separated by runs of spaces. A column starting with a double
// quote extends to the matching closing quote and may contain spaces; a
// doubled quote inside it is a literal quote. A column starting with '['
// extends to the next ']' and keeps its brackets, which covers the common
// nginx/apache "[10/Oct/2023:13:55:36 +0000]" timestamp. Characters glued to
// a closing quote or bracket stay part of the same column.
func Split(line string) ([]string, error) {
	line = strings.TrimRight(line, "\r\n")

	var (
		cols []string
		b    strings.Builder
	)

	i := 0
	for i < len(line) {
		if line[i] == ' ' || line[i] == '\t' {
			i++
			continue
		}

		b.Reset()

		switch line[i] {
		case '"':
			i++
			closed := false
			for i < len(line) {
				c := line[i]
				if c == '"' {
					if i+1 < len(line) && line[i+1] == '"' {
						b.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, ErrUnterminatedQuote
			}
		case '[':
			end := strings.IndexByte(line[i:], ']')
			if end < 0 {
				return nil, ErrUnterminatedBracket
			}
			b.WriteString(line[i : i+end+1])
			i += end + 1
		}

		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			b.WriteByte(line[i])
			i++
		}

		cols = append(cols, b.String())
	}

	return cols, nil
}
