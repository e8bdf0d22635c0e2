package logformat

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidTemplate is returned when a format template cannot be tokenized.
var ErrInvalidTemplate = errors.New("invalid log format template")

// Field identifies one semantic value that can be located in a log line.
type Field int

const (
	FieldRequestTime Field = iota
	FieldRequestLine
	FieldStatusCode
	FieldResponseTime
	FieldDestinationHost
	FieldReferer
	FieldUserAgent

	numFields
)

var fieldInfo = [numFields]struct {
	placeholder string
	name        string
}{
	FieldRequestTime:     {"$requestTime", "request_time"},
	FieldRequestLine:     {"$requestUrl", "request_line"},
	FieldStatusCode:      {"$statusCode", "status_code"},
	FieldResponseTime:    {"$responseTime", "response_time"},
	FieldDestinationHost: {"$destinationHost", "destination_host"},
	FieldReferer:         {"$refererHeader", "referer"},
	FieldUserAgent:       {"$userAgentHeader", "user_agent"},
}

// Fields returns every known field in placeholder matching order.
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// Placeholder returns the marker that stands for the field in a template.
func (f Field) Placeholder() string {
	if f < 0 || f >= numFields {
		return ""
	}
	return fieldInfo[f].placeholder
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldInfo[f].name
}

// Locator says where a field lives inside a log line: which column, and how
// many literal characters surround the value inside that column.
//
// The zero Locator is unresolved and yields no value for every line.
type Locator struct {
	Field    Field
	Chunk    string // template column the placeholder was found in
	Column   int    // zero-based column index
	Prefix   int    // characters before the placeholder in Chunk
	Suffix   int    // characters after the placeholder in Chunk
	Resolved bool
}

func resolve(f Field, chunk string, column int) Locator {
	ph := f.Placeholder()
	at := strings.Index(chunk, ph)
	prefix := utf8.RuneCountInString(chunk[:at])
	return Locator{
		Field:    f,
		Chunk:    chunk,
		Column:   column,
		Prefix:   prefix,
		Suffix:   utf8.RuneCountInString(chunk) - prefix - utf8.RuneCountInString(ph),
		Resolved: true,
	}
}

// Spec is a compiled log format: one Locator per known field. A Spec is
// immutable after Compile and safe for concurrent use.
type Spec struct {
	template string
	columns  int
	locators [numFields]Locator
}

// Compile tokenizes template with the log-line grammar and resolves a
// Locator for every placeholder it contains. Placeholders missing from the
// template are left unresolved; that is not an error.
func Compile(template string) (*Spec, error) {
	cols, err := Split(template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: template is empty", ErrInvalidTemplate)
	}

	s := &Spec{template: template, columns: len(cols)}
	for i := range s.locators {
		s.locators[i].Field = Field(i)
	}

	for col, chunk := range cols {
		for _, f := range Fields() {
			if !strings.Contains(chunk, f.Placeholder()) {
				continue
			}
			// The first template column naming a field wins.
			if !s.locators[f].Resolved {
				s.locators[f] = resolve(f, chunk, col)
			}
			break
		}
	}

	return s, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(template string) *Spec {
	s, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return s
}

// Template returns the source template.
func (s *Spec) Template() string { return s.template }

// Columns returns the number of columns in the template.
func (s *Spec) Columns() int { return s.columns }

// Locator returns the locator for f.
func (s *Spec) Locator(f Field) Locator {
	if f < 0 || f >= numFields {
		return Locator{Field: f}
	}
	return s.locators[f]
}

// Has reports whether the template contains f.
func (s *Spec) Has(f Field) bool {
	return s.Locator(f).Resolved
}

// Value extracts f from an already tokenized line.
func (s *Spec) Value(cols []string, f Field) (string, bool) {
	l := s.Locator(f)
	if !l.Resolved || l.Column >= len(cols) {
		return "", false
	}
	return Extract(l, cols[l.Column])
}
