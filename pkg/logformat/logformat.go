// Package logformat exposes rhythm's access log format templates.
package logformat

import internallogformat "github.com/SmitUplenchwar2687/rhythm/internal/logformat"

// Spec is a compiled format template.
type Spec = internallogformat.Spec

// Field is one placeholder a template can carry.
type Field = internallogformat.Field

// Locator tells where a field sits inside a line.
type Locator = internallogformat.Locator

// DefaultTimePattern is the default request time pattern.
const DefaultTimePattern = internallogformat.DefaultTimePattern

// ErrInvalidTemplate is wrapped by template compile errors.
var ErrInvalidTemplate = internallogformat.ErrInvalidTemplate

// Compile resolves every placeholder in template to a column.
func Compile(template string) (*Spec, error) {
	return internallogformat.Compile(template)
}

// MustCompile is like Compile but panics on error.
func MustCompile(template string) *Spec {
	return internallogformat.MustCompile(template)
}

// Split breaks a line into quote-aware columns.
func Split(line string) ([]string, error) {
	return internallogformat.Split(line)
}

// Layout converts a date pattern such as "dd/MMM/yyyy:HH:mm:ss Z" to a Go
// time layout.
func Layout(pattern string) (string, error) {
	return internallogformat.Layout(pattern)
}
