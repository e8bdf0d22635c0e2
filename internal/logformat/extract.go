package logformat

import (
	"strings"
	"unicode/utf8"
)

// Extract returns the value located by l inside one raw column.
//
// Null columns ("-", empty, or whitespace only) yield no value. Otherwise the
// same number of characters that surrounded the placeholder in the template
// are cut from both ends of raw. This assumes the literal text around a
// field has a fixed width; variable-width literals will mis-extract.
func Extract(l Locator, raw string) (string, bool) {
	if !l.Resolved || isNull(raw) {
		return "", false
	}

	var v string
	if n := len(raw); utf8.RuneCountInString(raw) == n {
		if l.Prefix+l.Suffix > n {
			return "", false
		}
		v = raw[l.Prefix : n-l.Suffix]
	} else {
		r := []rune(raw)
		if l.Prefix+l.Suffix > len(r) {
			return "", false
		}
		v = string(r[l.Prefix : len(r)-l.Suffix])
	}

	if isNull(v) {
		return "", false
	}
	return v, true
}

func isNull(s string) bool {
	return s == NullToken || strings.TrimSpace(s) == ""
}
