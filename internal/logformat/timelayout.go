package logformat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimePattern is returned for time patterns that cannot be used to
// parse request timestamps.
var ErrInvalidTimePattern = errors.New("invalid time pattern")

// DefaultTimePattern matches the nginx $time_local format.
const DefaultTimePattern = "dd/MMM/yyyy:HH:mm:ss Z"

var layoutProbe = time.Date(2023, time.October, 10, 13, 55, 36, 123000000, time.UTC)

// Layout converts a time pattern into a Go time layout.
//
// Patterns containing a digit are taken to be Go reference layouts already
// ("02/Jan/2006:15:04:05 -0700"). Anything else is read as a
// DateTimeFormatter-style pattern ("dd/MMM/yyyy:HH:mm:ss Z") and translated.
func Layout(pattern string) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", fmt.Errorf("%w: empty pattern", ErrInvalidTimePattern)
	}

	layout := pattern
	if !strings.ContainsAny(pattern, "0123456789") {
		var err error
		if layout, err = translate(pattern); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidTimePattern, pattern, err)
		}
	}

	if _, err := time.Parse(layout, layoutProbe.Format(layout)); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidTimePattern, pattern, err)
	}
	return layout, nil
}

func translate(p string) (string, error) {
	var b strings.Builder

	for i := 0; i < len(p); {
		c := p[i]

		if c == '\'' {
			end := strings.IndexByte(p[i+1:], '\'')
			if end < 0 {
				return "", errors.New("unterminated quoted literal")
			}
			if end == 0 {
				b.WriteByte('\'')
			} else {
				b.WriteString(p[i+1 : i+1+end])
			}
			i += end + 2
			continue
		}

		if !isLetter(c) {
			b.WriteByte(c)
			i++
			continue
		}

		n := 1
		for i+n < len(p) && p[i+n] == c {
			n++
		}
		i += n

		switch c {
		case 'y', 'u':
			if n == 2 {
				b.WriteString("06")
			} else {
				b.WriteString("2006")
			}
		case 'M', 'L':
			b.WriteString(pick(n, "1", "01", "Jan", "January"))
		case 'd':
			b.WriteString(pick(n, "2", "02"))
		case 'H':
			b.WriteString("15")
		case 'h':
			b.WriteString(pick(n, "3", "03"))
		case 'm':
			b.WriteString(pick(n, "4", "04"))
		case 's':
			b.WriteString(pick(n, "5", "05"))
		case 'S':
			out := b.String()
			if out == "" || (out[len(out)-1] != '.' && out[len(out)-1] != ',') {
				return "", errors.New("fraction of second must follow '.' or ','")
			}
			b.WriteString(strings.Repeat("0", n))
		case 'a':
			b.WriteString("PM")
		case 'E':
			b.WriteString(pick(n, "Mon", "Mon", "Mon", "Monday"))
		case 'Z':
			b.WriteString(pick(n, "-0700", "-0700", "-0700", "GMT-07:00", "-07:00"))
		case 'X':
			b.WriteString(pick(n, "Z07", "Z0700", "Z07:00"))
		case 'x':
			b.WriteString(pick(n, "-07", "-0700", "-07:00"))
		case 'z':
			b.WriteString("MST")
		default:
			return "", fmt.Errorf("unsupported pattern letter %q", c)
		}
	}

	return b.String(), nil
}

// pick returns the variant for a letter repeated n times, clamped to the
// longest one.
func pick(n int, variants ...string) string {
	if n > len(variants) {
		n = len(variants)
	}
	return variants[n-1]
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
