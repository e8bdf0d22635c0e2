package replay

import (
	"slices"
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
)

// Filter selects which entries are dispatched. Empty fields match everything.
type Filter struct {
	Methods []string  // exact, case-insensitive
	Paths   []string  // exact path or substring
	After   time.Time // only entries after this time
	Before  time.Time // only entries before this time
}

// Match reports whether e passes the filter.
func (f *Filter) Match(e *ingest.Entry) bool {
	if len(f.Methods) > 0 && !slices.ContainsFunc(f.Methods, func(m string) bool {
		return strings.EqualFold(m, e.Method.String())
	}) {
		return false
	}
	if len(f.Paths) > 0 && !matchPath(f.Paths, e.Path) {
		return false
	}
	if !f.After.IsZero() && !e.Timestamp.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !e.Timestamp.Before(f.Before) {
		return false
	}
	return true
}

// Empty reports whether the filter lets everything through.
func (f *Filter) Empty() bool {
	return len(f.Methods) == 0 && len(f.Paths) == 0 && f.After.IsZero() && f.Before.IsZero()
}

func matchPath(patterns []string, path string) bool {
	for _, p := range patterns {
		if p == path || strings.Contains(path, p) {
			return true
		}
	}
	return false
}
