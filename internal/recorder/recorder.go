package recorder

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// Sink receives every result of a run. Write is called from many worker
// goroutines at once, so implementations must be safe for concurrent use.
type Sink interface {
	Write(Result) error
	Close() error
}

const defaultRecent = 256

// Recorder fans results out to its sinks and keeps the most recent ones in
// memory for the monitor API. Safe for concurrent use.
type Recorder struct {
	sinks []Sink

	mu     sync.Mutex
	recent []Result
	next   int
	total  int
	failed int
	errs   int
}

// New creates a Recorder that keeps the last keep results (<= 0 means 256)
// and forwards every result to sinks.
func New(keep int, sinks ...Sink) *Recorder {
	if keep <= 0 {
		keep = defaultRecent
	}
	return &Recorder{
		sinks:  sinks,
		recent: make([]Result, 0, keep),
	}
}

// Record stores res and writes it to every sink. A failing sink does not
// stop the others; the joined error is returned.
func (r *Recorder) Record(res Result) error {
	r.mu.Lock()
	if len(r.recent) < cap(r.recent) {
		r.recent = append(r.recent, res)
	} else {
		r.recent[r.next] = res
	}
	r.next = (r.next + 1) % cap(r.recent)
	r.total++
	if res.Failed() {
		r.failed++
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range r.sinks {
		if err := s.Write(res); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		r.mu.Lock()
		r.errs++
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Recent returns up to n of the latest results, oldest first. n <= 0
// returns everything retained.
func (r *Recorder) Recent(n int) []Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.recent)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Result, 0, n)
	start := r.next - n
	for i := 0; i < n; i++ {
		out = append(out, r.recent[(start+i+cap(r.recent))%cap(r.recent)])
	}
	return out
}

// Len returns the number of results recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Failed returns how many recorded results carry the failure status.
func (r *Recorder) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// SinkErrors returns how many Record calls hit at least one sink error.
func (r *Recorder) SinkErrors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

// ExportJSON writes the retained results to w as a JSON array.
func (r *Recorder) ExportJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Recent(0))
}

// Close closes every sink and returns their joined errors.
func (r *Recorder) Close() error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
