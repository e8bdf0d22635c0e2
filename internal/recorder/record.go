package recorder

import (
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the layout of both timestamps in a tab-separated record.
const TimeFormat = "02/01/2006-15:04:05"

// StatusFailed is the observed status of an attempt that got no response.
const StatusFailed = 0

// Result is the outcome of one replayed request attempt.
type Result struct {
	RunID                string        `json:"run_id,omitempty"`
	OriginalStatus       *int          `json:"original_status,omitempty"`
	Status               int           `json:"status"`
	OriginalTime         time.Time     `json:"original_time"`
	ReplayTime           time.Time     `json:"replay_time"`
	OriginalResponseTime *float64      `json:"original_response_time,omitempty"` // seconds
	TTFB                 time.Duration `json:"ttfb"`                             // nanoseconds
	Method               string        `json:"method"`
	Path                 string        `json:"path"`
	URL                  string        `json:"url,omitempty"`
	Attempt              int           `json:"attempt"`
	Rejected             bool          `json:"rejected,omitempty"`
	Err                  string        `json:"error,omitempty"`
}

// Failed reports whether the attempt produced no HTTP response.
func (r Result) Failed() bool {
	return r.Status == StatusFailed
}

// Fields returns the seven result columns: original status, observed
// status, original time, replay time, original response time, TTFB in
// seconds, and path. Unknown values are "-".
func (r Result) Fields() [7]string {
	return [7]string{
		optInt(r.OriginalStatus),
		strconv.Itoa(r.Status),
		r.OriginalTime.Format(TimeFormat),
		r.ReplayTime.Format(TimeFormat),
		optFloat(r.OriginalResponseTime),
		strconv.FormatFloat(r.TTFB.Seconds(), 'f', 3, 64),
		r.Path,
	}
}

// TSV renders Fields as one tab-separated line without a trailing newline.
func (r Result) TSV() string {
	f := r.Fields()
	return strings.Join(f[:], "\t")
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
