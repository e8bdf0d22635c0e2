// Package generate writes synthetic access logs in rhythm's default log
// format, for trying out replays without production traffic.
package generate

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"time"
)

const (
	// PatternSteady generates evenly distributed traffic.
	PatternSteady = "steady"
	// PatternBurst generates clustered bursts with quiet gaps.
	PatternBurst = "burst"
	// PatternRamp generates traffic density that increases over time.
	PatternRamp = "ramp"
)

// TimeLayout is the request time layout of generated lines.
const TimeLayout = "02/Jan/2006:15:04:05 -0700"

// Request is one request shape the generator picks from.
type Request struct {
	Method string
	Path   string
	Status int
}

// DefaultRequests is the request pool used when Options.Requests is empty.
var DefaultRequests = []Request{
	{"GET", "/api/users", 200},
	{"GET", "/api/users/42", 200},
	{"GET", "/api/search?q=rhythm&page=2", 200},
	{"POST", "/api/events", 201},
	{"PUT", "/api/settings", 204},
	{"DELETE", "/api/sessions/7", 204},
	{"GET", "/health", 200},
	{"GET", "/missing", 404},
	{"HEAD", "/", 200},
	{"OPTIONS", "/api/users", 204},
	{"PATCH", "/api/users/42", 200},
}

var userAgents = []string{
	"Mozilla/5.0 (X11; Linux x86_64)",
	"curl/8.5.0",
	"Go-http-client/1.1",
}

// Options controls how a synthetic log is generated.
type Options struct {
	Count    int
	Duration time.Duration
	Pattern  string
	Start    time.Time // zero means Duration before now
	Host     string    // destination host column
	Junk     int       // malformed lines mixed in
	Seed     uint64    // zero means time based
	Requests []Request
}

// DefaultOptions returns the defaults used by the CLI.
func DefaultOptions() Options {
	return Options{
		Count:    100,
		Duration: 5 * time.Minute,
		Pattern:  PatternSteady,
		Host:     "localhost:8080",
	}
}

// Log returns Count well-formed lines in time order with Junk malformed
// lines inserted at random positions.
func Log(opts Options) ([]string, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}
	if opts.Junk < 0 {
		return nil, fmt.Errorf("junk must not be negative, got %d", opts.Junk)
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC().Add(-opts.Duration).Truncate(time.Second)
	}
	if opts.Host == "" {
		opts.Host = "-"
	}
	if len(opts.Requests) == 0 {
		opts.Requests = DefaultRequests
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed>>1|1))

	var times []time.Time
	switch opts.Pattern {
	case PatternBurst:
		times = burstTimes(rng, opts.Start, opts.Count, opts.Duration)
	case PatternRamp:
		times = rampTimes(opts.Start, opts.Count, opts.Duration)
	default: // steady and unknown patterns
		times = steadyTimes(opts.Start, opts.Count, opts.Duration)
	}
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })

	lines := make([]string, 0, len(times)+opts.Junk)
	for _, t := range times {
		req := opts.Requests[rng.IntN(len(opts.Requests))]
		ua := userAgents[rng.IntN(len(userAgents))]
		rt := 0.001 + rng.ExpFloat64()*0.05
		lines = append(lines, Line(t, req, opts.Host, ua, rt))
	}

	junk := []string{
		"",
		"garbage that matches nothing",
		`[not a time] "GET /x HTTP/1.1" "200" "-" "-" "-" "0.1"`,
		`[` + opts.Start.Format(TimeLayout) + `] "UNKNOWN /x HTTP/1.1" "400" "-" "-" "-" "0.1"`,
		`"unterminated`,
	}
	for range opts.Junk {
		at := rng.IntN(len(lines) + 1)
		lines = slices.Insert(lines, at, junk[rng.IntN(len(junk))])
	}
	return lines, nil
}

// Line formats one request in the default log format.
func Line(t time.Time, req Request, host, userAgent string, responseTime float64) string {
	return fmt.Sprintf(`[%s] "%s %s HTTP/1.1" "%d" "%s" "-" "%s" "%.3f"`,
		t.Format(TimeLayout), req.Method, req.Path, req.Status, host, userAgent, responseTime)
}

// Write writes lines to w, one per line.
func Write(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := bw.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func steadyTimes(start time.Time, count int, dur time.Duration) []time.Time {
	interval := dur / time.Duration(count)
	out := make([]time.Time, count)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * interval)
	}
	return out
}

func burstTimes(rng *rand.Rand, start time.Time, count int, dur time.Duration) []time.Time {
	const bursts = 4
	gap := dur / bursts
	out := make([]time.Time, 0, count)
	for i := range count {
		// Requests within a burst land in the first second of their slot.
		slot := start.Add(time.Duration(i%bursts) * gap)
		out = append(out, slot.Add(time.Duration(rng.IntN(1000))*time.Millisecond))
	}
	return out
}

func rampTimes(start time.Time, count int, dur time.Duration) []time.Time {
	out := make([]time.Time, count)
	for i := range out {
		// sqrt spacing packs requests towards the end.
		frac := float64(i) / float64(count)
		out[i] = start.Add(time.Duration(math.Sqrt(frac) * float64(dur)))
	}
	return out
}
