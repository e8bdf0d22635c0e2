package ingest

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/rhythm/internal/logformat"
)

// SkipReason explains why a log line produced no entry.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipEmpty           SkipReason = "empty"
	SkipTokenize        SkipReason = "tokenize"
	SkipNoTimestamp     SkipReason = "no_timestamp"
	SkipBadTimestamp    SkipReason = "bad_timestamp"
	SkipBeforeStart     SkipReason = "before_start"
	SkipBadRequestLine  SkipReason = "bad_request_line"
	SkipUnknownMethod   SkipReason = "unknown_method"
	SkipBadStatus       SkipReason = "bad_status"
	SkipBadResponseTime SkipReason = "bad_response_time"
	SkipNoHost          SkipReason = "no_host"
	SkipBadURL          SkipReason = "bad_url"
)

// ParserConfig holds everything needed to turn one line into an Entry.
type ParserConfig struct {
	Spec            *logformat.Spec
	TimeLayout      string // Go layout, see logformat.Layout
	MinTimestamp    int64  // unix seconds; 0 disables the filter
	DestinationHost string // overrides the host column when set
	Scheme          string // used when the host carries none
}

// Parser converts single log lines into entries. It holds no mutable state
// and is safe for concurrent use.
type Parser struct {
	cfg ParserConfig
}

// NewParser validates cfg and returns a Parser.
func NewParser(cfg ParserConfig) (*Parser, error) {
	if cfg.Spec == nil {
		return nil, errors.New("log format spec is required")
	}
	if cfg.TimeLayout == "" {
		return nil, errors.New("time layout is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	return &Parser{cfg: cfg}, nil
}

// Parse decodes one line. A nil entry comes with the reason it was skipped.
func (p *Parser) Parse(line string) (*Entry, SkipReason) {
	if strings.TrimSpace(line) == "" {
		return nil, SkipEmpty
	}

	cols, err := logformat.Split(line)
	if err != nil {
		return nil, SkipTokenize
	}
	spec := p.cfg.Spec

	rawTime, ok := spec.Value(cols, logformat.FieldRequestTime)
	if !ok {
		return nil, SkipNoTimestamp
	}
	ts, err := time.Parse(p.cfg.TimeLayout, rawTime)
	if err != nil {
		return nil, SkipBadTimestamp
	}
	if p.cfg.MinTimestamp != 0 && ts.Unix() < p.cfg.MinTimestamp {
		return nil, SkipBeforeStart
	}

	request, ok := spec.Value(cols, logformat.FieldRequestLine)
	if !ok {
		return nil, SkipBadRequestLine
	}
	parts := strings.Fields(request)
	if len(parts) < 2 {
		return nil, SkipBadRequestLine
	}
	method, err := ParseMethod(parts[0])
	if err != nil {
		return nil, SkipUnknownMethod
	}

	e := &Entry{
		Timestamp: ts,
		Method:    method,
		Path:      parts[1],
	}

	if v, ok := spec.Value(cols, logformat.FieldStatusCode); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, SkipBadStatus
		}
		e.Status = &n
	}
	if v, ok := spec.Value(cols, logformat.FieldResponseTime); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, SkipBadResponseTime
		}
		e.ResponseTime = &f
	}

	host := p.cfg.DestinationHost
	if host == "" {
		if host, ok = spec.Value(cols, logformat.FieldDestinationHost); !ok {
			return nil, SkipNoHost
		}
	}
	if e.URL, err = BuildURL(p.cfg.Scheme, host, e.Path); err != nil {
		return nil, SkipBadURL
	}

	e.Referer, _ = spec.Value(cols, logformat.FieldReferer)
	e.UserAgent, _ = spec.Value(cols, logformat.FieldUserAgent)

	return e, SkipNone
}
