package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Format selects how a WriterSink renders results.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "tsv" or "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want tsv or json)", s)
	}
}

// WriterSink writes one line per result to an io.Writer.
type WriterSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	format Format
	flush  bool
}

// NewWriterSink wraps w. Every result is flushed immediately, which suits
// a console.
func NewWriterSink(w io.Writer, format Format) *WriterSink {
	return &WriterSink{w: bufio.NewWriter(w), format: format, flush: true}
}

// OpenFile appends results to the file at path, creating it if needed.
// Output is buffered until Close.
func OpenFile(path string, format Format) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening result file: %w", err)
	}
	return &WriterSink{w: bufio.NewWriter(f), closer: f, format: format}, nil
}

func (s *WriterSink) Write(res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case FormatJSON:
		b, err := json.Marshal(res)
		if err != nil {
			return err
		}
		s.w.Write(b)
	default:
		s.w.WriteString(res.TSV())
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	if s.flush {
		return s.w.Flush()
	}
	return nil
}

// Close flushes buffered output and closes the underlying file, if any.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}

// SinkFunc adapts a function to the Sink interface. Close is a no-op.
type SinkFunc func(Result) error

func (f SinkFunc) Write(r Result) error { return f(r) }
func (f SinkFunc) Close() error         { return nil }
