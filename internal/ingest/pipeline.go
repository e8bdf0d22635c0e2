package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/SmitUplenchwar2687/rhythm/internal/clock"
)

// ErrTimeout is returned when ingestion does not finish within Options.Timeout.
var ErrTimeout = errors.New("ingestion did not finish in time")

const (
	// DefaultTimeout bounds a whole ingestion run.
	DefaultTimeout = 120 * time.Second

	readBufferSize = 64 * 1024
)

// DefaultWorkers returns max(GOMAXPROCS, 16).
func DefaultWorkers() int {
	return max(runtime.GOMAXPROCS(0), 16)
}

// Options configures a Pipeline.
type Options struct {
	Parser  ParserConfig
	Workers int           // parse goroutines; <= 0 means DefaultWorkers
	Timeout time.Duration // 0 means DefaultTimeout, < 0 disables the bound
	Speed   float64       // replay speed divisor for delays; <= 0 means 1
	Clock   clock.Clock   // "now" for the delay schedule
	Logger  log.Logger
}

// Stats counts what happened to the lines of one run.
type Stats struct {
	Lines   int                `json:"lines"`
	Entries int                `json:"entries"`
	Skipped map[SkipReason]int `json:"skipped"`
}

// SkippedTotal returns the number of lines that produced no entry.
func (s Stats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Pipeline reads an access log, parses lines concurrently, and returns the
// entries sorted by timestamp with replay delays attached.
type Pipeline struct {
	parser *Parser
	opts   Options
	logger log.Logger
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	parser, err := NewParser(opts.Parser)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Pipeline{
		parser: parser,
		opts:   opts,
		logger: log.With(logger, "component", "ingest"),
	}, nil
}

// Load runs the pipeline over the file at path.
func (p *Pipeline) Load(ctx context.Context, path string) ([]*Entry, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	return p.Run(ctx, f)
}

// awaitRun returns the workers' result, or the context error when ctx ends
// first. A result that is ready when ctx ends still wins. A Read blocked on a
// stalled file cannot be interrupted, so the reader goroutine is abandoned
// rather than waited for.
func awaitRun(ctx context.Context, waitErr <-chan error) error {
	select {
	case err := <-waitErr:
		return err
	case <-ctx.Done():
		select {
		case err := <-waitErr:
			return err
		default:
			return ctx.Err()
		}
	}
}

type rawLine struct {
	n    int
	text string
}

type partial struct {
	entries []*Entry
	skipped map[SkipReason]int
}

// Run parses every line of r. Malformed lines are skipped and counted; only
// read failures, cancellation and the timeout abort the run.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) ([]*Entry, Stats, error) {
	runCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	level.Info(p.logger).Log("msg", "parsing log", "workers", p.opts.Workers)

	g, gctx := errgroup.WithContext(runCtx)
	lines := make(chan rawLine, p.opts.Workers*4)
	var total int

	g.Go(func() error {
		defer close(lines)

		br := bufio.NewReaderSize(r, readBufferSize)
		for n := 1; ; n++ {
			text, err := br.ReadString('\n')
			if len(text) > 0 {
				total = n
				select {
				case lines <- rawLine{n: n, text: text}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading log: %w", err)
			}
		}
	})

	parts := make([]partial, p.opts.Workers)
	for w := range parts {
		g.Go(func() error {
			part := &parts[w]
			part.skipped = make(map[SkipReason]int)
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case l, ok := <-lines:
					if !ok {
						return nil
					}
					e, reason := p.parser.Parse(l.text)
					if e == nil {
						part.skipped[reason]++
						level.Debug(p.logger).Log("msg", "skipping line", "line", l.n, "reason", reason)
						continue
					}
					e.Line = l.n
					part.entries = append(part.entries, e)
				}
			}
		})
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()

	if err := awaitRun(runCtx, waitErr); err != nil {
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, Stats{}, fmt.Errorf("%w after %s", ErrTimeout, p.opts.Timeout)
		}
		return nil, Stats{}, err
	}

	// All workers have returned; merge their local results.
	stats := Stats{Lines: total, Skipped: make(map[SkipReason]int)}
	size := 0
	for _, part := range parts {
		size += len(part.entries)
	}
	entries := make([]*Entry, 0, size)
	for _, part := range parts {
		entries = append(entries, part.entries...)
		for reason, c := range part.skipped {
			stats.Skipped[reason] += c
		}
	}
	stats.Entries = len(entries)

	Sort(entries)
	ComputeDelays(entries, p.opts.Clock.Now(), p.opts.Speed)

	level.Info(p.logger).Log(
		"msg", "parsing finished",
		"lines", stats.Lines,
		"entries", stats.Entries,
		"skipped", stats.SkippedTotal(),
		"span", Span(entries),
	)

	return entries, stats, nil
}
