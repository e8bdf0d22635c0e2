package replay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/SmitUplenchwar2687/rhythm/internal/clock"
	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/pool"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
)

// DefaultShutdownGrace bounds how long Run waits for queued and running
// requests after dispatch ends.
const DefaultShutdownGrace = 600 * time.Second

// Executor performs one request attempt. Implementations must be safe for
// concurrent use and must report transport failures inside the Result.
type Executor interface {
	Execute(ctx context.Context, e *ingest.Entry) recorder.Result
	Close() error
}

// Rand is the random source for fractional load multipliers.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Options configures a Replayer.
type Options struct {
	Workers       int
	QueueCapacity int
	Policy        pool.Policy
	// LoadMultiplier duplicates each entry: floor(m) attempts always, plus
	// one more with probability m-floor(m). Zero means exactly one attempt.
	LoadMultiplier float64
	ShutdownGrace  time.Duration
	Filter         Filter
	Rand           Rand
	RunID          string
	Logger         log.Logger
}

// Summary aggregates replay statistics.
type Summary struct {
	RunID        string        `json:"run_id,omitempty"`
	Entries      int           `json:"entries"`
	Filtered     int           `json:"filtered"`   // entries the filter skipped
	Dispatched   int           `json:"dispatched"` // entries handed to the pool
	Attempts     int           `json:"attempts"`   // submissions, including duplicates
	Completed    int           `json:"completed"`  // results emitted
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"` // status 0, rejections included
	Rejected     int           `json:"rejected"`
	Dropped      int           `json:"dropped"` // discarded, evicted or abandoned
	CallerRuns   int           `json:"caller_runs"`
	PerStatus    map[int]int   `json:"per_status"`
	MeanTTFB     time.Duration `json:"mean_ttfb"`
	MaxTTFB      time.Duration `json:"max_ttfb"`
	Duration     time.Duration `json:"duration"`      // span of the original traffic
	WallDuration time.Duration `json:"wall_duration"` // replay time on the clock
	Interrupted  bool          `json:"interrupted,omitempty"`

	ttfbSum time.Duration
}

// Replayer dispatches entries at their scheduled cadence onto a bounded
// worker pool.
type Replayer struct {
	exec   Executor
	clk    clock.Clock
	opts   Options
	logger log.Logger

	mu      sync.Mutex
	summary Summary
}

// New creates a Replayer.
func New(exec Executor, clk clock.Clock, opts Options) (*Replayer, error) {
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", opts.Workers)
	}
	if opts.LoadMultiplier < 0 || math.IsNaN(opts.LoadMultiplier) || math.IsInf(opts.LoadMultiplier, 0) {
		return nil, fmt.Errorf("load multiplier must be a finite non-negative number, got %v", opts.LoadMultiplier)
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}
	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Replayer{
		exec:   exec,
		clk:    clk,
		opts:   opts,
		logger: log.With(logger, "component", "replay"),
	}, nil
}

// Attempts returns how many attempts one entry gets, drawing from the
// replayer's random source once when the multiplier has a fractional part.
func (r *Replayer) Attempts() int {
	m := r.opts.LoadMultiplier
	if m == 0 {
		return 1
	}
	whole, frac := math.Modf(m)
	n := int(whole)
	if frac > 0 && r.opts.Rand.Float64() < frac {
		n++
	}
	return n
}

// Run dispatches entries in order, waiting each entry's delay first, and
// calls cb once per attempt from whichever goroutine finished it. Run
// returns after the pool has drained or the shutdown grace has run out.
// The executor is closed before Run returns.
func (r *Replayer) Run(ctx context.Context, entries []*ingest.Entry, cb func(recorder.Result)) (_ *Summary, err error) {
	defer func() {
		if cerr := r.exec.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing executor: %w", cerr)
		}
	}()

	r.mu.Lock()
	r.summary = Summary{
		RunID:     r.opts.RunID,
		Entries:   len(entries),
		PerStatus: make(map[int]int),
		Duration:  ingest.Span(entries),
	}
	r.mu.Unlock()

	p, err := pool.New(pool.Options{
		Workers:       r.opts.Workers,
		QueueCapacity: r.opts.QueueCapacity,
		Policy:        r.opts.Policy,
		Logger:        r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	emit := func(res recorder.Result) {
		res.RunID = r.opts.RunID
		r.record(res)
		if cb != nil {
			cb(res)
		}
	}

	level.Info(r.logger).Log("msg", "replay started", "entries", len(entries), "workers", r.opts.Workers,
		"policy", r.opts.Policy, "load", r.opts.LoadMultiplier)
	if f := r.opts.Filter; !f.Empty() {
		level.Info(r.logger).Log("msg", "filter active", "methods", strings.Join(f.Methods, ","),
			"paths", strings.Join(f.Paths, ","), "after", f.After, "before", f.Before)
	}

	start := r.clk.Now()
	dispatchErr := r.dispatch(ctx, p, entries, emit)

	graceCtx, cancel := context.WithTimeout(context.Background(), r.opts.ShutdownGrace)
	defer cancel()
	shutdownErr := p.Shutdown(graceCtx)

	stats := p.Stats()
	r.mu.Lock()
	r.summary.Dropped = stats.Dropped()
	r.summary.CallerRuns = stats.CallerRuns
	r.summary.WallDuration = r.clk.Since(start)
	r.summary.Interrupted = dispatchErr != nil
	r.mu.Unlock()

	summary := r.Snapshot()
	level.Info(r.logger).Log("msg", "replay finished", "attempts", summary.Attempts, "completed", summary.Completed,
		"failed", summary.Failed, "dropped", summary.Dropped, "wall", summary.WallDuration)

	if shutdownErr != nil {
		return summary, fmt.Errorf("shutting down workers: %w", shutdownErr)
	}
	if dispatchErr != nil {
		return summary, dispatchErr
	}
	return summary, nil
}

func (r *Replayer) dispatch(ctx context.Context, p *pool.Pool, entries []*ingest.Entry, emit func(recorder.Result)) error {
	var carry time.Duration
	for _, e := range entries {
		// Skipped entries keep their share of the schedule.
		carry += e.Delay
		if !r.opts.Filter.Match(e) {
			r.mu.Lock()
			r.summary.Filtered++
			r.mu.Unlock()
			continue
		}

		if err := clock.Sleep(ctx, r.clk, carry); err != nil {
			level.Warn(r.logger).Log("msg", "dispatch interrupted", "err", err)
			return err
		}
		carry = 0

		n := r.Attempts()
		r.mu.Lock()
		r.summary.Dispatched++
		r.summary.Attempts += n
		r.mu.Unlock()

		for attempt := 1; attempt <= n; attempt++ {
			err := p.Submit(func(tctx context.Context) {
				res := r.exec.Execute(tctx, e)
				res.Attempt = attempt
				emit(res)
			})
			switch {
			case err == nil:
			case errors.Is(err, pool.ErrRejected):
				level.Warn(r.logger).Log("msg", "request rejected", "path", e.Path, "attempt", attempt)
				emit(r.rejected(e, attempt))
			default:
				return fmt.Errorf("submitting request: %w", err)
			}
		}
	}
	return nil
}

func (r *Replayer) rejected(e *ingest.Entry, attempt int) recorder.Result {
	return recorder.Result{
		OriginalStatus:       e.Status,
		Status:               recorder.StatusFailed,
		OriginalTime:         e.Timestamp,
		ReplayTime:           r.clk.Now(),
		OriginalResponseTime: e.ResponseTime,
		Method:               e.Method.String(),
		Path:                 e.Path,
		URL:                  e.URL,
		Attempt:              attempt,
		Rejected:             true,
		Err:                  pool.ErrRejected.Error(),
	}
}

func (r *Replayer) record(res recorder.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.summary
	s.Completed++
	s.PerStatus[res.Status]++
	switch {
	case res.Rejected:
		s.Rejected++
		s.Failed++
		return
	case res.Failed():
		s.Failed++
	default:
		s.Succeeded++
	}
	s.ttfbSum += res.TTFB
	s.MaxTTFB = max(s.MaxTTFB, res.TTFB)
	s.MeanTTFB = s.ttfbSum / time.Duration(s.Completed-s.Rejected)
}

// Snapshot returns a copy of the current summary. It is safe to call while
// Run is in progress.
func (r *Replayer) Snapshot() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.summary
	s.PerStatus = make(map[int]int, len(r.summary.PerStatus))
	for k, v := range r.summary.PerStatus {
		s.PerStatus[k] = v
	}
	return &s
}
