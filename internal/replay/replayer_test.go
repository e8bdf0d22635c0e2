package replay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/rhythm/internal/clock"
	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/pool"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
)

var epoch = time.Date(2023, 10, 10, 13, 55, 36, 0, time.UTC)

// makeEntries returns GET /0, /1, ... where entry i waits delays[i].
func makeEntries(delays ...time.Duration) []*ingest.Entry {
	entries := make([]*ingest.Entry, len(delays))
	ts := epoch
	for i, d := range delays {
		ts = ts.Add(d)
		entries[i] = &ingest.Entry{
			Line:      i + 1,
			Timestamp: ts,
			Method:    ingest.MethodGet,
			Path:      fmt.Sprintf("/%d", i),
			URL:       fmt.Sprintf("http://target/%d", i),
			Delay:     d,
		}
	}
	return entries
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []string
	block   chan struct{} // when set, Execute waits for it or for cancellation
	started chan string
	closed  atomic.Bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{started: make(chan string, 1024)}
}

func (f *fakeExecutor) Execute(ctx context.Context, e *ingest.Entry) recorder.Result {
	f.started <- e.Path
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return recorder.Result{Status: recorder.StatusFailed, Path: e.Path, Err: ctx.Err().Error()}
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, e.Path)
	f.mu.Unlock()

	return recorder.Result{Status: 200, Path: e.Path, Method: e.Method.String(), TTFB: 2 * time.Millisecond}
}

func (f *fakeExecutor) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

func newReplayer(t *testing.T, exec Executor, clk clock.Clock, opts Options) *Replayer {
	t.Helper()
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	r, err := New(exec, clk, opts)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil, Options{Workers: 1}); err == nil {
		t.Error("expected error for nil executor")
	}
	if _, err := New(newFakeExecutor(), nil, Options{}); err == nil {
		t.Error("expected error for zero workers")
	}
	if _, err := New(newFakeExecutor(), nil, Options{Workers: 1, LoadMultiplier: -1}); err == nil {
		t.Error("expected error for negative load multiplier")
	}
}

func TestReplayer_ReplaysEverything(t *testing.T) {
	exec := newFakeExecutor()
	vc := clock.NewInstantClock(epoch)
	r := newReplayer(t, exec, vc, Options{RunID: "run-1"})

	var mu sync.Mutex
	var results []recorder.Result
	summary, err := r.Run(context.Background(), makeEntries(0, time.Second, 2*time.Second, 0, 3*time.Second), func(res recorder.Result) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 5 || exec.count() != 5 {
		t.Fatalf("got %d results and %d executions, want 5", len(results), exec.count())
	}
	for _, res := range results {
		if res.RunID != "run-1" || res.Attempt != 1 {
			t.Errorf("result %s has run id %q attempt %d", res.Path, res.RunID, res.Attempt)
		}
	}
	if got := vc.Slept(); got != 6*time.Second {
		t.Errorf("clock slept %v, want 6s", got)
	}
	if summary.Completed != 5 || summary.Succeeded != 5 || summary.PerStatus[200] != 5 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Duration != 6*time.Second {
		t.Errorf("Duration = %v, want 6s", summary.Duration)
	}
	if summary.MeanTTFB != 2*time.Millisecond {
		t.Errorf("MeanTTFB = %v, want 2ms", summary.MeanTTFB)
	}
	if !exec.closed.Load() {
		t.Error("executor was not closed")
	}
}

func TestReplayer_WaitsForDelay(t *testing.T) {
	exec := newFakeExecutor()
	vc := clock.NewVirtualClock(epoch)
	r := newReplayer(t, exec, vc, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), makeEntries(0, 5*time.Second), nil)
		done <- err
	}()

	if got := <-exec.started; got != "/0" {
		t.Fatalf("first dispatch = %s, want /0", got)
	}
	waitFor(t, "dispatch loop to wait on the clock", func() bool { return vc.Waiters() == 1 })

	vc.Advance(4 * time.Second)
	select {
	case p := <-exec.started:
		t.Fatalf("%s dispatched before its delay elapsed", p)
	case <-time.After(20 * time.Millisecond):
	}

	vc.Advance(time.Second)
	if got := <-exec.started; got != "/1" {
		t.Fatalf("second dispatch = %s, want /1", got)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestReplayer_Attempts(t *testing.T) {
	tests := []struct {
		multiplier float64
		draw       float64
		want       int
	}{
		{0, 0, 1},
		{1, 0, 1},
		{2.5, 0.49, 3},
		{2.5, 0.5, 2},
		{0.25, 0.1, 1},
		{0.25, 0.9, 0},
		{3, 0, 3},
	}
	for _, tt := range tests {
		r := newReplayer(t, newFakeExecutor(), nil, Options{LoadMultiplier: tt.multiplier, Rand: fixedRand(tt.draw)})
		if got := r.Attempts(); got != tt.want {
			t.Errorf("Attempts() with m=%v draw=%v = %d, want %d", tt.multiplier, tt.draw, got, tt.want)
		}
	}
}

func TestReplayer_FractionalLoadRate(t *testing.T) {
	r := newReplayer(t, newFakeExecutor(), nil, Options{
		LoadMultiplier: 2.5,
		Rand:           rand.New(rand.NewPCG(1, 2)),
	})

	const trials = 10000
	thirds := 0
	for i := 0; i < trials; i++ {
		switch n := r.Attempts(); n {
		case 2:
		case 3:
			thirds++
		default:
			t.Fatalf("Attempts() = %d, want 2 or 3", n)
		}
	}

	rate := float64(thirds) / trials
	if rate < 0.47 || rate > 0.53 {
		t.Errorf("third-attempt rate = %.3f, want 0.5 +/- 0.03", rate)
	}
}

func TestReplayer_LoadScalingDuplicates(t *testing.T) {
	exec := newFakeExecutor()
	r := newReplayer(t, exec, clock.NewInstantClock(epoch), Options{LoadMultiplier: 2.5, Rand: fixedRand(0.1)})

	attempts := make(map[string][]int)
	var mu sync.Mutex
	summary, err := r.Run(context.Background(), makeEntries(0, time.Second), func(res recorder.Result) {
		mu.Lock()
		attempts[res.Path] = append(attempts[res.Path], res.Attempt)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Attempts != 6 || summary.Completed != 6 || summary.Dispatched != 2 {
		t.Errorf("summary = %+v, want 2 entries x 3 attempts", summary)
	}
	for path, got := range attempts {
		if len(got) != 3 {
			t.Errorf("%s got %d attempts, want 3", path, len(got))
		}
	}
}

// saturate runs three entries one second apart through a single worker with
// a one-slot queue. The first blocks the worker, the second fills the
// queue, and the third hits the policy. It returns once the third has been
// submitted, with a function that releases the worker and waits for Run.
func saturate(t *testing.T, policy pool.Policy, cb func(recorder.Result)) (*fakeExecutor, func() (*Summary, error)) {
	t.Helper()
	exec := newFakeExecutor()
	exec.block = make(chan struct{})
	vc := clock.NewVirtualClock(epoch)
	r := newReplayer(t, exec, vc, Options{Workers: 1, QueueCapacity: 1, Policy: policy})

	type outcome struct {
		s   *Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := r.Run(context.Background(), makeEntries(0, time.Second, time.Second, time.Second), cb)
		done <- outcome{s, err}
	}()

	<-exec.started
	for i := 0; i < 2; i++ {
		waitFor(t, "dispatch loop to wait on the clock", func() bool { return vc.Waiters() == 1 })
		vc.Advance(time.Second)
	}

	return exec, func() (*Summary, error) {
		// The last entry waits on the clock once the third was handled.
		waitFor(t, "last entry wait", func() bool { return vc.Waiters() == 1 })
		close(exec.block)
		vc.Advance(time.Second)
		o := <-done
		return o.s, o.err
	}
}

func TestReplayer_AbortRecordsRejection(t *testing.T) {
	var rejected atomic.Int32
	_, finish := saturate(t, pool.PolicyAbort, func(res recorder.Result) {
		if res.Rejected {
			rejected.Add(1)
			if res.Status != recorder.StatusFailed || res.Path != "/2" {
				t.Errorf("rejected result = %+v", res)
			}
		}
	})

	summary, err := finish()
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Load() != 1 || summary.Rejected != 1 {
		t.Errorf("rejections: callback %d, summary %d, want 1", rejected.Load(), summary.Rejected)
	}
	if summary.Completed != 4 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 4 results with 1 failure", summary)
	}
}

func TestReplayer_DiscardDropsSilently(t *testing.T) {
	var results atomic.Int32
	exec, finish := saturate(t, pool.PolicyDiscard, func(recorder.Result) { results.Add(1) })

	summary, err := finish()
	if err != nil {
		t.Fatal(err)
	}
	if results.Load() != 3 || summary.Dropped != 1 || summary.Rejected != 0 {
		t.Errorf("results %d, summary %+v; want 3 results and 1 dropped", results.Load(), summary)
	}
	if exec.count() != 3 {
		t.Errorf("executed %d, want 3", exec.count())
	}
}

func TestReplayer_DiscardOldestEvictsQueued(t *testing.T) {
	exec, finish := saturate(t, pool.PolicyDiscardOldest, nil)

	summary, err := finish()
	if err != nil {
		t.Fatal(err)
	}
	if summary.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", summary.Dropped)
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	want := []string{"/0", "/2", "/3"}
	if fmt.Sprint(exec.calls) != fmt.Sprint(want) {
		t.Errorf("executed %v, want %v (queued /1 evicted)", exec.calls, want)
	}
}

func TestReplayer_CallerRunsThrottlesDispatch(t *testing.T) {
	exec := newFakeExecutor()
	exec.block = make(chan struct{})
	vc := clock.NewVirtualClock(epoch)
	r := newReplayer(t, exec, vc, Options{Workers: 1, QueueCapacity: 1, Policy: pool.PolicyCallerRuns})

	done := make(chan *Summary, 1)
	go func() {
		s, _ := r.Run(context.Background(), makeEntries(0, time.Second, time.Second, time.Second), nil)
		done <- s
	}()

	<-exec.started
	for i := 0; i < 2; i++ {
		waitFor(t, "dispatch loop to wait on the clock", func() bool { return vc.Waiters() == 1 })
		vc.Advance(time.Second)
	}

	// /2 runs on the dispatch goroutine, so the clock is not consulted for /3.
	if got := <-exec.started; got != "/2" {
		t.Fatalf("caller ran %s, want /2", got)
	}
	time.Sleep(20 * time.Millisecond)
	if n := vc.Waiters(); n != 0 {
		t.Errorf("dispatch loop kept scheduling while running a task: %d waiters", n)
	}

	close(exec.block)
	waitFor(t, "final entry wait", func() bool { return vc.Waiters() == 1 })
	vc.Advance(time.Second)

	s := <-done
	if s.CallerRuns != 1 || s.Completed != 4 {
		t.Errorf("summary = %+v, want 1 caller run and 4 results", s)
	}
}

func TestReplayer_FilterKeepsCadence(t *testing.T) {
	entries := makeEntries(0, 5*time.Second, 5*time.Second)
	entries[1].Method = ingest.MethodPost

	vc := clock.NewInstantClock(epoch)
	exec := newFakeExecutor()
	r := newReplayer(t, exec, vc, Options{Filter: Filter{Methods: []string{"GET"}}})

	summary, err := r.Run(context.Background(), entries, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Filtered != 1 || summary.Dispatched != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if got := vc.Slept(); got != 10*time.Second {
		t.Errorf("clock slept %v, want 10s", got)
	}
}

func TestReplayer_NoEntries(t *testing.T) {
	exec := newFakeExecutor()
	summary, err := newReplayer(t, exec, clock.NewInstantClock(epoch), Options{}).Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Dispatched != 0 || exec.count() != 0 {
		t.Errorf("dispatched %d, executed %d; want nothing", summary.Dispatched, exec.count())
	}
	if !exec.closed.Load() {
		t.Error("executor was not closed")
	}
}

func TestReplayer_ContextCancellation(t *testing.T) {
	exec := newFakeExecutor()
	vc := clock.NewVirtualClock(epoch)
	r := newReplayer(t, exec, vc, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var summary *Summary
	go func() {
		var err error
		summary, err = r.Run(ctx, makeEntries(0, time.Hour, time.Hour), nil)
		done <- err
	}()

	<-exec.started
	waitFor(t, "dispatch loop to wait on the clock", func() bool { return vc.Waiters() == 1 })
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if !summary.Interrupted || summary.Dispatched != 1 || summary.Completed != 1 {
		t.Errorf("summary = %+v, want 1 dispatched and interrupted", summary)
	}
	if !exec.closed.Load() {
		t.Error("executor was not closed after interruption")
	}
}

func TestReplayer_ShutdownGraceExceeded(t *testing.T) {
	exec := newFakeExecutor()
	exec.block = make(chan struct{})
	defer close(exec.block)

	r := newReplayer(t, exec, clock.NewInstantClock(epoch), Options{
		Workers:       1,
		ShutdownGrace: 20 * time.Millisecond,
	})

	summary, err := r.Run(context.Background(), makeEntries(0, 0, 0), nil)
	if !errors.Is(err, pool.ErrShutdownTimeout) {
		t.Fatalf("Run() error = %v, want ErrShutdownTimeout", err)
	}
	if summary.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2 abandoned", summary.Dropped)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want the canceled in-flight attempt", summary.Failed)
	}
	if !exec.closed.Load() {
		t.Error("executor was not closed")
	}
}

func TestReplayer_SnapshotDuringRun(t *testing.T) {
	exec := newFakeExecutor()
	vc := clock.NewVirtualClock(epoch)
	r := newReplayer(t, exec, vc, Options{})

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), makeEntries(0, time.Minute), nil)
		close(done)
	}()

	<-exec.started
	waitFor(t, "first result", func() bool { return r.Snapshot().Completed == 1 })

	s := r.Snapshot()
	s.PerStatus[999] = 1
	if _, ok := r.Snapshot().PerStatus[999]; ok {
		t.Error("Snapshot() shares its PerStatus map")
	}

	waitFor(t, "dispatch loop to wait on the clock", func() bool { return vc.Waiters() == 1 })
	vc.Advance(time.Minute)
	<-done
}
