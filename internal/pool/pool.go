// Package pool is a fixed-size worker pool with a bounded task queue and a
// selectable policy for submissions that find the queue full.
package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	// ErrRejected is returned by Submit under PolicyAbort when the queue is full.
	ErrRejected = errors.New("task rejected: queue full")
	// ErrClosed is returned by Submit after Shutdown has begun.
	ErrClosed = errors.New("pool is shut down")
	// ErrShutdownTimeout means queued work was abandoned because the grace
	// period ran out.
	ErrShutdownTimeout = errors.New("shutdown grace period exceeded")
	// ErrStuckWorkers means workers ignored cancellation after the grace period.
	ErrStuckWorkers = errors.New("workers did not stop after cancellation")
)

// Policy decides what happens to a submission when the queue is full.
type Policy int

const (
	// PolicyAbort rejects the task with ErrRejected.
	PolicyAbort Policy = iota
	// PolicyCallerRuns runs the task on the submitting goroutine.
	PolicyCallerRuns
	// PolicyDiscard drops the new task.
	PolicyDiscard
	// PolicyDiscardOldest evicts the oldest queued task and enqueues the new one.
	PolicyDiscardOldest
)

var policyNames = map[Policy]string{
	PolicyAbort:         "abort",
	PolicyCallerRuns:    "caller_runs",
	PolicyDiscard:       "discard",
	PolicyDiscardOldest: "discard_oldest",
}

// PolicyNames lists the accepted policy names.
func PolicyNames() []string {
	return []string{"abort", "caller_runs", "discard", "discard_oldest"}
}

// ParsePolicy accepts the names from PolicyNames. Dashes are treated as
// underscores.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown queue policy %q (want one of %s)", s, strings.Join(PolicyNames(), ", "))
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Task is a unit of work. ctx is canceled when Shutdown gives up waiting.
type Task func(ctx context.Context)

const (
	DefaultQueueCapacity = 1000
	defaultForceWait     = 5 * time.Second
)

// Options configures a Pool.
type Options struct {
	Workers       int
	QueueCapacity int // <= 0 means DefaultQueueCapacity
	Policy        Policy
	// ForceWait bounds how long Shutdown waits for workers after canceling
	// their context. Zero means 5s.
	ForceWait time.Duration
	Logger    log.Logger
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted  int `json:"submitted"`
	Completed  int `json:"completed"`
	Rejected   int `json:"rejected"`
	Discarded  int `json:"discarded"`
	Evicted    int `json:"evicted"`
	CallerRuns int `json:"caller_runs"`
	Abandoned  int `json:"abandoned"`
	Panicked   int `json:"panicked"`
	Queued     int `json:"queued"`
	Active     int `json:"active"`
}

// Dropped counts submitted tasks that will never run.
func (s Stats) Dropped() int {
	return s.Discarded + s.Evicted + s.Abandoned
}

// Pool runs tasks on a fixed set of goroutines.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	queue    *list.List
	capacity int
	policy   Policy
	closed   bool
	stats    Stats

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	forceWait time.Duration
	logger    log.Logger
}

// New starts opts.Workers goroutines.
func New(opts Options) (*Pool, error) {
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("pool needs at least one worker, got %d", opts.Workers)
	}
	if _, ok := policyNames[opts.Policy]; !ok {
		return nil, fmt.Errorf("unknown queue policy %d", opts.Policy)
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.ForceWait <= 0 {
		opts.ForceWait = defaultForceWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:     list.New(),
		capacity:  opts.QueueCapacity,
		policy:    opts.Policy,
		ctx:       ctx,
		cancel:    cancel,
		forceWait: opts.ForceWait,
		logger:    log.With(logger, "component", "pool"),
	}
	p.notEmpty = sync.NewCond(&p.mu)

	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go p.worker()
	}
	return p, nil
}

// Submit enqueues t, applying the pool's policy when the queue is full.
// Under PolicyCallerRuns the call returns after t has run.
func (p *Pool) Submit(t Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.stats.Submitted++

	if p.queue.Len() < p.capacity {
		p.queue.PushBack(t)
		p.notEmpty.Signal()
		p.mu.Unlock()
		return nil
	}

	switch p.policy {
	case PolicyAbort:
		p.stats.Rejected++
		p.mu.Unlock()
		return ErrRejected

	case PolicyDiscard:
		p.stats.Discarded++
		p.mu.Unlock()
		return nil

	case PolicyDiscardOldest:
		p.queue.Remove(p.queue.Front())
		p.stats.Evicted++
		p.queue.PushBack(t)
		p.notEmpty.Signal()
		p.mu.Unlock()
		return nil

	default: // PolicyCallerRuns
		p.stats.CallerRuns++
		p.stats.Active++
		p.mu.Unlock()
		p.run(t)
		return nil
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Queued = p.queue.Len()
	return s
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish. If ctx ends first, queued tasks are abandoned, running tasks see
// their context canceled, and Shutdown waits at most ForceWait more for
// workers to return.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.notEmpty.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
	}

	p.mu.Lock()
	abandoned := p.queue.Len()
	p.queue.Init()
	p.stats.Abandoned += abandoned
	active := p.stats.Active
	p.mu.Unlock()

	level.Warn(p.logger).Log("msg", "grace period exceeded, canceling tasks", "abandoned", abandoned, "active", active)
	p.cancel()

	select {
	case <-done:
		return fmt.Errorf("%w: %d queued tasks abandoned", ErrShutdownTimeout, abandoned)
	case <-time.After(p.forceWait):
		return fmt.Errorf("%w: %d still running after %s", ErrStuckWorkers, active, p.forceWait)
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.closed {
			p.notEmpty.Wait()
		}
		if p.queue.Len() == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue.Remove(p.queue.Front()).(Task)
		p.stats.Active++
		p.mu.Unlock()

		p.run(t)
	}
}

// run executes t and books it as completed. Active must already be counted.
func (p *Pool) run(t Task) {
	defer func() {
		r := recover()

		p.mu.Lock()
		p.stats.Active--
		p.stats.Completed++
		if r != nil {
			p.stats.Panicked++
		}
		p.mu.Unlock()

		if r != nil {
			level.Error(p.logger).Log("msg", "task panicked", "panic", fmt.Sprint(r))
		}
	}()

	t(p.ctx)
}
