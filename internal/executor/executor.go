// Package executor sends replayed requests and measures time to first byte.
package executor

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"github.com/SmitUplenchwar2687/rhythm/internal/clock"
	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 30 * time.Second

	// connsPerWorker sizes the connection pool relative to the worker count
	// so workers never queue behind each other for a connection.
	connsPerWorker = 1.5

	// userAgent is sent when the log line carries none.
	userAgent = "rhythm"
)

// Options configures an Executor.
type Options struct {
	Workers            int
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	InsecureSkipVerify bool
	// CloseAfterFirstByte stops each attempt once response headers arrive
	// and closes the connection instead of reusing it.
	CloseAfterFirstByte bool
	Username            string
	Password            string
	Clock               clock.Clock
}

// Executor sends requests over one shared, pooled HTTP client. Safe for
// concurrent use.
type Executor struct {
	client *http.Client
	opts   Options
	clk    clock.Clock
}

// PoolSize returns the connection pool size used for the given worker count.
func PoolSize(workers int) int {
	return int(math.Ceil(float64(max(workers, 1)) * connsPerWorker))
}

// New builds the HTTP client.
func New(opts Options) (*Executor, error) {
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("executor needs a positive worker count, got %d", opts.Workers)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}

	size := PoolSize(opts.Workers)
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          size,
		MaxIdleConnsPerHost:   size,
		MaxConnsPerHost:       size,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
	}

	client := &http.Client{
		Transport: transport,
		// Redirects are replayed as the origin answered them.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Executor{client: client, opts: opts, clk: opts.Clock}, nil
}

// Execute sends one attempt for e. Transport failures are not returned as
// errors; they yield a result with recorder.StatusFailed and the elapsed
// time as TTFB.
func (x *Executor) Execute(ctx context.Context, e *ingest.Entry) recorder.Result {
	res := recorder.Result{
		OriginalStatus:       e.Status,
		OriginalTime:         e.Timestamp,
		ReplayTime:           x.clk.Now(),
		OriginalResponseTime: e.ResponseTime,
		Method:               e.Method.String(),
		Path:                 e.Path,
		URL:                  e.URL,
	}

	status, ttfb, err := x.do(ctx, e)
	res.Status = status
	res.TTFB = ttfb
	if err != nil {
		res.Status = recorder.StatusFailed
		res.Err = err.Error()
	}
	return res
}

func (x *Executor) do(ctx context.Context, e *ingest.Entry) (int, time.Duration, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := x.newRequest(ctx, e)
	if err != nil {
		return recorder.StatusFailed, 0, err
	}

	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := x.client.Do(req)
	if err != nil {
		return recorder.StatusFailed, time.Since(start), err
	}
	if firstByte.IsZero() {
		firstByte = time.Now()
	}
	ttfb := firstByte.Sub(start)

	if x.opts.CloseAfterFirstByte {
		resp.Body.Close()
		return resp.StatusCode, ttfb, nil
	}

	body := &stallReader{r: resp.Body, timeout: x.opts.ReadTimeout, cancel: cancel}
	_, err = io.Copy(io.Discard, body)
	resp.Body.Close()
	if body.stalled.Load() {
		return resp.StatusCode, ttfb, fmt.Errorf("reading response body: no data for %s", x.opts.ReadTimeout)
	}
	if err != nil {
		return resp.StatusCode, ttfb, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, ttfb, nil
}

// stallReader cancels the request when a single Read waits longer than
// timeout. ResponseHeaderTimeout stops applying once headers arrive, so the
// body needs its own bound.
type stallReader struct {
	r       io.Reader
	timeout time.Duration
	cancel  context.CancelFunc
	timer   *time.Timer
	stalled atomic.Bool
}

func (s *stallReader) Read(p []byte) (int, error) {
	if s.timer == nil {
		s.timer = time.AfterFunc(s.timeout, func() {
			s.stalled.Store(true)
			s.cancel()
		})
	} else {
		s.timer.Reset(s.timeout)
	}
	n, err := s.r.Read(p)
	s.timer.Stop()
	return n, err
}

func (x *Executor) newRequest(ctx context.Context, e *ingest.Entry) (*http.Request, error) {
	if e.Method == ingest.MethodUnknown {
		return nil, ingest.ErrUnsupportedMethod
	}

	req, err := http.NewRequestWithContext(ctx, e.Method.String(), e.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	ua := e.UserAgent
	if ua == "" {
		ua = userAgent
	}
	req.Header.Set("User-Agent", ua)
	if e.Referer != "" {
		req.Header.Set("Referer", e.Referer)
	}
	if x.opts.Username != "" || x.opts.Password != "" {
		req.SetBasicAuth(x.opts.Username, x.opts.Password)
	}
	if x.opts.CloseAfterFirstByte {
		req.Close = true
	}
	return req, nil
}

// Close releases idle connections.
func (x *Executor) Close() error {
	x.client.CloseIdleConnections()
	return nil
}
