// Package metrics exposes replay progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
	"github.com/SmitUplenchwar2687/rhythm/internal/replay"
)

const namespace = "rhythm"

// Collector owns a private registry so several runs in one process (tests)
// never collide on the default one.
type Collector struct {
	reg *prometheus.Registry

	results   *prometheus.CounterVec
	ttfb      prometheus.Histogram
	latency   *prometheus.HistogramVec
	lines     *prometheus.CounterVec
	entries   prometheus.Gauge
	runSource func() *replay.Summary
}

// New registers all metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		reg: reg,
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Replayed request attempts by observed status class.",
		}, []string{"class"}),
		ttfb: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ttfb_seconds",
			Help:      "Time to first byte of replayed requests that got a response.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_delta_seconds",
			Help:      "Replayed TTFB minus the original response time, by method.",
			Buckets:   []float64{-1, -0.1, -0.01, 0, 0.01, 0.1, 1, 10},
		}, []string{"method"}),
		lines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_lines_total",
			Help:      "Log lines read, by outcome (entry or skip reason).",
		}, []string{"outcome"}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_entries",
			Help:      "Entries in the replay schedule.",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inflight_attempts",
		Help:      "Attempts submitted but not yet finished or dropped.",
	}, func() float64 {
		s := c.summary()
		if s == nil {
			return 0
		}
		return float64(s.Attempts - s.Completed - s.Dropped)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatched_entries",
		Help:      "Entries dispatched so far.",
	}, func() float64 {
		if s := c.summary(); s != nil {
			return float64(s.Dispatched)
		}
		return 0
	})

	return c
}

// Track makes the gauge functions read from fn, typically
// (*replay.Replayer).Snapshot. Call it before serving metrics.
func (c *Collector) Track(fn func() *replay.Summary) {
	c.runSource = fn
}

func (c *Collector) summary() *replay.Summary {
	if c.runSource == nil {
		return nil
	}
	return c.runSource()
}

// ObserveIngest records the outcome of an ingestion run.
func (c *Collector) ObserveIngest(stats ingest.Stats) {
	c.lines.WithLabelValues("entry").Add(float64(stats.Entries))
	for reason, n := range stats.Skipped {
		c.lines.WithLabelValues(string(reason)).Add(float64(n))
	}
	c.entries.Set(float64(stats.Entries))
}

// Write implements recorder.Sink.
func (c *Collector) Write(res recorder.Result) error {
	c.results.WithLabelValues(StatusClass(res)).Inc()
	if res.Failed() {
		return nil
	}

	ttfb := res.TTFB.Seconds()
	c.ttfb.Observe(ttfb)
	if res.OriginalResponseTime != nil {
		c.latency.WithLabelValues(res.Method).Observe(ttfb - *res.OriginalResponseTime)
	}
	return nil
}

// Close implements recorder.Sink.
func (c *Collector) Close() error { return nil }

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// StatusClass buckets a result as "rejected", "failed" or "2xx".."5xx".
func StatusClass(res recorder.Result) string {
	switch {
	case res.Rejected:
		return "rejected"
	case res.Failed():
		return "failed"
	case res.Status < 100 || res.Status > 599:
		return "other"
	default:
		return strconv.Itoa(res.Status/100) + "xx"
	}
}
