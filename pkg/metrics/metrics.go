// Package metrics holds the Prometheus collectors updated by crawl runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTruncated = "truncated"
	OutcomeFailed    = "failed"
)

// Run summarises one crawl for recording.
type Run struct {
	Source   string
	Outcome  string
	Since    int64
	Pages    int
	Inserted int
	Skipped  int
	Duration time.Duration
	Finished time.Time
}

// Metrics owns a private registry so tests and the textfile writer see only crawl series.
type Metrics struct {
	reg *prometheus.Registry

	runs        *prometheus.CounterVec
	events      *prometheus.CounterVec
	pages       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	cursor      *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

// New registers the crawl collectors. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locale",
		Subsystem: "crawl",
		Name:      "runs_total",
		Help:      "Crawl runs by source and outcome",
	}, []string{"source", "outcome"})
	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locale",
		Subsystem: "crawl",
		Name:      "events_total",
		Help:      "Events seen by the writer, by result",
	}, []string{"source", "result"})
	m.pages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locale",
		Subsystem: "crawl",
		Name:      "pages_total",
		Help:      "Pages requested from the source",
	}, []string{"source"})
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "locale",
		Subsystem: "crawl",
		Name:      "duration_seconds",
		Help:      "Wall time of a crawl run",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"source"})
	m.cursor = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "locale",
		Subsystem: "crawl",
		Name:      "cursor",
		Help:      "since_id used by the latest run",
	}, []string{"source"})
	m.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "locale",
		Subsystem: "crawl",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last run that did not fail",
	}, []string{"source"})

	m.reg.MustRegister(m.runs, m.events, m.pages, m.duration, m.cursor, m.lastSuccess)
	if withRuntime {
		m.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveRun records r. A nil receiver is a no-op.
func (m *Metrics) ObserveRun(r Run) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(r.Source, r.Outcome).Inc()
	m.events.WithLabelValues(r.Source, "inserted").Add(float64(r.Inserted))
	m.events.WithLabelValues(r.Source, "skipped").Add(float64(r.Skipped))
	m.pages.WithLabelValues(r.Source).Add(float64(r.Pages))
	m.duration.WithLabelValues(r.Source).Observe(r.Duration.Seconds())
	m.cursor.WithLabelValues(r.Source).Set(float64(r.Since))
	if r.Outcome != OutcomeFailed {
		finished := r.Finished
		if finished.IsZero() {
			finished = time.Now()
		}
		m.lastSuccess.WithLabelValues(r.Source).Set(float64(finished.Unix()))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// WriteTextfile writes the registry for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
