// SPDX-License-Identifier: MPL-2.0

// Package metrics records build and fetch counters in a private Prometheus
// registry and writes them in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch results.
const (
	ResultFetched = "fetched"
	ResultPresent = "present"
	ResultFailed  = "failed"
)

// Recorder holds forge's collectors. A nil *Recorder ignores every observation.
type Recorder struct {
	registry *prometheus.Registry

	compileTotal       prometheus.Counter
	linkTotal          *prometheus.CounterVec
	fetchTotal         *prometheus.CounterVec
	fetchAttemptsTotal *prometheus.CounterVec
	buildDuration      prometheus.Histogram
}

// New creates a Recorder with its collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		compileTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forge_compile_total",
				Help: "Number of source files compiled.",
			},
		),
		linkTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_link_total",
				Help: "Number of link decisions by result.",
			},
			[]string{"result"},
		),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_fetch_total",
				Help: "Number of dependency fetches by backend and result.",
			},
			[]string{"backend", "result"},
		),
		fetchAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_fetch_attempts_total",
				Help: "Number of fetch attempts by backend, retries included.",
			},
			[]string{"backend"},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "forge_build_duration_seconds",
				Help:    "Time taken by a native build.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	r.registry.MustRegister(
		r.compileTotal,
		r.linkTotal,
		r.fetchTotal,
		r.fetchAttemptsTotal,
		r.buildDuration,
	)
	return r
}

// Compiled counts one compiler invocation.
func (r *Recorder) Compiled() {
	if r == nil {
		return
	}
	r.compileTotal.Inc()
}

// Linked counts one link decision.
func (r *Recorder) Linked(relinked bool) {
	if r == nil {
		return
	}
	result := "skipped"
	if relinked {
		result = "linked"
	}
	r.linkTotal.WithLabelValues(result).Inc()
}

// FetchAttempt counts one clone attempt for backend.
func (r *Recorder) FetchAttempt(backend string) {
	if r == nil {
		return
	}
	r.fetchAttemptsTotal.WithLabelValues(backend).Inc()
}

// Fetched counts a finished fetch with one of the Result constants.
func (r *Recorder) Fetched(backend, result string) {
	if r == nil {
		return
	}
	r.fetchTotal.WithLabelValues(backend, result).Inc()
}

// BuildFinished observes the duration of a build started at start.
func (r *Recorder) BuildFinished(start time.Time) {
	if r == nil {
		return
	}
	r.buildDuration.Observe(time.Since(start).Seconds())
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteFile atomically writes every metric to path in the textfile
// collector format.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
