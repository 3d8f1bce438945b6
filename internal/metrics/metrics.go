// Package metrics exposes Prometheus instruments for the scheduler and engine passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	metricPrefix = "seasonal_"

	PassMaterialize = "materialize"
	PassExecute     = "execute"

	ResultSuccess  = "success"
	ResultError    = "error"
	ResultSkipped  = "skipped"
	ResultDeferred = "deferred"
)

// Recorder owns a registry and the instruments registered in it.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	windowsCreated    prometheus.Counter
	windowsUpdated    prometheus.Counter
	ruleFailures      prometheus.Counter
	entries           *prometheus.CounterVec
	closeouts         *prometheus.CounterVec
	unprotected       prometheus.Counter
	resolveFailures   prometheus.Counter
	passDuration      *prometheus.HistogramVec
	passErrors        *prometheus.CounterVec
	lastPassTimestamp *prometheus.GaugeVec
}

// New creates a Recorder with a private registry. Go runtime and process
// collectors are included so /metrics is useful on its own.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		windowsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "windows_created_total",
			Help: "Trading windows created by the materializer",
		}),
		windowsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "windows_updated_total",
			Help: "Trading windows rescheduled after a rule change",
		}),
		ruleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rule_failures_total",
			Help: "Rules skipped during materialization because of an error",
		}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "entries_total",
			Help: "Bracket entry attempts by result",
		}, []string{"result"}),
		closeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "closeouts_total",
			Help: "Closeout attempts by result",
		}, []string{"result"}),
		unprotected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "unprotected_entries_total",
			Help: "Entries left live without a confirmed protective stop",
		}),
		resolveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "contract_resolution_failures_total",
			Help: "Windows skipped because the contract could not be resolved",
		}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "pass_duration_seconds",
			Help:    "Pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),
		passErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "pass_errors_total",
			Help: "Passes that could not run at all",
		}, []string{"pass"}),
		lastPassTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "last_pass_timestamp_seconds",
			Help: "Unix time the last pass finished",
		}, []string{"pass"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.windowsCreated,
		r.windowsUpdated,
		r.ruleFailures,
		r.entries,
		r.closeouts,
		r.unprotected,
		r.resolveFailures,
		r.passDuration,
		r.passErrors,
		r.lastPassTimestamp,
	)
	return r
}

// Registry returns the registry to serve from /metrics
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WindowsCreated adds n created windows
func (r *Recorder) WindowsCreated(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.windowsCreated.Add(float64(n))
}

// WindowsUpdated adds n updated windows
func (r *Recorder) WindowsUpdated(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.windowsUpdated.Add(float64(n))
}

// RuleFailed counts one rule skipped by the materializer
func (r *Recorder) RuleFailed() {
	if r == nil {
		return
	}
	r.ruleFailures.Inc()
}

// Entry records an entry attempt outcome
func (r *Recorder) Entry(result string) {
	if r == nil {
		return
	}
	r.entries.WithLabelValues(result).Inc()
}

// Closeout records a closeout outcome
func (r *Recorder) Closeout(result string) {
	if r == nil {
		return
	}
	r.closeouts.WithLabelValues(result).Inc()
}

// UnprotectedEntry counts an entry without a confirmed stop
func (r *Recorder) UnprotectedEntry() {
	if r == nil {
		return
	}
	r.unprotected.Inc()
}

// ResolveFailed counts a window skipped for contract resolution
func (r *Recorder) ResolveFailed() {
	if r == nil {
		return
	}
	r.resolveFailures.Inc()
}

// ObservePass records the duration of a finished pass. A non-nil err also
// counts a pass error.
func (r *Recorder) ObservePass(pass string, started time.Time, err error) {
	if r == nil {
		return
	}
	r.passDuration.WithLabelValues(pass).Observe(time.Since(started).Seconds())
	if err != nil {
		r.passErrors.WithLabelValues(pass).Inc()
		return
	}
	r.lastPassTimestamp.WithLabelValues(pass).SetToCurrentTime()
}
