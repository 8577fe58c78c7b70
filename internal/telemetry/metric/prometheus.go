package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rosiels"

// Outcome label values.
const (
	ResultDone    = "done"
	ResultAborted = "aborted"
	ResultSkipped = "skipped"
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultStarted = "started"
)

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	syncRuns      *prometheus.CounterVec
	syncDuration  prometheus.Histogram
	notifications *prometheus.CounterVec
	launches      *prometheus.CounterVec
}

// NewRegistry creates a registry with the rosiels metrics and the Go runtime
// collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Credential synchronization sweeps by outcome.",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Wall time of a synchronization sweep, persistence included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "notifications_total",
			Help:      "didChangeConfiguration notifications by outcome.",
		}, []string{"result"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "launches_total",
			Help:      "Worker process launch attempts by outcome.",
		}, []string{"result"}),
	}

	r.reg.MustRegister(
		r.syncRuns,
		r.syncDuration,
		r.notifications,
		r.launches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Registerer returns the underlying registerer for components that expose
// their own collectors (e.g. the secure store size gauges).
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.reg
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveSync records the outcome and duration of one sweep.
func (r *Registry) ObserveSync(result string, seconds float64) {
	if r == nil {
		return
	}
	r.syncRuns.WithLabelValues(result).Inc()
	r.syncDuration.Observe(seconds)
}

// CountNotification records one notification attempt.
func (r *Registry) CountNotification(result string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(result).Inc()
}

// CountLaunch records one worker launch attempt.
func (r *Registry) CountLaunch(result string) {
	if r == nil {
		return
	}
	r.launches.WithLabelValues(result).Inc()
}
