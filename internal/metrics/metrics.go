// Package metrics wires process-wide prometheus collectors for the
// sync, transform, and HTTP-serving paths (§2 DOMAIN STACK).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every collector atomsync exposes on /metrics.
type Registry struct {
	SyncRunsTotal       *prometheus.CounterVec
	SyncAtomsCreated    *prometheus.CounterVec
	SyncAtomsUpdated    *prometheus.CounterVec
	SyncAtomsTombstoned *prometheus.CounterVec
	ConsecutiveFailures *prometheus.GaugeVec
	ReviewQueueDepth    prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers every collector against reg and returns the Registry
// handle components hold onto to record observations.
func New(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		SyncRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "atomsync_sync_runs_total",
			Help: "Completed sync runs by collection and final status.",
		}, []string{"collection", "status"}),
		SyncAtomsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "atomsync_sync_atoms_created_total",
			Help: "Staging rows created per collection.",
		}, []string{"collection"}),
		SyncAtomsUpdated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "atomsync_sync_atoms_updated_total",
			Help: "Staging rows updated per collection.",
		}, []string{"collection"}),
		SyncAtomsTombstoned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "atomsync_sync_atoms_tombstoned_total",
			Help: "Staging rows tombstoned per collection.",
		}, []string{"collection"}),
		ConsecutiveFailures: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atomsync_checkpoint_consecutive_failures",
			Help: "Current consecutive pull failures per collection checkpoint.",
		}, []string{"collection"}),
		ReviewQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "atomsync_review_queue_depth",
			Help: "Pending review-queue items awaiting operator disposition.",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "atomsync_http_requests_total",
			Help: "HTTP requests served, by route and status code.",
		}, []string{"route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "atomsync_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveSyncRun records one collection's outcome within a run.
func (r *Registry) ObserveSyncRun(collection, status string, created, updated, tombstoned int) {
	r.SyncRunsTotal.WithLabelValues(collection, status).Inc()
	r.SyncAtomsCreated.WithLabelValues(collection).Add(float64(created))
	r.SyncAtomsUpdated.WithLabelValues(collection).Add(float64(updated))
	r.SyncAtomsTombstoned.WithLabelValues(collection).Add(float64(tombstoned))
}
