// Package metrics exposes Prometheus collectors for the ingestion
// service's job pipeline, following the same promauto-registered
// GaugeVec/CounterVec style the rest of the stack uses for its own
// telemetry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this service registers.
type Metrics struct {
	registry *prometheus.Registry

	jobsQueued    prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	queueDepth    prometheus.Gauge
	activeWorkers prometheus.Gauge
	totalWorkers  prometheus.Gauge

	framesTotal      *prometheus.CounterVec // label: kind (only "total" is recorded)
	voiceFramesTotal prometheus.Counter
	encryptedCalls   prometheus.Counter

	processDuration prometheus.Histogram
}

// New creates a private Prometheus registry and registers every
// collector against it. A private registry per Metrics instance, rather
// than the global DefaultRegisterer the rest of the stack's collectors
// use, keeps repeated construction (as in tests, or a future multi-tenant
// mode) from panicking on duplicate registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		jobsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25_jobs_queued_total",
			Help: "Total jobs accepted into the processing queue.",
		}),
		jobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25_jobs_completed_total",
			Help: "Total jobs that finished successfully.",
		}),
		jobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25_jobs_failed_total",
			Help: "Total jobs that finished with a failure.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "p25_queue_depth",
			Help: "Current number of jobs waiting in the queue.",
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "p25_active_workers",
			Help: "Number of workers currently processing a job.",
		}),
		totalWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "p25_total_workers",
			Help: "Configured size of the worker pool.",
		}),
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "p25_frames_total",
			Help: "Total frames decoded; all frames are counted under kind=\"total\".",
		}, []string{"kind"}),
		voiceFramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25_voice_frames_total",
			Help: "Total LDU1/LDU2 voice frames decoded.",
		}),
		encryptedCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25_encrypted_calls_total",
			Help: "Total calls that carried at least one encrypted voice frame.",
		}),
		processDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "p25_job_process_seconds",
			Help:    "Wall-clock duration of a job's decode, from Processing to terminal state.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveJobQueued increments the queued counter.
func (m *Metrics) ObserveJobQueued() { m.jobsQueued.Inc() }

// ObserveJobFinished records a job's terminal outcome and its
// processing duration in seconds.
func (m *Metrics) ObserveJobFinished(succeeded bool, durationSeconds float64) {
	if succeeded {
		m.jobsCompleted.Inc()
	} else {
		m.jobsFailed.Inc()
	}
	m.processDuration.Observe(durationSeconds)
}

// SetPoolGauges updates the point-in-time pool gauges from a snapshot.
func (m *Metrics) SetPoolGauges(queueDepth, activeWorkers, totalWorkers int) {
	m.queueDepth.Set(float64(queueDepth))
	m.activeWorkers.Set(float64(activeWorkers))
	m.totalWorkers.Set(float64(totalWorkers))
}

// ObserveCall records one decoded call's frame counters.
func (m *Metrics) ObserveCall(totalFrames, voiceFrames int, encrypted bool) {
	m.framesTotal.WithLabelValues("total").Add(float64(totalFrames))
	m.voiceFramesTotal.Add(float64(voiceFrames))
	if encrypted {
		m.encryptedCalls.Inc()
	}
}

// Handler returns the HTTP handler for the /metrics scrape endpoint,
// serving this instance's private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
