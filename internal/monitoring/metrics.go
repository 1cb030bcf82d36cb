package monitoring

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the processing pipeline counters exposed on /metrics.
type Metrics struct {
	VideosUploaded    atomic.Uint64
	JobsStarted       atomic.Uint64
	JobsCompleted     atomic.Uint64
	JobsFailed        atomic.Uint64
	ActiveJobs        atomic.Int64
	FramesAggregated  atomic.Uint64
	DetectionsCounted atomic.Uint64
	LastJobDurationMs atomic.Uint64
	PersistenceErrors atomic.Uint64

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with its own Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name string
		help string
		fn   func() float64
	}{
		{"count_videos_uploaded_total", "Total videos accepted for processing",
			func() float64 { return float64(m.VideosUploaded.Load()) }},
		{"count_jobs_started_total", "Total processing jobs started",
			func() float64 { return float64(m.JobsStarted.Load()) }},
		{"count_jobs_completed_total", "Total processing jobs completed",
			func() float64 { return float64(m.JobsCompleted.Load()) }},
		{"count_jobs_failed_total", "Total processing jobs that failed",
			func() float64 { return float64(m.JobsFailed.Load()) }},
		{"count_jobs_active", "Jobs currently processing",
			func() float64 { return float64(m.ActiveJobs.Load()) }},
		{"count_frames_aggregated_total", "Total detection frames aggregated",
			func() float64 { return float64(m.FramesAggregated.Load()) }},
		{"count_detections_total", "Total detections observed across all jobs",
			func() float64 { return float64(m.DetectionsCounted.Load()) }},
		{"count_last_job_duration_ms", "Duration of the most recent job in milliseconds",
			func() float64 { return float64(m.LastJobDurationMs.Load()) }},
		{"count_persistence_errors_total", "Total store write failures after aggregation",
			func() float64 { return float64(m.PersistenceErrors.Load()) }},
	}

	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.fn,
		))
	}
}

// RecordJobDuration stores the wall-clock duration of the last job.
func (m *Metrics) RecordJobDuration(d time.Duration) {
	m.LastJobDurationMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
