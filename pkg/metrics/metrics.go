package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergesched_runs_total",
			Help: "Total number of scheduler runs by class and result",
		},
		[]string{"class", "result"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mergesched_run_duration_seconds",
			Help:    "Duration of a scheduler run in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"class"},
	)

	JobsDiscovered = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mergesched_jobs_discovered",
			Help: "Jobs discovered by the most recent run",
		},
		[]string{"class"},
	)

	// Admission metrics
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergesched_decisions_total",
			Help: "Total number of admission decisions by class and decision",
		},
		[]string{"class", "decision"},
	)

	// Job metrics
	JobsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergesched_jobs_started_total",
			Help: "Total number of merge processes started",
		},
		[]string{"class"},
	)

	JobsExecuting = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mergesched_jobs_executing",
			Help: "Merge processes currently executing",
		},
		[]string{"class"},
	)

	JobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergesched_jobs_finished_total",
			Help: "Total number of finished merge jobs by class and status",
		},
		[]string{"class", "status"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mergesched_job_duration_seconds",
			Help:    "Merge process run time in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"class"},
	)

	SecondaryCopyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergesched_secondary_copy_total",
			Help: "Outputs queued for secondary copy by class and result",
		},
		[]string{"class", "result"},
	)

	MarkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergesched_mark_complete_failures_total",
			Help: "Total number of completion marker failures",
		},
		[]string{"class"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(JobsDiscovered)
	prometheus.MustRegister(DecisionsTotal)
	prometheus.MustRegister(JobsStarted)
	prometheus.MustRegister(JobsExecuting)
	prometheus.MustRegister(JobsFinished)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(SecondaryCopyTotal)
	prometheus.MustRegister(MarkFailures)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
