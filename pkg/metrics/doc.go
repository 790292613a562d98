/*
Package metrics provides Prometheus metrics and health endpoints for the merge
scheduler.

All metrics are registered with the default registry at package init and served
by Handler. An Observer plugs into the scheduler and translates its events into
metric updates.

# Metrics

Runs:
  - mergesched_runs_total{class,result}: completed or preempted runs
  - mergesched_run_duration_seconds{class}: run wall time
  - mergesched_jobs_discovered{class}: jobs found by the latest discovery

Admission:
  - mergesched_decisions_total{class,decision}: PROCEED, WAIT, IGNORE, NOMEMORY, SKIP

Jobs:
  - mergesched_jobs_started_total{class}
  - mergesched_jobs_executing{class}
  - mergesched_jobs_finished_total{class,status}
  - mergesched_job_duration_seconds{class}
  - mergesched_secondary_copy_total{class,result}: queued or failed dirty-file appends
  - mergesched_mark_complete_failures_total{class}

A steadily climbing NOMEMORY or IGNORE counter with a flat jobs_started counter
means the host is under memory pressure or its disks are saturated with
transfers.

# Health

The daemon registers the probe, history and per-class components. /health
reports unhealthy when any component is unhealthy, /ready waits for the
critical components set with SetCriticalComponents, and /live always answers.

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
*/
package metrics
