// Package metrics exposes Prometheus collectors for the job lifecycle
// engine. Counters are incremented inline by the owning packages and served
// over /metrics in the API service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "genjobs_build_info",
		Help: "Build information, value is always 1.",
	}, []string{"service", "version"})

	// JobSubmissions counts jobs accepted by the submission service
	JobSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genjobs_job_submissions_total",
		Help: "Total number of jobs submitted.",
	})

	// DispatchFailures counts enqueues that failed and parked the job
	DispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genjobs_dispatch_failures_total",
		Help: "Total number of failed dispatch attempts.",
	})

	// JobRetries counts explicit retry requests that reset a job
	JobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genjobs_job_retries_total",
		Help: "Total number of job retries issued.",
	})

	// SweepRuns counts reconciliation sweep passes
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genjobs_sweep_runs_total",
		Help: "Total number of reconciliation sweep passes.",
	})

	// SweepRepairs counts stale jobs repaired per terminal result
	SweepRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genjobs_sweep_repairs_total",
		Help: "Total number of stale jobs repaired by the sweep.",
	}, []string{"result"})

	// SweepErrors counts per-job failures during a sweep pass
	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genjobs_sweep_errors_total",
		Help: "Total number of per-job errors during sweep passes.",
	})

	// JobExecutions counts worker-side job executions per result
	JobExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genjobs_job_executions_total",
		Help: "Total number of job executions by the worker.",
	}, []string{"result"})

	// MaintenanceRuns counts maintenance task attempts per result
	MaintenanceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genjobs_maintenance_runs_total",
		Help: "Total number of maintenance task attempts.",
	}, []string{"result"})
)

// Init records build information for the running service
func Init(service, version string) {
	buildInfo.WithLabelValues(service, version).Set(1)
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
