package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codejudge_jobs_total",
			Help: "Total number of jobs by outcome",
		},
		[]string{"language", "status"}, // status: "ok", "compile_error", "error"
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codejudge_stage_duration_ms",
			Help:    "Wall-clock duration of a stage in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"language", "phase"}, // phase: "compile", "run", "total"
	)

	TimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codejudge_timeouts_total",
			Help: "Processes killed at their deadline",
		},
		[]string{"language", "phase"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codejudge_queue_depth",
			Help: "Current number of jobs in the queue",
		},
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codejudge_active_workers",
			Help: "Number of workers currently processing jobs",
		},
	)

	ActiveWorkspaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codejudge_active_workspaces",
			Help: "Scratch directories currently allocated",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codejudge_rate_limit_hits_total",
			Help: "Total number of requests rejected by rate limiter",
		},
	)
)
