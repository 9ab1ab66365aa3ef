package workpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "workpool",
		Name:      "jobs_total",
		Help:      "Jobs accepted for execution.",
	})

	jobsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "workpool",
		Name:      "jobs_rejected_total",
		Help:      "Jobs whose context ended before a queue slot freed.",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dwarpal",
		Subsystem: "workpool",
		Name:      "job_duration_seconds",
		Help:      "Job execution latency.",
		Buckets:   prometheus.DefBuckets,
	})
)
