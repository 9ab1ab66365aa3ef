package action

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "action",
		Name:      "executions_total",
		Help:      "Executed directives, by action and outcome status.",
	}, []string{"action", "status"})

	ttsDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dwarpal",
		Subsystem: "action",
		Name:      "tts_duration_seconds",
		Help:      "Speech synthesis latency.",
		Buckets:   prometheus.DefBuckets,
	})
)
