package replyprov

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "reply_provider",
		Name:      "retries_total",
		Help:      "Retried reply provider calls.",
	})

	failuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "reply_provider",
		Name:      "failures_total",
		Help:      "Reply provider calls that exhausted their retries.",
	})
)
