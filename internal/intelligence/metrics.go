package intelligence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "intelligence",
		Name:      "reports_total",
		Help:      "Intelligence reports produced, by intent.",
	}, []string{"intent"})

	escalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "intelligence",
		Name:      "escalations_total",
		Help:      "Reports that required escalation.",
	})

	contractViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "intelligence",
		Name:      "contract_violations_total",
		Help:      "Generated replies suppressed by the output contract, by rule.",
	}, []string{"rule"})
)
