package decision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dwarpal",
	Subsystem: "decision",
	Name:      "directives_total",
	Help:      "Directives issued, by final action and rule.",
}, []string{"action", "rule"})
