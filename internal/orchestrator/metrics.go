package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ringsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "rings_total",
		Help:      "Ring events admitted into the pipeline.",
	})

	queueRejectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "queue_rejects_total",
		Help:      "Ring events rejected because the session queue was full.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "sessions_active",
		Help:      "Session runners currently holding a pipeline slot.",
	})

	admitTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "admit_timeouts_total",
		Help:      "Sessions failed while waiting for a pipeline slot.",
	})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end pipeline latency per ring.",
		Buckets:   prometheus.DefBuckets,
	})

	stageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "stage_failures_total",
		Help:      "Pipeline stage failures, by stage.",
	}, []string{"stage"})

	degradedReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "degraded_reports_total",
		Help:      "Perception calls that fell back to an empty report.",
	})

	storeRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "store_retries_total",
		Help:      "Store operations retried after a transient failure.",
	})

	weaponAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "weapon_alerts_total",
		Help:      "Rings whose perception report flagged a weapon.",
	})

	finalActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "final_actions_total",
		Help:      "Completed pipelines, by final action.",
	}, []string{"action"})

	sessionsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "sessions_failed_total",
		Help:      "Sessions that ended in the error state.",
	})

	conversationTurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "orchestrator",
		Name:      "conversation_turns_total",
		Help:      "Follow-up conversation turns answered.",
	})
)
