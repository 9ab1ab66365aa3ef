package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "bus",
		Name:      "events_published_total",
		Help:      "Events handed to subscribers, counted once per delivery.",
	})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dwarpal",
		Subsystem: "bus",
		Name:      "events_dropped_total",
		Help:      "Events shed from full subscriber buffers.",
	})
)
