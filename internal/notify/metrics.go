package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes delivery instrumentation for the notification engine.
type Metrics struct {
	eventsPublished  *prometheus.CounterVec
	delivered        prometheus.Counter
	dropped          prometheus.Counter
	deliveryFailures prometheus.Counter
	connections      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenthub_events_published_total",
			Help: "Domain events handed to the broadcaster, by event type.",
		}, []string{"type"}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_envelopes_delivered_total",
			Help: "Envelopes written to a client transport.",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_envelopes_dropped_total",
			Help: "Envelopes discarded because a client queue was full.",
		}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_delivery_failures_total",
			Help: "Transport send failures that evicted a connection.",
		}),
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agenthub_connections",
			Help: "Connections currently held by the registry.",
		}),
	}
}
