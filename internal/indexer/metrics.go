package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus collectors of the block loop
type Metrics struct {
	events        *prometheus.CounterVec
	blockHeight   prometheus.Gauge
	handlerErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subgraph",
			Name:      "events_total",
			Help:      "Total events applied to the entity store, by event name.",
		}, []string{"event"}),
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "subgraph",
			Name:      "block_height",
			Help:      "Last block whose events were committed.",
		}),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subgraph",
			Name:      "handler_errors_total",
			Help:      "Total blocks rolled back because a handler failed.",
		}),
	}
	reg.MustRegister(m.events, m.blockHeight, m.handlerErrors)
	return m
}
