package indexer

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// SetBackoff replaces the RPC retry policy of a runner
func SetBackoff(r Runner, newBackoff func() backoff.BackOff) {
	r.(*runner).newBackoff = newBackoff
}

func EventsTotal(m *Metrics, event string) float64 {
	return testutil.ToFloat64(m.events.WithLabelValues(event))
}

func BlockHeight(m *Metrics) float64 {
	return testutil.ToFloat64(m.blockHeight)
}

func HandlerErrors(m *Metrics) float64 {
	return testutil.ToFloat64(m.handlerErrors)
}
