package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricShares = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sharebridge",
		Name:      "shares_total",
		Help:      "Shares accepted by the delivery coordinator, by target kind.",
	}, []string{"kind"})
	metricAttemptFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sharebridge",
		Name:      "delivery_attempt_failures_total",
		Help:      "Failed delivery attempts, by reason.",
	}, []string{"reason"})
	metricOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sharebridge",
		Name:      "deliveries_total",
		Help:      "Finished pending deliveries, by outcome.",
	}, []string{"outcome"})
	metricPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sharebridge",
		Name:      "delivery_pending",
		Help:      "1 while a share is waiting for the destination surface.",
	})
)

func targetKind(r Route, imageMarker bool) string {
	switch {
	case imageMarker:
		return "image"
	case r.Payload == "":
		return "navigation"
	default:
		return "link"
	}
}
