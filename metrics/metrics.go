// Package metrics holds the Prometheus collectors shared by all services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_status_transitions_total",
			Help: "Accepted status transitions by entity and target status",
		},
		[]string{"entity", "to"},
	)

	RejectedTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_status_transitions_rejected_total",
			Help: "Rejected status transitions by entity",
		},
		[]string{"entity"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_upstream_requests_total",
			Help: "Calls to other services by target and outcome",
		},
		[]string{"service", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restaurant_upstream_request_duration_seconds",
			Help:    "Latency of calls to other services",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	StockReconciliationBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "restaurant_stock_reconciliation_backlog",
			Help: "Order items waiting for their stock decrement to be applied",
		},
	)

	StockReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_stock_reconciliations_total",
			Help: "Stock reconciliation attempts by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)
)

func Transition(entity, to string) {
	TransitionsTotal.WithLabelValues(entity, to).Inc()
}

func Rejected(entity string) {
	RejectedTransitionsTotal.WithLabelValues(entity).Inc()
}
