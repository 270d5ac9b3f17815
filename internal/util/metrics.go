package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders committed",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of order placements that did not commit",
	}, []string{"reason"})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_placement_latency_seconds",
		Help:    "Latency of the order placement transaction",
		Buckets: prometheus.DefBuckets,
	})

	OrderValueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_value_total",
		Help: "Sum of committed order totals",
	})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_changes_total",
		Help: "Total number of order status changes",
	}, []string{"to"})

	OrdersPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_purged_total",
		Help: "Total number of orders removed by the admin reset",
	})

	InventoryReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed inventory reservations",
	}, []string{"reason"})

	InventoryLowStockTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_low_stock_total",
		Help: "Reservations that left a product at or below its low stock threshold",
	}, []string{"product_id"})

	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_idempotent_replays_total",
		Help: "Placements answered from a previously committed idempotency key",
	})

	AnalyticsCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_cache_requests_total",
		Help: "Revenue analytics cache lookups",
	}, []string{"result"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_consumed_total",
		Help: "Order events handled by the projection worker",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
