package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_saved_total",
		Help: "Total number of new orders written to the workbook",
	})

	OrdersUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_updated_total",
		Help: "Total number of edited orders written back to the workbook",
	})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_deleted_total",
		Help: "Total number of orders removed from the workbook",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	OrderSearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_searches_total",
		Help: "Total number of order lookups served",
	})

	SerialsMintedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serials_minted_total",
		Help: "Total number of item serials assigned, per numbering group",
	}, []string{"group"})

	StoreBusyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_busy_total",
		Help: "Total number of writes rejected because the workbook was locked",
	})

	StoreSaveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_save_latency_seconds",
		Help:    "Latency of workbook mutation batches",
		Buckets: prometheus.DefBuckets,
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of reads served from a valid cache entry",
	})

	CacheRebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_rebuilds_total",
		Help: "Total number of full cache rebuilds from the workbook",
	})

	CacheRebuildLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_rebuild_latency_seconds",
		Help:    "Latency of full cache rebuilds",
		Buckets: prometheus.DefBuckets,
	})

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
