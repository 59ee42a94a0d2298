package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_messages_enqueued_total",
		Help: "Total number of messages placed on the processing queue.",
	})

	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_messages_dropped_total",
		Help: "Total number of messages rejected due to a full queue.",
	})

	MessagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_messages_handled_total",
		Help: "Total number of messages handled, labelled by feature and outcome.",
	}, []string{"feature", "outcome"})

	MessageProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oracle_message_processing_duration_ms",
		Help:    "End-to-end message processing latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_queue_utilization_ratio",
		Help: "Current message queue utilization (0–1).",
	})

	DedupEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_dedup_entries",
		Help: "Transaction ids currently held by the deduplicator.",
	})

	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_provider_requests_total",
		Help: "External record queries, labelled by result (confirmed, empty, error).",
	}, []string{"result"})

	ProviderRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oracle_provider_request_duration_seconds",
		Help:    "External record query latency, including time spent waiting for a slot.",
		Buckets: prometheus.DefBuckets,
	})

	ProviderInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_provider_inflight",
		Help: "External record queries currently in flight.",
	})

	RepliesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_replies_published_total",
		Help: "Replies leaving the engine, labelled by status (ok, error, no_sink, held, dropped).",
	}, []string{"status"})
)
