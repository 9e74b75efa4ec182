// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_processed_total",
			Help: "Total notification events processed, by outcome",
		},
		[]string{"outcome"},
	)

	FanoutCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_fanout_candidates",
			Help:    "Candidate recipients resolved per event",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	DedupSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_dedup_suppressed_total",
			Help: "Candidates suppressed by the dedup window",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_notifications_sent_total",
			Help: "Notification records persisted, by event type",
		},
		[]string{"event_type"},
	)

	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_notifications_failed_total",
			Help: "Notification records that failed to persist",
		},
	)

	PushPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_push_publish_failures_total",
			Help: "Push transport publishes that failed (best effort, swallowed)",
		},
	)

	DeliveryMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_messages_total",
			Help: "Push payloads handled by the delivery router, by result",
		},
		[]string{"result"},
	)

	RemindersSurfaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_surfaced_total",
			Help: "Reminders surfaced by the scheduler, by session type",
		},
		[]string{"type"},
	)
)
