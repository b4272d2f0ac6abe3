// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "courier"

var (
	// ChannelSends counts provider send attempts by channel and outcome (success, failure).
	ChannelSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_sends_total",
			Help:      "Provider send attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// ChannelSendDuration observes provider call latency in seconds.
	ChannelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_send_duration_seconds",
			Help:      "Provider send latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"channel"},
	)

	// QueueEntries counts processed queue entries by outcome (completed, retried, failed, skipped).
	QueueEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_entries_total",
			Help:      "Queue entries processed by outcome",
		},
		[]string{"outcome"},
	)

	// QueueTickDuration observes the duration of one processor tick.
	QueueTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_tick_duration_seconds",
			Help:      "Duration of one queue processing tick",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// WebhookEvents counts inbound provider events by type and outcome.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound delivery events by type and outcome",
		},
		[]string{"event", "outcome"},
	)

	// SweptRows counts rows removed by the retention sweep per collection.
	SweptRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_swept_total",
			Help:      "Rows deleted by the retention sweep",
		},
		[]string{"collection"},
	)

	// IntakeMessages counts consumed intake messages by outcome (enqueued, rejected, requeued).
	IntakeMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_messages_total",
			Help:      "Intake messages by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordChannelSend records one provider send.
func RecordChannelSend(channel string, success bool, d time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	ChannelSends.WithLabelValues(channel, outcome).Inc()
	ChannelSendDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// AddQueueEntries adds n entries with the given outcome.
func AddQueueEntries(outcome string, n int) {
	if n > 0 {
		QueueEntries.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveQueueTick records a processor tick duration.
func ObserveQueueTick(d time.Duration) {
	QueueTickDuration.Observe(d.Seconds())
}

// IncWebhookEvent counts one inbound event.
func IncWebhookEvent(event, outcome string) {
	WebhookEvents.WithLabelValues(event, outcome).Inc()
}

// AddSwept adds n deleted rows for collection.
func AddSwept(collection string, n int) {
	if n > 0 {
		SweptRows.WithLabelValues(collection).Add(float64(n))
	}
}

// IncIntake counts one intake message.
func IncIntake(outcome string) {
	IntakeMessages.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
