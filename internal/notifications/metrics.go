package notifications

import (
	"time"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = metrics.Namespace

var (
	scheduledQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "scheduled",
			Help:      "Number of scheduled notifications by status",
		},
		[]string{"status"},
	)

	pushOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "push_total",
			Help:      "Total push deliveries by outcome reason",
		},
		[]string{"reason"},
	)

	pushSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "push_duration_seconds",
			Help:      "Time to deliver one push notification",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	tokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "token_exchanges_total",
			Help:      "Total OAuth token exchanges by result",
		},
		[]string{"result"},
	)

	scheduledProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "scheduled_processed_total",
			Help:      "Total scheduled notifications processed by terminal status",
		},
		[]string{"status"},
	)

	scheduledPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "scheduled_purged_total",
			Help:      "Total terminal scheduled notifications removed by retention cleanup",
		},
	)
)

func recordPushOutcome(reason Reason, duration time.Duration) {
	pushOutcomes.WithLabelValues(string(reason)).Inc()
	if reason == ReasonDelivered || reason == ReasonProviderRejected || reason == ReasonTransport {
		pushSendDuration.Observe(duration.Seconds())
	}
}

// RecordTokenExchange records the result of an OAuth token exchange
// ("success", "cached" or "error").
func RecordTokenExchange(result string) {
	tokenExchanges.WithLabelValues(result).Inc()
}

func recordScheduledProcessed(status domain.ScheduledStatus) {
	scheduledProcessed.WithLabelValues(string(status)).Inc()
}

func recordCleanupPurged(count int64) {
	scheduledPurged.Add(float64(count))
}

// RecordScheduledStats updates scheduled notification gauges.
func RecordScheduledStats(stats *ScheduledStats) {
	scheduledQueueSize.WithLabelValues(string(domain.ScheduledStatusPending)).Set(float64(stats.Pending))
	scheduledQueueSize.WithLabelValues(string(domain.ScheduledStatusSent)).Set(float64(stats.Sent))
	scheduledQueueSize.WithLabelValues(string(domain.ScheduledStatusFailed)).Set(float64(stats.Failed))
	scheduledQueueSize.WithLabelValues(string(domain.ScheduledStatusCancelled)).Set(float64(stats.Cancelled))
}
