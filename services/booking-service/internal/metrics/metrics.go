package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "booking"

var (
	once sync.Once

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_query_duration_seconds",
			Help:      "Latency of availability operations including store reads.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_verdicts_total",
			Help:      "Count of booking validation verdicts by kind.",
		},
		[]string{"kind"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Count of booking attempts by result.",
		},
		[]string{"result"},
	)

	policyCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_cache_lookups_total",
			Help:      "Count of operating-hours cache lookups by result.",
		},
		[]string{"result"},
	)

	outboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Count of outbox events delivered to Kafka.",
		},
		[]string{"event_type"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(queryDuration, verdicts, bookings, policyCache, outboxPublished)
	})
}

func ObserveQuery(operation string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queryDuration.WithLabelValues(operation, outcome).Observe(took.Seconds())
}

// IncVerdict counts a validation outcome; an empty kind counts as "valid".
func IncVerdict(kind string) {
	if kind == "" {
		kind = "valid"
	}
	verdicts.WithLabelValues(kind).Inc()
}

func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

func IncPolicyCache(result string) {
	policyCache.WithLabelValues(result).Inc()
}

func IncOutboxPublished(eventType string) {
	outboxPublished.WithLabelValues(eventType).Inc()
}
