package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all notification pipeline metrics
type Metrics struct {
	// Routing metrics
	EventsRouted       *prometheus.CounterVec
	AttemptsCreated    *prometheus.CounterVec
	AttemptsSuppressed *prometheus.CounterVec

	// Job queue metrics
	JobsProcessed        *prometheus.CounterVec
	JobsFailed           *prometheus.CounterVec
	JobProcessingLatency prometheus.Histogram
	JobQueueLag          prometheus.Histogram

	// Transport metrics
	PushTokensSent   prometheus.Counter
	PushTokensFailed prometheus.Counter
	DigestEmailsSent prometheus.Counter
	DigestStaleSkips prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates and registers all notification pipeline metrics
func New(namespace string) *Metrics {
	return &Metrics{
		EventsRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_routed_total",
			Help:      "Total number of notification events routed",
		}, []string{"domain", "audience"}),
		AttemptsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Total number of delivery attempts by channel and status",
		}, []string{"channel", "status"}),
		AttemptsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_suppressed_total",
			Help:      "Total number of suppressed delivery attempts by reason",
		}, []string{"reason"}),
		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Total number of successfully processed scheduled jobs",
		}, []string{"kind"}),
		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of failed scheduled jobs",
		}, []string{"kind"}),
		JobProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_processing_duration_seconds",
			Help:      "Time spent processing scheduled jobs",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		JobQueueLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_queue_lag_seconds",
			Help:      "Time between a job becoming due and it being claimed",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		}),
		PushTokensSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_tokens_sent_total",
			Help:      "Total number of device tokens successfully pushed to",
		}),
		PushTokensFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_tokens_failed_total",
			Help:      "Total number of device tokens that failed to push",
		}),
		DigestEmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_emails_sent_total",
			Help:      "Total number of digest emails sent",
		}),
		DigestStaleSkips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_stale_invocations_total",
			Help:      "Total number of digest invocations skipped by the staleness check",
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewUnregistered returns metrics backed by a private registry, for tests
// that construct the pipeline more than once per process.
func NewUnregistered(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		EventsRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_routed_total", Help: "routed events",
		}, []string{"domain", "audience"}),
		AttemptsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "delivery_attempts_total", Help: "delivery attempts",
		}, []string{"channel", "status"}),
		AttemptsSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "delivery_attempts_suppressed_total", Help: "suppressed attempts",
		}, []string{"reason"}),
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_processed_total", Help: "processed jobs",
		}, []string{"kind"}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_failed_total", Help: "failed jobs",
		}, []string{"kind"}),
		JobProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "job_processing_duration_seconds", Help: "job duration",
		}),
		JobQueueLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "job_queue_lag_seconds", Help: "job lag",
		}),
		PushTokensSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "push_tokens_sent_total", Help: "tokens sent",
		}),
		PushTokensFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "push_tokens_failed_total", Help: "tokens failed",
		}),
		DigestEmailsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "digest_emails_sent_total", Help: "digests sent",
		}),
		DigestStaleSkips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "digest_stale_invocations_total", Help: "stale digests",
		}),
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "database_operations_total", Help: "db ops",
		}, []string{"operation", "status"}),
	}
}
