// AngelaMos | 2026
// metrics.go

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dziennik"

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"method", "path", "status"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_call_duration_seconds",
			Help:      "Latency of calls to external collaborators",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"service", "operation", "result"},
	)

	NotifyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_runs_total",
			Help:      "Deadline dispatcher runs by outcome",
		},
		[]string{"outcome"},
	)

	NotifySends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_sends_total",
			Help:      "Push sends attempted by the dispatcher",
		},
		[]string{"result"},
	)

	TasksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Assigned tasks created",
		},
		[]string{"source"},
	)

	JournalEntriesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_entries_created_total",
			Help:      "Journal entries created",
		},
		[]string{"source"},
	)

	AccessDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Writes rejected because the account had no active access",
		},
	)
)

func RecordHTTPRequest(method, path, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

func RecordUpstreamCall(service, operation string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	UpstreamCallDuration.WithLabelValues(service, operation, result).Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
