package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timeoff"

// Metrics groups the service's prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpErrors       *prometheus.CounterVec
	commands         *prometheus.CounterVec
	notifyPublished  *prometheus.CounterVec
	notifyConsumed   *prometheus.CounterVec
	notifyDuration   prometheus.Histogram
	referenceFetches *prometheus.CounterVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		httpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "commands_total",
			Help:      "Lifecycle commands by name and outcome kind.",
		}, []string{"command", "outcome"}),
		notifyPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "published_total",
			Help:      "Notification publish attempts by subject and result.",
		}, []string{"subject", "result"}),
		notifyConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "consumed_total",
			Help:      "Consumed notification deliveries by outcome (sent, abandoned, dead_lettered).",
		}, []string{"outcome"}),
		notifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "handle_duration_seconds",
			Help:      "Time spent handling one delivery.",
			Buckets:   prometheus.DefBuckets,
		}),
		referenceFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reference",
			Name:      "fetches_total",
			Help:      "Upstream reference data fetches by key and result.",
		}, []string{"key", "result"}),
	}
}

// RecordRequest observes one HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}

// RecordCommand counts a lifecycle command outcome ("ok" or an error kind).
func (m *Metrics) RecordCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) RecordPublish(subject string, err error) {
	if m == nil {
		return
	}
	m.notifyPublished.WithLabelValues(subject, result(err)).Inc()
}

func (m *Metrics) RecordDelivery(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.notifyConsumed.WithLabelValues(outcome).Inc()
	m.notifyDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordReferenceFetch(key string, err error) {
	if m == nil {
		return
	}
	m.referenceFetches.WithLabelValues(key, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
