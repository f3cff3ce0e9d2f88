package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stake-plus/dao-governance/src/governance"
)

// Metrics holds the Prometheus collectors of the governance service.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	votesTotal        *prometheus.CounterVec
	votePower         *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_operations_total",
				Help: "Governance operations by name and result code",
			},
			[]string{"op", "code"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "governance_operation_duration_seconds",
				Help:    "Time spent applying a governance operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		votesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_votes_total",
				Help: "Votes cast by kind",
			},
			[]string{"kind"},
		),
		votePower: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_vote_power_total",
				Help: "Voting power credited by kind",
			},
			[]string{"kind"},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_events_published_total",
				Help: "Committed governance events handed to sinks",
			},
			[]string{"type"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "governance_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.votesTotal,
		m.votePower,
		m.eventsPublished,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation implements governance.Recorder.
func (m *Metrics) ObserveOperation(op string, code governance.Code, elapsed time.Duration) {
	label := string(code)
	if label == "" {
		label = "OK"
	}
	m.operationsTotal.WithLabelValues(op, label).Inc()
	m.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveVote implements governance.Recorder.
func (m *Metrics) ObserveVote(kind governance.VoteKind, power uint64) {
	m.votesTotal.WithLabelValues(string(kind)).Inc()
	m.votePower.WithLabelValues(string(kind)).Add(float64(power))
}

// Publish counts committed events; it makes Metrics usable as a
// governance.EventSink.
func (m *Metrics) Publish(_ context.Context, evt governance.Event) error {
	m.eventsPublished.WithLabelValues(string(evt.Type)).Inc()
	return nil
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
