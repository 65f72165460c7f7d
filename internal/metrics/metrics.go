// Package metrics exposes relay counters and latencies in the Prometheus
// text format. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat_relay"

// Outcomes recorded for a chat turn.
const (
	OutcomeOK           = "ok"
	OutcomeShortCircuit = "short_circuit"
	OutcomeError        = "error"
)

// OtherModel labels every model outside the configured set.
const OtherModel = "other"

type Metrics struct {
	registry *prometheus.Registry
	models   map[string]struct{}

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	chatTurns        *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	storeDuration    *prometheus.HistogramVec
	uploads          *prometheus.CounterVec
}

// New builds the relay metrics. knownModels are recorded under their own
// name; any other model a client asks for is recorded as OtherModel.
func New(knownModels ...string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		models:   make(map[string]struct{}, len(knownModels)),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by model and outcome.",
		}, []string{"model", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of chat completion calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}, []string{"model", "success"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of conversation store operations.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"operation", "success"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Image uploads by provider and success.",
		}, []string{"provider", "success"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.chatTurns,
		m.upstreamDuration,
		m.storeDuration,
		m.uploads,
	)
	for _, model := range knownModels {
		m.models[model] = struct{}{}
	}
	return m
}

func (m *Metrics) modelLabel(model string) string {
	if _, ok := m.models[model]; ok {
		return model
	}
	return OtherModel
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records every request under its route template so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveChatTurn(model, outcome string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(m.modelLabel(model), outcome).Inc()
}

func (m *Metrics) ObserveUpstream(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(m.modelLabel(model), success(err)).Observe(d.Seconds())
}

func (m *Metrics) ObserveStore(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation, success(err)).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpload(provider string, err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(provider, success(err)).Inc()
}

func success(err error) string {
	return strconv.FormatBool(err == nil)
}
