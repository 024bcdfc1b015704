// Package metrics exposes Prometheus collectors for the review pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pitcrew"

// Recorder receives pipeline events. Nop discards them.
type Recorder interface {
	WebhookReceived(provider, outcome string)
	ReviewFinished(trigger, outcome string)
	AnalysisFallback(reason string)
	AnalysisDuration(d time.Duration)
	CommentPosted(provider string, ok bool)
}

// Metrics implements Recorder on a Prometheus registry.
type Metrics struct {
	registry         *prometheus.Registry
	webhooks         *prometheus.CounterVec
	reviews          *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	comments         *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

var _ Recorder = (*Metrics)(nil)

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by provider and outcome.",
		}, []string{"provider", "outcome"}),
		reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Review pipeline runs by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_fallbacks_total",
			Help:      "Analyses that returned the fallback result.",
		}, []string{"reason"}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent waiting for the language model.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
		}),
		comments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_posts_total",
			Help:      "Review comments posted back to providers.",
		}, []string{"provider", "outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) WebhookReceived(provider, outcome string) {
	m.webhooks.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ReviewFinished(trigger, outcome string) {
	m.reviews.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) AnalysisFallback(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) AnalysisDuration(d time.Duration) {
	m.analysisDuration.Observe(d.Seconds())
}

func (m *Metrics) CommentPosted(provider string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.comments.WithLabelValues(provider, outcome).Inc()
}

// Middleware records request count and latency keyed by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterRoutes mounts GET /metrics.
func (m *Metrics) RegisterRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(m.Handler()))
}

// Nop discards every event.
type Nop struct{}

func (Nop) WebhookReceived(string, string) {}
func (Nop) ReviewFinished(string, string)  {}
func (Nop) AnalysisFallback(string)        {}
func (Nop) AnalysisDuration(time.Duration) {}
func (Nop) CommentPosted(string, bool)     {}
