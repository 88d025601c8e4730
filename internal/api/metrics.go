package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ready           prometheus.Gauge
	initDuration    prometheus.Gauge
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talksearch",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by path and status code.",
		}, []string{"path", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "talksearch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "talksearch",
			Name:      "resources_ready",
			Help:      "1 once the resource initializer has reached its ready state.",
		}),
		initDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "talksearch",
			Name:      "resources_init_duration_seconds",
			Help:      "Wall-clock duration of the resource initialization pipeline.",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.ready, m.initDuration)
	return m
}

// ObserveInit records the outcome of the initialization pipeline.
func (m *Metrics) ObserveInit(duration time.Duration, failed bool) {
	m.initDuration.Set(duration.Seconds())
	if !failed {
		m.ready.Set(1)
	}
}

// Middleware instruments every request.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		m.requestsTotal.WithLabelValues(path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}
