package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the Prometheus collectors of the service. A nil Recorder is a no-op.
type Recorder struct {
	registry        *prometheus.Registry
	handler         http.Handler
	proposed        *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	commits         *prometheus.CounterVec
	sessionsOpen    prometheus.Gauge
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// New registers the collectors on a private registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	proposed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homestay_assignments_proposed_total",
		Help: "Assignments proposed, by source (manual or auto)",
	}, []string{"source"})

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homestay_assignment_rejections_total",
		Help: "Manual proposals rejected, by error code",
	}, []string{"reason"})

	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homestay_commits_total",
		Help: "Commit attempts, by result",
	}, []string{"result"})

	sessionsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "homestay_sessions_open",
		Help: "Assignment sessions currently open",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	registry.MustRegister(proposed, rejections, commits, sessionsOpen, requestDuration, requestTotal)

	return &Recorder{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		proposed:        proposed,
		rejections:      rejections,
		commits:         commits,
		sessionsOpen:    sessionsOpen,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Proposed(source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.proposed.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) Rejected(reason string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) Committed(ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	r.commits.WithLabelValues(result).Inc()
}

func (r *Recorder) SetSessionsOpen(n int) {
	if r == nil {
		return
	}
	r.sessionsOpen.Set(float64(n))
}

// Middleware records request count and latency per route.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		r.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
