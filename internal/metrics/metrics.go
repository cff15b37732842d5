package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	propagationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analyze_tle_propagation_duration_seconds",
			Help:    "Time to evaluate one sampling request.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
	)

	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_tle_samples_total",
			Help: "Propagation steps by outcome.",
		},
		[]string{"outcome"},
	)

	frameFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_tle_frame_fallbacks_total",
			Help: "Geodetic solutions that did not come from the iterative solver.",
		},
		[]string{"method"},
	)

	datasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyze_tle_tle_dataset_count",
			Help: "Number of element sets in the loaded dataset.",
		},
	)

	datasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyze_tle_tle_dataset_age_seconds",
			Help: "Seconds since the loaded dataset was fetched.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_tle_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyze_tle_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_tle_stream_connections_total",
			Help: "Live stream connect and disconnect events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyze_tle_streams_active",
			Help: "Live streams currently open.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analyze_tle_stream_messages_total",
			Help: "Events written to live streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_tle_stream_errors_total",
			Help: "Live stream failures by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		propagationDuration,
		samplesTotal,
		frameFallbacksTotal,
		datasetCount,
		datasetAgeSeconds,
		httpRequestsTotal,
		httpDurationSeconds,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records one sampling request.
func RecordPropagation(d time.Duration, ok, failed int) {
	propagationDuration.Observe(d.Seconds())
	samplesTotal.WithLabelValues("ok").Add(float64(ok))
	samplesTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordFrameFallback counts a geodetic solution produced by method.
func RecordFrameFallback(method string) {
	frameFallbacksTotal.WithLabelValues(method).Inc()
}

// SetDataset publishes the size and age of the loaded dataset.
func SetDataset(count int, ageSeconds float64) {
	datasetCount.Set(float64(count))
	datasetAgeSeconds.Set(ageSeconds)
}

// StreamOpened records a new live stream.
func StreamOpened() {
	streamConnectionsTotal.WithLabelValues("connect").Inc()
	streamsActive.Inc()
}

// StreamClosed records a finished live stream.
func StreamClosed() {
	streamConnectionsTotal.WithLabelValues("disconnect").Inc()
	streamsActive.Dec()
}

// IncStreamMessages counts one event written to a stream.
func IncStreamMessages() {
	streamMessagesTotal.Inc()
}

// IncStreamErrors counts a stream failure.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// normalizeRoute turns a matched gin route into a metrics label. Route
// parameters become {name}; unmatched requests collapse to "other" so bot
// traffic cannot blow up label cardinality.
func normalizeRoute(route string) string {
	if route == "" {
		return "other"
	}
	parts := strings.Split(route, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") || strings.HasPrefix(p, "*") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

// Middleware records request count and duration for each request.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		path := normalizeRoute(c.FullPath())
		code := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(path, c.Request.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, c.Request.Method).Observe(duration)
	}
}
