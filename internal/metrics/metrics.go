package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	notificationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_processed_total",
			Help: "Total notification attempts by status and channel",
		},
		[]string{"status", "channel"},
	)

	notificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_suppressed_total",
			Help: "Sends suppressed by user preference, by channel",
		},
		[]string{"channel"},
	)

	notificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_enqueued_total",
			Help: "Items admitted to the primary queue by channel",
		},
		[]string{"channel"},
	)

	queueItemsDrained = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_queue_items_drained_total",
			Help: "Items popped and processed per worker loop",
		},
		[]string{"loop"},
	)

	notificationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notification_retries_total",
			Help: "Retry attempts by channel",
		},
		[]string{"channel"},
	)

	templateCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_template_cache_requests_total",
			Help: "Template cache lookups by result",
		},
		[]string{"result"},
	)

	realtimePushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_realtime_pushes_total",
			Help: "Realtime push attempts by delivery outcome",
		},
		[]string{"delivered"},
	)

	realtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "herald_realtime_connections",
			Help: "Currently registered realtime connections",
		},
	)

	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProcessed records one notification attempt outcome
func RecordProcessed(status, channel string) {
	notificationsProcessed.WithLabelValues(status, channel).Inc()
}

// RecordSuppressed records a send blocked by user preference
func RecordSuppressed(channel string) {
	notificationsSuppressed.WithLabelValues(channel).Inc()
}

// RecordEnqueued records an item admitted to the primary queue
func RecordEnqueued(channel string) {
	notificationsEnqueued.WithLabelValues(channel).Inc()
}

// RecordDrained records items processed in one drain cycle
func RecordDrained(loop string, count int) {
	queueItemsDrained.WithLabelValues(loop).Add(float64(count))
}

// RecordRetry records a retry attempt
func RecordRetry(channel string) {
	notificationRetries.WithLabelValues(channel).Inc()
}

// RecordTemplateCache records a template cache lookup result ("hit" or "miss")
func RecordTemplateCache(result string) {
	templateCacheHits.WithLabelValues(result).Inc()
}

// RecordRealtimePush records a realtime push attempt
func RecordRealtimePush(delivered bool) {
	realtimePushes.WithLabelValues(strconv.FormatBool(delivered)).Inc()
}

// SetRealtimeConnections sets the registered connection count
func SetRealtimeConnections(count int) {
	realtimeConnections.Set(float64(count))
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection() {
	rateLimitRejections.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
