// Package metrics exposes Prometheus collectors for trackerd and stationd.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passrelay_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "passrelay_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "passrelay_prediction_duration_seconds",
			Help:    "Time spent computing a full pass schedule.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	scheduledPasses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "passrelay_scheduled_passes",
			Help: "Number of passes in the current schedule.",
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passrelay_notifications_total",
			Help: "Imminent passes handled, by outcome (sent, skipped).",
		},
		[]string{"outcome"},
	)

	publishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passrelay_broker_publishes_total",
			Help: "Broker publish attempts by message kind and result.",
		},
		[]string{"kind", "result"},
	)

	brokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "passrelay_broker_connected",
			Help: "1 while the broker connection is up.",
		},
	)

	stationCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passrelay_station_commands_total",
			Help: "Station command lines handled, by result tag.",
		},
		[]string{"result"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passrelay_uploads_total",
			Help: "Capture uploads by result.",
		},
		[]string{"result"},
	)

	uploadDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "passrelay_upload_duration_seconds",
			Help:    "Duration of capture uploads.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		predictionDurationSeconds,
		scheduledPasses,
		notificationsTotal,
		publishesTotal,
		brokerConnected,
		stationCommandsTotal,
		uploadsTotal,
		uploadDurationSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePrediction records one prediction cycle.
func ObservePrediction(d time.Duration, passes int) {
	predictionDurationSeconds.Observe(d.Seconds())
	scheduledPasses.Set(float64(passes))
}

// Notification counts an imminent pass by outcome.
func Notification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// Publish counts a broker publish attempt.
func Publish(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishesTotal.WithLabelValues(kind, result).Inc()
}

// BrokerConnected sets the broker connectivity gauge.
func BrokerConnected(up bool) {
	if up {
		brokerConnected.Set(1)
	} else {
		brokerConnected.Set(0)
	}
}

// StationCommand counts a handled station command by its result tag.
func StationCommand(result string) {
	stationCommandsTotal.WithLabelValues(result).Inc()
}

// Upload records one upload attempt.
func Upload(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	uploadsTotal.WithLabelValues(result).Inc()
	uploadDurationSeconds.Observe(d.Seconds())
}

// knownRoutes are the paths either daemon serves. Anything else is folded
// into "other" to keep label cardinality bounded.
var knownRoutes = map[string]bool{
	"/":                true,
	"/healthz":         true,
	"/metrics":         true,
	"/ws":              true,
	"/api/status":      true,
	"/api/version":     true,
	"/api/satellites":  true,
	"/api/config":      true,
	"/api/passes":      true,
	"/api/next-pass":   true,
	"/api/schedule":    true,
	"/api/tracked":     true,
	"/api/tle-info":    true,
	"/api/predict":     true,
	"/api/tle-refresh": true,
	"/api/pause":       true,
	"/api/resume":      true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request. The
// WebSocket endpoint is passed through untouched since the upgrade needs the
// original writer's Hijacker.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
