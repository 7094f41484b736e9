package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics for the ops surface.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Domain metrics: event fan-out and lifecycle sweeps.
var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published on the in-process bus.",
		},
		[]string{"event"},
	)

	handlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_handler_failures_total",
			Help: "Event handler invocations that returned an error or panicked.",
		},
		[]string{"event", "handler"},
	)

	purgeDocumentsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "purge_documents_deleted_total",
		Help: "Document storage objects removed by the purge engine.",
	})

	purgeDocumentsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "purge_documents_failed_total",
		Help: "Document storage deletions that failed during purge.",
	})

	organizationsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "organizations_purged_total",
		Help: "Organizations hard-deleted by the purge sweep.",
	})

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retention_sweep_duration_seconds",
			Help:    "Retention sweep run durations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		eventsPublished, handlerFailures,
		purgeDocumentsDeleted, purgeDocumentsFailed, organizationsPurged,
		sweepDuration,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EventPublished counts a publish on the bus.
func EventPublished(event string) {
	eventsPublished.WithLabelValues(event).Inc()
}

// HandlerFailed counts a failed handler invocation.
func HandlerFailed(event, handler string) {
	handlerFailures.WithLabelValues(event, handler).Inc()
}

// PurgeOutcome records the per-document outcome counts of one purge run.
func PurgeOutcome(deleted, failed int) {
	purgeDocumentsDeleted.Add(float64(deleted))
	purgeDocumentsFailed.Add(float64(failed))
}

// OrganizationPurged counts a completed organization purge.
func OrganizationPurged() {
	organizationsPurged.Inc()
}

// ObserveSweep records a sweep run duration.
func ObserveSweep(sweep string, d time.Duration) {
	sweepDuration.WithLabelValues(sweep).Observe(d.Seconds())
}

// Instrument wraps an http.Handler with RPS/latency/in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
