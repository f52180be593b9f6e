package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics is the API-process registry. Everything retrieval-related
// hangs off the "rag" subsystem so one dashboard covers the whole pipeline:
// gate decisions, confidence mix, conflicts, and expansion-cache efficiency.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRequestsTotal   *prometheus.CounterVec
	ragConfidenceTotal *prometheus.CounterVec
	ragConflictsTotal  *prometheus.CounterVec
	ragNoContextTotal  *prometheus.CounterVec
	ragRetrievedChunks *prometheus.HistogramVec
	ragDuration        *prometheus.HistogramVec
	spamBlockedTotal   *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "desa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "desa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desa",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total retrieval requests by intent-gate outcome.",
		},
		[]string{"service", "endpoint", "intent"},
	)
	ragConfidenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desa",
			Subsystem: "rag",
			Name:      "confidence_total",
			Help:      "Total retrieval results by confidence level.",
		},
		[]string{"service", "endpoint", "level"},
	)
	ragConflictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desa",
			Subsystem: "rag",
			Name:      "conflicts_total",
			Help:      "Total data conflicts surfaced to users.",
		},
		[]string{"service", "endpoint"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desa",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total retrieval requests that produced no context.",
		},
		[]string{"service", "endpoint"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "desa",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of surviving chunks per retrieval request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "desa",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Retrieval pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	spamBlockedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desa",
			Subsystem: "chat",
			Name:      "spam_blocked_total",
			Help:      "Total chat messages rejected by the spam guard.",
		},
		[]string{"service"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desa",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRequestsTotal,
		ragConfidenceTotal,
		ragConflictsTotal,
		ragNoContextTotal,
		ragRetrievedChunks,
		ragDuration,
		spamBlockedTotal,
		rateLimitedTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		ragRequestsTotal:   ragRequestsTotal,
		ragConfidenceTotal: ragConfidenceTotal,
		ragConflictsTotal:  ragConflictsTotal,
		ragNoContextTotal:  ragNoContextTotal,
		ragRetrievedChunks: ragRetrievedChunks,
		ragDuration:        ragDuration,
		spamBlockedTotal:   spamBlockedTotal,
		rateLimitedTotal:   rateLimitedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterExpansionCacheStats exposes the query-expansion cache as gauges.
// stats must be safe for concurrent use; it is called on every scrape.
func (m *HTTPServerMetrics) RegisterExpansionCacheStats(service string, stats func() (hits, misses uint64, size int)) {
	labels := prometheus.Labels{"service": service}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "desa",
			Subsystem:   "rag",
			Name:        "expansion_cache_hits",
			Help:        "Cumulative query-expansion cache hits.",
			ConstLabels: labels,
		}, func() float64 {
			hits, _, _ := stats()
			return float64(hits)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "desa",
			Subsystem:   "rag",
			Name:        "expansion_cache_misses",
			Help:        "Cumulative query-expansion cache misses.",
			ConstLabels: labels,
		}, func() float64 {
			_, misses, _ := stats()
			return float64(misses)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "desa",
			Subsystem:   "rag",
			Name:        "expansion_cache_entries",
			Help:        "Current query-expansion cache size.",
			ConstLabels: labels,
		}, func() float64 {
			_, _, size := stats()
			return float64(size)
		}),
	)
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordRetrieval captures one pipeline run. intent is the gate outcome
// (skip/required/optional), level the estimated confidence.
func (m *HTTPServerMetrics) RecordRetrieval(
	service, endpoint, intent, level string,
	chunkCount, conflictCount int,
	duration time.Duration,
) {
	if intent == "" {
		intent = "unknown"
	}
	if level == "" {
		level = "unknown"
	}

	m.ragRequestsTotal.WithLabelValues(service, endpoint, intent).Inc()
	m.ragConfidenceTotal.WithLabelValues(service, endpoint, level).Inc()
	m.ragRetrievedChunks.WithLabelValues(service, endpoint).Observe(float64(chunkCount))
	m.ragDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if conflictCount > 0 {
		m.ragConflictsTotal.WithLabelValues(service, endpoint).Add(float64(conflictCount))
	}
	if chunkCount == 0 {
		m.ragNoContextTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordSpamBlocked(service string) {
	m.spamBlockedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitedTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
