package httpadapter

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/desadigital/citizen-assistant/internal/observability/metrics"
)

// TrafficConfig bounds what the API accepts before any handler runs: a
// token-bucket rate limit in front and a concurrency gate behind it. Both
// exist to protect the Ollama backend, which saturates long before the HTTP
// layer does.
type TrafficConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int

	MaxConcurrent  int
	AcquireTimeout time.Duration

	Metrics *metrics.HTTPServerMetrics
}

func (rt *Router) trafficControlMiddleware(next http.Handler) http.Handler {
	cfg := rt.traffic
	if cfg.MaxConcurrent > 0 {
		timeout := cfg.AcquireTimeout
		if timeout <= 0 {
			timeout = 100 * time.Millisecond
		}
		next = backpressureMiddleware(next, cfg.MaxConcurrent, timeout)
	}
	if cfg.RateLimitRPS > 0 {
		next = rateLimitMiddleware(next, cfg)
	}
	return next
}

func rateLimitMiddleware(next http.Handler, cfg TrafficConfig) http.Handler {
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow() {
			if cfg.Metrics != nil {
				cfg.Metrics.RecordRateLimited(serviceName)
			}
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware sheds load once maxConcurrent requests are already
// in flight and a slot does not free up within acquireTimeout.
func backpressureMiddleware(next http.Handler, maxConcurrent int, acquireTimeout time.Duration) http.Handler {
	slots := make(chan struct{}, maxConcurrent)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		timer := time.NewTimer(acquireTimeout)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		case <-timer.C:
			writeError(w, http.StatusServiceUnavailable, "server overloaded, try again shortly")
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while queued")
		}
	})
}
