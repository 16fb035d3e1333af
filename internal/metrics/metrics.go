// Package metrics exposes Prometheus counters for the exam lifecycle and
// the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "examhall"

var (
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Exam submissions by outcome.",
	}, []string{"outcome"})

	Publications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publications_total",
		Help:      "Attempt publish and unpublish actions.",
	}, []string{"action"})

	Assignments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assignments_total",
		Help:      "Exam assignments and reassignments.",
	})

	LeaderboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_cache_total",
		Help:      "Leaderboard cache lookups by result.",
	}, []string{"result"})

	OrphansPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphaned_attempts_purged_total",
		Help:      "Attempt records removed after their exam was deleted.",
	})

	QuestionsDrafted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_drafted_total",
		Help:      "Questions generated by the language model and stored.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
