// Package metrics exposes Prometheus collectors for the portal API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "content",
			Name:      "store_operations_total",
			Help:      "Content store operations by store, operation and outcome.",
		},
		[]string{"store", "op", "outcome"},
	)

	snapshotLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "cache",
			Name:      "snapshot_lookups_total",
			Help:      "Snapshot cache lookups by store and result.",
		},
		[]string{"store", "result"},
	)

	contactMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "contact",
			Name:      "messages_total",
			Help:      "Contact form submissions by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		storeOps,
		snapshotLookups,
		contactMessages,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by route template,
// so /api/admin/plans/{id} is one series regardless of id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveStore matches content.Observer.
func ObserveStore(store, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeOps.WithLabelValues(store, op, outcome).Inc()
}

func ObserveSnapshot(store string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	snapshotLookups.WithLabelValues(store, result).Inc()
}

func RecordContactMessage(outcome string) {
	contactMessages.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
