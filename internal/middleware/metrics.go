package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PaymentsProcessed counts confirmed and failed payment transactions
	PaymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_processed_total",
			Help: "Total number of payment transactions processed",
		},
		[]string{"status"},
	)

	// RefundsProcessed counts applied refunds
	RefundsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refunds_processed_total",
			Help: "Total number of refunds applied",
		},
	)

	// PayoutsBuilt counts created payout batches
	PayoutsBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payouts_built_total",
			Help: "Total number of payout batches created",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(PaymentsProcessed)
	prometheus.MustRegister(RefundsProcessed)
	prometheus.MustRegister(PayoutsBuilt)
}

// Metrics records request count and duration per method and path
func Metrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}
