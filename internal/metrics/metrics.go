package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// BookingsCreated counts pending bookings accepted by the API.
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	// CouponValidations counts validation outcomes by result
	// (applied, rejected, in_flight, superseded, network_failure).
	CouponValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_validations_total",
			Help: "Total number of coupon validation requests by result",
		},
		[]string{"result"},
	)

	// QuoteRecomputes counts pricing engine passes triggered through quote
	// sessions.
	QuoteRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_recomputes_total",
		Help: "Total number of quote pricing recomputations",
	})

	// DisplayCorrections counts diverged display targets repaired by the
	// synchronizer watch.
	DisplayCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "display_corrections_total",
		Help: "Total number of display divergence corrections",
	})
)

// Middleware records request count and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
