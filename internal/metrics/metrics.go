package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics for the trading API client
var (
	// HTTP transport metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeapi_http_requests_total",
			Help: "Total number of HTTP requests by method and status class",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeapi_http_request_duration_seconds",
			Help:    "Latency of individual HTTP attempts",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	HTTPRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeapi_http_retries_total",
			Help: "Total number of retried HTTP requests by failure kind",
		},
		[]string{"reason"},
	)

	// Rate limiter metrics
	RateLimiterQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeapi_ratelimiter_queue_length",
			Help: "Requests currently waiting for a rate limiter slot",
		},
	)

	RateLimiterPenalties = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tradeapi_ratelimiter_penalties_total",
			Help: "Total number of server rate-limit penalties applied",
		},
	)

	// WebSocket metrics
	WSConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeapi_ws_connected",
			Help: "WebSocket connection status (1=authenticated, 0=not)",
		},
	)

	WSReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeapi_ws_reconnects_total",
			Help: "Total number of reconnection attempts by result",
		},
		[]string{"result"},
	)

	WSFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeapi_ws_frames_total",
			Help: "Total number of inbound frames by classification",
		},
		[]string{"kind"},
	)

	WSHeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tradeapi_ws_heartbeat_timeouts_total",
			Help: "Connections terminated because no pong arrived in time",
		},
	)

	// Order tracking metrics
	OrderWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeapi_order_waits_total",
			Help: "Completed order waits by outcome and resolving path",
		},
		[]string{"outcome", "source"},
	)

	OrderWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradeapi_order_wait_duration_seconds",
			Help:    "Time from wait start to settlement",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// StatusClass collapses an HTTP status code into a low-cardinality label.
// Zero means the request never produced a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
