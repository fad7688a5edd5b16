package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayRequestsTotal, gatewayRequestDuration) }

var (
	// op: initiate|confirm ; code: HTTP status or "error" when no response
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Outbound payment gateway API calls by provider, operation and status code.",
		},
		[]string{"gateway", "op", "code"},
	)

	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Outbound payment gateway API latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"gateway", "op"},
	)
)

// ObserveGatewayCall records one HTTP attempt; code 0 means no response.
func ObserveGatewayCall(gateway, op string, code int, d time.Duration) {
	c := "error"
	if code > 0 {
		c = strconv.Itoa(code)
	}
	gatewayRequestsTotal.WithLabelValues(norm(gateway), norm(op), c).Inc()
	gatewayRequestDuration.WithLabelValues(norm(gateway), norm(op)).Observe(d.Seconds())
}
