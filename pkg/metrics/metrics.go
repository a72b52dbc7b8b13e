package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "callbacks_total",
			Help:      "Payment notification outcomes by status code",
		},
		[]string{"outcome", "status_code"},
	)

	FallbackLookupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "fallback_lookups_total",
			Help:      "Degraded-mode admin lookups for callbacks with no matching transaction",
		},
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "gateway_requests_total",
			Help:      "Outbound Faspay requests by flow and result",
		},
		[]string{"flow", "status"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billing",
			Name:      "gateway_request_duration_seconds",
			Help:      "Outbound Faspay request duration",
			Buckets: []float64{
				0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.2, 2, 3, 5, 8,
			},
		},
		[]string{"flow"},
	)
)

func init() {
	prometheus.MustRegister(CallbacksTotal, FallbackLookupsTotal, GatewayRequestsTotal, GatewayRequestDuration)
}

func IncCallback(outcome, statusCode string) {
	CallbacksTotal.WithLabelValues(outcome, statusCode).Inc()
}

func IncFallback() {
	FallbackLookupsTotal.Inc()
}

func IncGatewayRequest(flow, status string) {
	GatewayRequestsTotal.WithLabelValues(flow, status).Inc()
}

func ObserveGatewayDuration(flow string, seconds float64) {
	GatewayRequestDuration.WithLabelValues(flow).Observe(seconds)
}
