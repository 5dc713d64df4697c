package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkwell_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PolishRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_polish_requests_total",
			Help: "Total number of polish requests by outcome.",
		},
		[]string{"outcome"},
	)

	PolishTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_polish_tokens_total",
			Help: "Total tokens billed by the generation endpoint.",
		},
		[]string{"direction"},
	)

	UpstreamRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkwell_upstream_request_duration_seconds",
			Help:    "Generation endpoint request duration in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	UsageAlertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_usage_alerts_total",
			Help: "Total number of token-threshold usage alerts emitted.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PolishRequestsTotal,
		PolishTokensTotal,
		UpstreamRequestDuration,
		UsageAlertsTotal,
	)
}
