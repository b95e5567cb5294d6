package status

import "github.com/prometheus/client_golang/prometheus"

var (
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_status_upstream_requests_total",
			Help: "Upstream status requests by outcome",
		},
		[]string{"outcome"},
	)

	upstreamRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_status_upstream_request_duration_seconds",
			Help:    "Duration of upstream status requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	portFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_status_port_fallback_total",
			Help: "Upstream fetches retried on a default port because the configured port is blocked",
		},
	)
)

func init() {
	prometheus.MustRegister(upstreamRequestsTotal)
	prometheus.MustRegister(upstreamRequestDuration)
	prometheus.MustRegister(portFallbackTotal)
}
