package poller

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_status_poll_cycles_total",
			Help: "Poll cycles by outcome.",
		},
		[]string{"outcome"},
	)

	historySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_status_history_entries",
			Help: "Current number of entries in the derived track history.",
		},
	)
)

func init() {
	prometheus.MustRegister(pollCyclesTotal)
	prometheus.MustRegister(historySize)
}
