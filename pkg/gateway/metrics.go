package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aretw0/bidtrail/pkg/core"
)

var (
	ledgerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidtrail",
			Subsystem: "ledger",
			Name:      "calls_total",
			Help:      "Ledger calls issued by the gateway, by operation, stream and result.",
		},
		[]string{"op", "stream", "result"},
	)

	ledgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bidtrail",
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Duration of ledger calls including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "stream"},
	)

	decodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidtrail",
			Subsystem: "ledger",
			Name:      "decode_errors_total",
			Help:      "Records returned with an empty payload because decoding failed.",
		},
		[]string{"stream"},
	)
)

func observeCall(op string, stream core.StreamID, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ledgerCalls.WithLabelValues(op, string(stream), result).Inc()
	ledgerCallDuration.WithLabelValues(op, string(stream)).Observe(elapsed.Seconds())
}
