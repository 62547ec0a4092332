package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fulfillTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entropy_fulfill_total",
			Help: "Total randomness fulfillments by result and source",
		},
		[]string{"result", "source"},
	)

	fulfillDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entropy_fulfill_duration_ms",
			Help:    "Randomness fulfillment duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "source"},
	)
)

// RecordFulfill 记录预言机履约的业务指标
// result: "success" | "fail"
// source: "callback" | "mq"
func RecordFulfill(result, source string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	src := strings.ToLower(strings.TrimSpace(source))
	if src == "" {
		src = "unknown"
	}
	fulfillTotal.WithLabelValues(res, src).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	fulfillDuration.WithLabelValues(res, src).Observe(durMs)
}
