package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	selectionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_requests_total",
			Help: "Total number selection requests by result",
		},
		[]string{"result"},
	)

	selectionNumbers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_numbers_total",
			Help: "Total numbers reserved by result",
		},
		[]string{"result"},
	)

	selectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "selection_request_duration_ms",
			Help:    "Selection request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)
)

// RecordSelection 记录选号请求的业务指标
// result: "success" | "fail"; count 为本次请求的号码个数
func RecordSelection(result string, count int, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	selectionTotal.WithLabelValues(res).Inc()
	if count > 0 {
		selectionNumbers.WithLabelValues(res).Add(float64(count))
	}
	durMs := float64(time.Since(started).Milliseconds())
	selectionDuration.WithLabelValues(res).Observe(durMs)
}
