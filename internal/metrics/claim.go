package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	claimTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_claim_total",
			Help: "Total payout claim requests by result",
		},
		[]string{"result"},
	)

	claimDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payout_claim_duration_ms",
			Help:    "Payout claim duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)
)

// RecordClaim 记录领奖请求的业务指标
// result: "success" | "fail"
func RecordClaim(result string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	claimTotal.WithLabelValues(res).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	claimDuration.WithLabelValues(res).Observe(durMs)
}
