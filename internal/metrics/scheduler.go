package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerActionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_action_total",
			Help: "Total scheduler actions performed by result and action",
		},
		[]string{"result", "action"},
	)

	schedulerActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_action_duration_ms",
			Help:    "Scheduler action duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "action"},
	)
)

// RecordSchedulerAction 记录调度动作的业务指标
// result: "success" | "fail"
// action: end_round | request_entropy | start_next_round
func RecordSchedulerAction(result, action string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	act := strings.ToLower(strings.TrimSpace(action))
	if act == "" {
		act = "unknown"
	}
	schedulerActionTotal.WithLabelValues(res, act).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	schedulerActionDuration.WithLabelValues(res, act).Observe(durMs)
}
