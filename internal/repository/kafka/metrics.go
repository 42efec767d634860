package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_produced_total",
		Help: "Messages written, by topic and result.",
	}, []string{"topic", "result"})
	mConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumed_total",
		Help: "Messages handled, by topic and result.",
	}, []string{"topic", "result"})
	mHandleDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_handle_duration_seconds",
		Help:    "Handler latency per consumed message.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
