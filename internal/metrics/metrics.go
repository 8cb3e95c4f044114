package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthtracker",
			Name:      "remote_calls_total",
			Help:      "Calls against the remote data service, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	remoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthtracker",
			Name:      "remote_call_seconds",
			Help:      "Latency of remote data service calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	optimisticSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthtracker",
			Name:      "optimistic_sends_total",
			Help:      "Optimistic message sends, by final outcome (confirmed, rolled_back, discarded).",
		},
		[]string{"outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthtracker",
			Name:      "active_conversations",
			Help:      "Doctor sessions with an open conversation.",
		},
	)
)

func init() {
	prometheus.MustRegister(remoteCalls, remoteLatency, optimisticSends, activeSessions)
}

// ObserveRemote records one remote call. Use with defer:
//
//	defer metrics.ObserveRemote("messages.list", time.Now(), &err)
func ObserveRemote(op string, start time.Time, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = "error"
	}
	remoteCalls.WithLabelValues(op, outcome).Inc()
	remoteLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func OptimisticSend(outcome string) {
	optimisticSends.WithLabelValues(outcome).Inc()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
