package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitDecisions, rateLimitStoreLatency) }

var rateLimitDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ratelimit_decisions_total",
		Help: "Rate limit decisions by scope and result.",
	},
	[]string{"scope", "result"}, // result: allowed | denied | degraded
)

var rateLimitStoreLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ratelimit_store_latency_ms",
		Help:    "Latency of one sliding-window store call in milliseconds.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 200, 400},
	},
)

func IncRateLimitDecision(scope, result string) {
	rateLimitDecisions.WithLabelValues(norm(scope), norm(result)).Inc()
}

func ObserveRateLimitStoreLatency(ms float64) {
	rateLimitStoreLatency.Observe(ms)
}
