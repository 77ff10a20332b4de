package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(engagementsTotal) }

var engagementsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "engagements_total",
		Help: "Engagement record attempts by result.",
	},
	[]string{"result"}, // created | duplicate | error
)

func IncEngagement(result string) {
	engagementsTotal.WithLabelValues(norm(result)).Inc()
}
