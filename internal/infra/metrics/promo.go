package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(promoCodesIssued, promoIssueBatches, promoRedemptions, promoGenerationCollisions) }

var promoCodesIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "promo_codes_issued_total",
		Help: "Promo codes written by committed batches.",
	},
)

var promoIssueBatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "promo_issue_batches_total",
		Help: "Issuance batches by outcome.",
	},
	[]string{"result"}, // ok | validation_error | generation_exhausted | store_unavailable | ...
)

var promoGenerationCollisions = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "promo_generation_collisions_total",
		Help: "Generated candidates rejected because the code already existed.",
	},
)

var promoRedemptions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "promo_redemptions_total",
		Help: "Redeem and verify attempts by operation and result code.",
	},
	[]string{"op", "result"}, // op: redeem | verify
)

func IncPromoIssueBatch(result string, issued int) {
	promoIssueBatches.WithLabelValues(norm(result)).Inc()
	if issued > 0 {
		promoCodesIssued.Add(float64(issued))
	}
}

func AddPromoGenerationCollisions(n int) {
	if n > 0 {
		promoGenerationCollisions.Add(float64(n))
	}
}

func IncPromoRedemption(op, result string) {
	promoRedemptions.WithLabelValues(norm(op), norm(result)).Inc()
}
