package exchange

import "github.com/prometheus/client_golang/prometheus"

var (
	issuedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardlink",
		Subsystem: "capability",
		Name:      "issued_total",
		Help:      "Counter of capabilities issued, by kind.",
	}, []string{"kind"})

	redeemedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardlink",
		Subsystem: "capability",
		Name:      "redeemed_total",
		Help:      "Counter of redemption attempts, by kind and outcome.",
	}, []string{"kind", "outcome"})
)

func init() {
	prometheus.MustRegister(issuedCounter)
	prometheus.MustRegister(redeemedCounter)
}
