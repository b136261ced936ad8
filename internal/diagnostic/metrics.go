package diagnostic

import "github.com/prometheus/client_golang/prometheus"

var (
	reportedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardlink",
		Subsystem: "diagnostic",
		Name:      "events_total",
		Help:      "Counter of rejection events reported, by kind and reason.",
	}, []string{"kind", "reason"})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cardlink",
		Subsystem: "diagnostic",
		Name:      "dropped_total",
		Help:      "Counter of events dropped because the sink buffer was full or closed.",
	})
)

func init() {
	prometheus.MustRegister(reportedCounter)
	prometheus.MustRegister(droppedCounter)
}
