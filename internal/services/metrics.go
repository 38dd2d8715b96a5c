package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// rulesLoaded reports how many rules the installed snapshot holds.
	rulesLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "responder_rules_loaded",
		Help: "Number of responder rules in the active set.",
	})

	// rulesSkipped counts stored rules that failed to compile during a load.
	rulesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "responder_rules_skipped_total",
		Help: "Stored responder rules skipped because they did not compile.",
	})

	// reloads counts set loads by result ("ok" or "error").
	reloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "responder_set_reloads_total",
		Help: "Responder set loads by result.",
	}, []string{"result"})

	// dispatched counts inbound messages by outcome.
	dispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "responder_messages_total",
		Help: "Inbound chat messages by dispatch outcome.",
	}, []string{"outcome"})

	// deliveryLat records how long a reply takes to deliver.
	deliveryLat = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "responder_delivery_duration_seconds",
		Help:    "Duration of reply delivery in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(rulesLoaded, rulesSkipped, reloads, dispatched, deliveryLat)
}
