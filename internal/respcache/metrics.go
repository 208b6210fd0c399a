package respcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// feedbackLookups counts oracle answers by where they came from
	feedbackLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mastermind_feedback_lookups_total",
		Help: "Feedback lookups by source (live, imported, computed)",
	}, []string{"source"})

	// liveEntries tracks the size of the live layer at the last flush
	liveEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mastermind_response_cache_live_entries",
		Help: "Entries held by the live response cache layer",
	})

	// persistTotal counts persistence attempts by operation and result
	persistTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mastermind_response_cache_persist_total",
		Help: "Response cache loads and saves by result",
	}, []string{"op", "result"})
)

func observePersist(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	persistTotal.WithLabelValues(op, result).Inc()
}
