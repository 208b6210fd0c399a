package mastermind

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// roundsTotal counts the rounds of finished sessions by strategy and outcome
	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mastermind_rounds_total",
		Help: "Rounds played by strategy and final outcome of their session",
	}, []string{"strategy", "outcome"})

	// poolSize records how many candidates are left after each round
	poolSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mastermind_pool_size",
		Help:    "Candidate pool size after filtering",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12), // 1 to ~4M
	})
)
