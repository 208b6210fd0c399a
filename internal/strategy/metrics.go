package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// selectDuration tracks how long one universe scan takes
	selectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mastermind_strategy_select_seconds",
		Help:    "Guess selection duration in seconds by strategy",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	}, []string{"strategy"})
)
