package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answerd_queries_total",
			Help: "Total queries processed, by outcome.",
		},
		[]string{"outcome"},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answerd_tool_calls_total",
			Help: "Total tool invocations requested by the model, by tool.",
		},
		[]string{"tool"},
	)

	queryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "answerd_query_duration_seconds",
			Help:    "End-to-end query processing duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)
