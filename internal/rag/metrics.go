package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts queries by path (summary, retrieval) and result
	// (success, degraded, failed).
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "rag",
			Name:      "queries_total",
			Help:      "Total number of processed queries",
		},
		[]string{"path", "result"},
	)

	// QueryDuration tracks end-to-end query latency.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "rag",
			Name:      "query_duration_seconds",
			Help:      "Duration of query processing in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"path"},
	)

	// CandidatesRetrieved tracks the candidate pool size after the floor.
	CandidatesRetrieved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "rag",
			Name:      "candidates_retrieved",
			Help:      "Number of candidates above the similarity floor",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 15, 20},
		},
	)
)
