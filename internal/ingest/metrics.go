package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsTotal counts processed documents by result (completed, failed).
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of processed documents",
		},
		[]string{"result"},
	)

	// ProcessingDuration tracks per-document processing latency.
	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "ingest",
			Name:      "processing_duration_seconds",
			Help:      "Duration of document processing in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// ChunksIndexed counts chunks written to the vector index.
	ChunksIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "ingest",
			Name:      "chunks_indexed_total",
			Help:      "Total number of chunks written to the vector index",
		},
	)

	// SecretsRedacted counts secrets replaced in chunk text.
	SecretsRedacted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "ingest",
			Name:      "secrets_redacted_total",
			Help:      "Total number of secrets redacted from chunk text",
		},
	)

	// QueueDepth is the number of documents waiting for a worker.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragd",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Number of documents waiting for a worker",
		},
	)
)
