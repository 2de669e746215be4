// Package metrics registers the service's Prometheus instruments. All
// metrics live under the "edurag" namespace and are registered on the
// default registry, exposed by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "edurag"

var (
	// DocumentsIngested counts finished ingestion runs by terminal status
	// (ready or error).
	DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "documents_total",
		Help:      "Ingestion runs by terminal document status.",
	}, []string{"status"})

	// ChunksEmbedded counts embedded chunks by where the vector came from
	// (cache hit or embedding API).
	ChunksEmbedded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "chunks_embedded_total",
		Help:      "Chunks embedded, labelled by vector source.",
	}, []string{"source"})

	// EmbeddingRetries counts individual embedding call retries.
	EmbeddingRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "embedding_retries_total",
		Help:      "Embedding API calls that were retried after a failure.",
	})

	// IngestDuration observes wall time of whole ingestion runs.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "End-to-end ingestion duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// Queries counts query requests by outcome.
	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "requests_total",
		Help:      "Query requests by outcome (answered, no_results, error).",
	}, []string{"outcome"})

	// RetrievalDuration observes embed-plus-search latency, the retrieval
	// part of a query before generation starts.
	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "retrieval_duration_seconds",
		Help:      "Query embedding plus vector search latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429 by the rate limiter.",
	})
)
