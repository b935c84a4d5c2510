package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector exposes Prometheus metrics for the acquisition and
// enrichment pipeline.
type PipelineCollector struct {
	registry *prometheus.Registry

	pagesFetched      *prometheus.CounterVec
	rowsParsed        *prometheus.CounterVec
	duplicatesDropped *prometheus.CounterVec
	enrichFallbacks   prometheus.Counter
	apiRetries        *prometheus.CounterVec
	batchSize         prometheus.Histogram
}

// NewPipelineCollector constructs a collector with its own registry.
func NewPipelineCollector() (*PipelineCollector, error) {
	registry := prometheus.NewRegistry()

	pagesFetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewparser",
		Subsystem: "scrape",
		Name:      "pages_total",
		Help:      "Pages fetched per source and outcome.",
	}, []string{"source", "outcome"})

	rowsParsed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewparser",
		Subsystem: "scrape",
		Name:      "rows_total",
		Help:      "Review rows parsed per source, before deduplication.",
	}, []string{"source"})

	duplicatesDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewparser",
		Subsystem: "scrape",
		Name:      "duplicates_total",
		Help:      "Duplicate rows dropped per source.",
	}, []string{"source"})

	enrichFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reviewparser",
		Subsystem: "enrich",
		Name:      "fallbacks_total",
		Help:      "Sentiment analyses served by the local heuristic.",
	})

	apiRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewparser",
		Subsystem: "enrich",
		Name:      "api_retries_total",
		Help:      "Model API retries per endpoint.",
	}, []string{"api"})

	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reviewparser",
		Subsystem: "enrich",
		Name:      "embedding_batch_size",
		Help:      "Number of texts per embedding batch call.",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
	})

	for _, c := range []prometheus.Collector{
		pagesFetched, rowsParsed, duplicatesDropped,
		enrichFallbacks, apiRetries, batchSize,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &PipelineCollector{
		registry:          registry,
		pagesFetched:      pagesFetched,
		rowsParsed:        rowsParsed,
		duplicatesDropped: duplicatesDropped,
		enrichFallbacks:   enrichFallbacks,
		apiRetries:        apiRetries,
		batchSize:         batchSize,
	}, nil
}

// Handler returns an HTTP handler for exposing the metrics.
func (c *PipelineCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObservePage records a fetched page with its outcome (ok, skipped, aborted).
func (c *PipelineCollector) ObservePage(source, outcome string) {
	if c == nil {
		return
	}
	c.pagesFetched.WithLabelValues(source, outcome).Inc()
}

// AddRows records parsed rows for a source.
func (c *PipelineCollector) AddRows(source string, n int) {
	if c == nil {
		return
	}
	c.rowsParsed.WithLabelValues(source).Add(float64(n))
}

// AddDuplicates records dropped duplicate rows for a source.
func (c *PipelineCollector) AddDuplicates(source string, n int) {
	if c == nil {
		return
	}
	c.duplicatesDropped.WithLabelValues(source).Add(float64(n))
}

// IncFallback records one heuristic sentiment analysis.
func (c *PipelineCollector) IncFallback() {
	if c == nil {
		return
	}
	c.enrichFallbacks.Inc()
}

// IncAPIRetry records one model API retry for the given endpoint.
func (c *PipelineCollector) IncAPIRetry(api string) {
	if c == nil {
		return
	}
	c.apiRetries.WithLabelValues(api).Inc()
}

// ObserveBatchSize records the size of one embedding batch call.
func (c *PipelineCollector) ObserveBatchSize(n int) {
	if c == nil {
		return
	}
	c.batchSize.Observe(float64(n))
}
