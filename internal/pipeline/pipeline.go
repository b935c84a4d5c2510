// Package pipeline runs the asynchronous enrichment stage: embeddings via
// the micro-batcher, then sentiment analysis, with results aligned to input
// order and progress published along the way.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/L0ckR/LCT-hackaton/internal/enrich"
	"github.com/L0ckR/LCT-hackaton/internal/events"
	"github.com/L0ckR/LCT-hackaton/internal/models"
)

// Analyzer is the sentiment stage contract.
type Analyzer interface {
	Analyze(ctx context.Context, text string, embedding []float32) models.EnrichmentResult
}

// Pipeline ties the embedding micro-batcher and the sentiment analyzer
// together for a set of review texts.
type Pipeline struct {
	batcher   *enrich.Batcher
	analyzer  Analyzer
	publisher events.Publisher
	logger    *slog.Logger
}

// New wires the enrichment pipeline.
func New(batcher *enrich.Batcher, analyzer Analyzer, publisher events.Publisher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		batcher:   batcher,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessReviews enriches every text and returns results aligned to input
// order regardless of completion order. A failed embedding batch leaves nil
// vectors; the analyzer still produces a result for every text.
func (p *Pipeline) ProcessReviews(ctx context.Context, jobID string, texts []string) []models.EnrichmentResult {
	results := make([]models.EnrichmentResult, len(texts))
	if len(texts) == 0 {
		return results
	}

	total := len(texts)
	p.publisher.Publish(events.Progress(jobID, 0, total))

	// Submit everything to the batcher first so batches fill up, then await
	// the vectors in input order.
	vectorChans := make([]<-chan []float32, len(texts))
	for i, text := range texts {
		ch, err := p.batcher.Enqueue(ctx, text)
		if err != nil {
			p.logger.Warn("embedding enqueue cancelled", "index", i, "error", err)
		}
		vectorChans[i] = ch
	}

	embeddings := make([][]float32, len(texts))
	for i, ch := range vectorChans {
		if ch == nil {
			continue
		}
		select {
		case embeddings[i] = <-ch:
		case <-ctx.Done():
		}
	}

	var processed atomic.Int64
	var wg sync.WaitGroup
	for i := range texts {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			// The chat semaphore inside the client caps actual concurrency.
			results[idx] = p.analyzer.Analyze(ctx, texts[idx], embeddings[idx])
			done := int(processed.Add(1))
			p.publisher.Publish(events.Progress(jobID, done, total))
		}(i)
	}
	wg.Wait()

	p.publisher.Publish(events.ReviewsUpdated())
	p.publisher.Publish(events.Completed(jobID, total))
	return results
}
