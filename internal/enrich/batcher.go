package enrich

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/L0ckR/LCT-hackaton/internal/metrics"
)

// Embedder produces one vector per input text, aligned by position.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type batchItem struct {
	text   string
	result chan []float32 // buffered; receives exactly one value, nil on failure
}

// Batcher accumulates individual texts into bounded batches and dispatches
// them as single embedding calls. Embeddings are best-effort: a failed batch
// resolves every item to nil rather than failing the callers.
type Batcher struct {
	embedder  Embedder
	queue     chan batchItem
	batchSize int
	interval  time.Duration
	metrics   *metrics.PipelineCollector
	logger    *slog.Logger

	startOnce sync.Once
}

// NewBatcher creates a micro-batcher. Start must be called before Enqueue.
func NewBatcher(embedder Embedder, batchSize int, interval time.Duration, collector *metrics.PipelineCollector, logger *slog.Logger) *Batcher {
	if batchSize < 1 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Batcher{
		embedder:  embedder,
		queue:     make(chan batchItem, batchSize*4),
		batchSize: batchSize,
		interval:  interval,
		metrics:   collector,
		logger:    logger,
	}
}

// Start launches the single background consumer. It exits when ctx is done.
func (b *Batcher) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.run(ctx)
	})
}

// Enqueue submits one text and returns a channel that delivers its vector,
// or nil when the batch call failed. Ownership of the result passes to the
// caller once the batch is dispatched.
func (b *Batcher) Enqueue(ctx context.Context, text string) (<-chan []float32, error) {
	item := batchItem{text: text, result: make(chan []float32, 1)}
	select {
	case b.queue <- item:
		return item.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Batcher) run(ctx context.Context) {
	for {
		batch := b.collect(ctx)
		if ctx.Err() != nil {
			for _, item := range batch {
				item.result <- nil
			}
			return
		}
		if len(batch) == 0 {
			continue
		}
		b.dispatch(ctx, batch)
	}
}

// collect waits up to the interval for the first item, then greedily drains
// whatever else is ready, up to the batch size.
func (b *Batcher) collect(ctx context.Context) []batchItem {
	timer := time.NewTimer(b.interval)
	defer timer.Stop()

	var batch []batchItem
	select {
	case item := <-b.queue:
		batch = append(batch, item)
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}

	for len(batch) < b.batchSize {
		select {
		case item := <-b.queue:
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}

func (b *Batcher) dispatch(ctx context.Context, batch []batchItem) {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.text
	}
	b.metrics.ObserveBatchSize(len(texts))

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(batch) {
		if err != nil {
			b.logger.Error("embedding batch failed", "size", len(batch), "error", err)
		} else {
			b.logger.Error("embedding batch returned wrong length",
				"want", len(batch),
				"got", len(vectors))
		}
		for _, item := range batch {
			item.result <- nil
		}
		return
	}

	for i, item := range batch {
		item.result <- vectors[i]
	}
}
