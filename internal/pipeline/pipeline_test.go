package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/L0ckR/LCT-hackaton/internal/enrich"
	"github.com/L0ckR/LCT-hackaton/internal/events"
	"github.com/L0ckR/LCT-hackaton/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubEmbedder returns a one-element vector encoding the text length, or an
// error for every batch.
type stubEmbedder struct {
	fail bool
}

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.fail {
		return nil, errors.New("embedding api down")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len([]rune(text)))}
	}
	return vectors, nil
}

// stubAnalyzer labels everything neutral and echoes the text into the summary
// so alignment is observable.
type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, text string, embedding []float32) models.EnrichmentResult {
	summary := "summary: " + text
	return models.EnrichmentResult{
		Sentiment: models.SentimentNeutral,
		Summary:   &summary,
		Embedding: embedding,
	}
}

func testPipeline(t *testing.T, embedder enrich.Embedder) (*Pipeline, *events.MemoryPublisher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	batcher := enrich.NewBatcher(embedder, 4, 20*time.Millisecond, nil, testLogger())
	batcher.Start(ctx)

	publisher := &events.MemoryPublisher{}
	return New(batcher, stubAnalyzer{}, publisher, testLogger()), publisher
}

func TestProcessReviewsAlignsResults(t *testing.T) {
	p, _ := testPipeline(t, stubEmbedder{})

	texts := []string{"а", "бб", "ввв", "гггг", "ддддд"}
	results := p.ProcessReviews(context.Background(), "job-1", texts)
	if len(results) != len(texts) {
		t.Fatalf("got %d results for %d texts", len(results), len(texts))
	}
	for i, res := range results {
		if res.Summary == nil || *res.Summary != "summary: "+texts[i] {
			t.Errorf("result %d misaligned: %v", i, res.Summary)
		}
		if len(res.Embedding) != 1 || res.Embedding[0] != float32(i+1) {
			t.Errorf("embedding %d misaligned: %v", i, res.Embedding)
		}
	}
}

func TestProcessReviewsSurvivesEmbeddingFailure(t *testing.T) {
	p, _ := testPipeline(t, stubEmbedder{fail: true})

	texts := []string{"один", "два", "три"}
	results := p.ProcessReviews(context.Background(), "job-2", texts)
	if len(results) != len(texts) {
		t.Fatalf("got %d results", len(results))
	}
	for i, res := range results {
		if res.Embedding != nil {
			t.Errorf("result %d carries an embedding after batch failure", i)
		}
		if res.Sentiment != models.SentimentNeutral {
			t.Errorf("result %d has no sentiment", i)
		}
	}
}

func TestProcessReviewsPublishesEventSequence(t *testing.T) {
	p, publisher := testPipeline(t, stubEmbedder{})

	texts := []string{"раз", "два"}
	p.ProcessReviews(context.Background(), "job-3", texts)

	got := publisher.Events()
	if len(got) < 4 {
		t.Fatalf("got %d events, want initial progress, per-item progress, updated, completed", len(got))
	}

	first := got[0]
	if first.Type != events.TypeImportProgress || first.Processed != 0 || first.Total != 2 {
		t.Errorf("first event = %+v", first)
	}

	last := got[len(got)-1]
	if last.Type != events.TypeImportCompleted || last.Count != 2 || last.JobID != "job-3" {
		t.Errorf("last event = %+v", last)
	}
	if got[len(got)-2].Type != events.TypeReviewsUpdated {
		t.Errorf("penultimate event = %+v", got[len(got)-2])
	}

	var progressed int
	for _, e := range got {
		if e.Type == events.TypeImportProgress && e.Processed > 0 {
			progressed++
		}
	}
	if progressed != len(texts) {
		t.Errorf("per-item progress events = %d, want %d", progressed, len(texts))
	}
}

func TestProcessReviewsEmptyInput(t *testing.T) {
	p, publisher := testPipeline(t, stubEmbedder{})

	results := p.ProcessReviews(context.Background(), "job-4", nil)
	if len(results) != 0 {
		t.Errorf("results = %v", results)
	}
	if len(publisher.Events()) != 0 {
		t.Errorf("empty input must publish nothing, got %+v", publisher.Events())
	}
}

func TestProcessReviewsManyTexts(t *testing.T) {
	p, _ := testPipeline(t, stubEmbedder{})

	texts := make([]string, 30)
	for i := range texts {
		texts[i] = fmt.Sprintf("отзыв номер %d", i)
	}
	results := p.ProcessReviews(context.Background(), "job-5", texts)
	for i, res := range results {
		if res.Summary == nil || *res.Summary != "summary: "+texts[i] {
			t.Fatalf("result %d misaligned under load", i)
		}
	}
}
