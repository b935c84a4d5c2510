package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/L0ckR/LCT-hackaton/internal/llmjson"
	"github.com/L0ckR/LCT-hackaton/internal/metrics"
	"github.com/L0ckR/LCT-hackaton/internal/models"
)

// Analyzer enriches one review text with a sentiment label, score, summary
// and highlights. With no API key it runs fallback-only; otherwise it retries
// transient API failures with linear backoff and degrades to the local
// heuristic. Structurally invalid payloads fall back immediately, without a
// retry: repeating the call cannot fix a schema violation.
type Analyzer struct {
	client  *Client
	retries int
	backoff time.Duration
	sleep   func(context.Context, time.Duration) error
	metrics *metrics.PipelineCollector
	logger  *slog.Logger
}

// NewAnalyzer wires the sentiment analyzer on top of a model client.
func NewAnalyzer(client *Client, collector *metrics.PipelineCollector, logger *slog.Logger) *Analyzer {
	cfg := client.Config()
	return &Analyzer{
		client:  client,
		retries: cfg.ChatRetries,
		backoff: cfg.ChatBackoff,
		sleep:   sleepContext,
		metrics: collector,
		logger:  logger,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type sentimentPayload struct {
	Sentiment      string   `json:"sentiment"`
	SentimentScore *float64 `json:"sentiment_score"`
	Summary        *string  `json:"summary"`
	Highlights     []string `json:"highlights"`
}

// Analyze produces exactly one result per input text. The precomputed
// embedding, when present, is attached to whichever path produces the result.
func (a *Analyzer) Analyze(ctx context.Context, text string, embedding []float32) models.EnrichmentResult {
	if !a.client.Available() {
		return a.fallback(text, embedding)
	}

	prompt := sentimentPrompt + text
	for attempt := 0; attempt < a.retries; attempt++ {
		content, err := a.client.ChatJSON(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return a.fallback(text, embedding)
			}
			if !IsTransient(err) {
				a.logger.Warn("chat completion failed, falling back", "error", err)
				return a.fallback(text, embedding)
			}
			delay := a.backoff * time.Duration(attempt+1)
			a.logger.Warn("chat completion attempt failed, retrying",
				"attempt", attempt+1,
				"delay", delay,
				"error", err)
			a.metrics.IncAPIRetry("chat")
			if serr := a.sleep(ctx, delay); serr != nil {
				return a.fallback(text, embedding)
			}
			continue
		}

		var payload sentimentPayload
		if err := llmjson.Decode(content, &payload); err != nil {
			a.logger.Warn("invalid model payload structure, falling back", "error", err)
			return a.fallback(text, embedding)
		}
		result, ok := payload.toResult(embedding)
		if !ok {
			a.logger.Warn("model payload violates sentiment schema, falling back",
				"sentiment", payload.Sentiment)
			return a.fallback(text, embedding)
		}
		return result
	}

	a.logger.Warn("chat retries exhausted, falling back to heuristic sentiment")
	return a.fallback(text, embedding)
}

func (a *Analyzer) fallback(text string, embedding []float32) models.EnrichmentResult {
	a.metrics.IncFallback()
	result := FallbackAnalysis(text)
	result.Embedding = embedding
	return result
}

// toResult validates the payload against the enrichment contract.
func (p sentimentPayload) toResult(embedding []float32) (models.EnrichmentResult, bool) {
	label := models.Sentiment(p.Sentiment)
	if !label.Valid() {
		return models.EnrichmentResult{}, false
	}

	score := p.SentimentScore
	if score != nil {
		clamped := clamp(*score, -1, 1)
		score = &clamped
	}

	highlights := p.Highlights
	if len(highlights) > models.MaxHighlights {
		highlights = highlights[:models.MaxHighlights]
	}

	return models.EnrichmentResult{
		Sentiment:      label,
		SentimentScore: score,
		Summary:        p.Summary,
		Highlights:     highlights,
		Embedding:      embedding,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
