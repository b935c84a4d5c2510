package models

// Sentiment is the label attached to a review by the analyzer.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether the label is one of the three allowed values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// EnrichmentRequest carries one review text through the enrichment stage.
// The embedding is optional; when nil the analyzer requests one itself.
type EnrichmentRequest struct {
	Text      string
	Embedding []float32
}

// EnrichmentResult is produced exactly once per input text.
type EnrichmentResult struct {
	Sentiment      Sentiment
	SentimentScore *float64 // in [-1, 1] when present
	Summary        *string
	Highlights     []string // at most 5, in model order
	Embedding      []float32
}

// MaxHighlights bounds the highlight list on every enrichment result.
const MaxHighlights = 5
