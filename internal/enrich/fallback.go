package enrich

import (
	"regexp"
	"strings"

	"github.com/L0ckR/LCT-hackaton/internal/models"
)

// Polarity thresholds mapping the raw score to a label.
const (
	positiveThreshold = 0.1
	negativeThreshold = -0.1

	fallbackSummaryLimit = 280
)

var wordRe = regexp.MustCompile(`\p{L}+`)

// polarityLexicon scores review vocabulary in [-1, 1]. Russian first, since
// that is what the sources produce, with common English terms alongside.
var polarityLexicon = map[string]float64{
	// positive
	"отличный": 0.9, "отлично": 0.9, "прекрасный": 0.9, "прекрасно": 0.9,
	"хороший": 0.7, "хорошо": 0.7, "замечательно": 0.9, "удобно": 0.6,
	"удобный": 0.6, "быстро": 0.5, "быстрый": 0.5, "вежливый": 0.6,
	"вежливо": 0.6, "спасибо": 0.5, "благодарю": 0.6, "доволен": 0.8,
	"довольна": 0.8, "рекомендую": 0.8, "лучший": 0.9, "нравится": 0.7,
	"понравилось": 0.7, "помогли": 0.5, "оперативно": 0.6,
	"great": 0.8, "good": 0.6, "excellent": 0.9, "love": 0.8,
	"fast": 0.5, "helpful": 0.6, "recommend": 0.7, "best": 0.9,

	// negative
	"плохой": -0.7, "плохо": -0.7, "ужасный": -0.9, "ужасно": -0.9,
	"отвратительно": -1.0, "отвратительный": -1.0, "обман": -0.9,
	"мошенники": -1.0, "долго": -0.4, "грубый": -0.7, "грубо": -0.7,
	"проблема": -0.5, "проблемы": -0.5, "ошибка": -0.5, "разочарован": -0.8,
	"разочарована": -0.8, "хамство": -0.9, "навязали": -0.7, "очередь": -0.3,
	"жалоба": -0.6, "отказали": -0.6, "худший": -0.9,
	"bad": -0.6, "terrible": -0.9, "awful": -0.9, "scam": -1.0,
	"slow": -0.4, "rude": -0.7, "worst": -0.9, "hate": -0.8,
}

// negators flip the polarity of the following sentiment-bearing word.
var negators = map[string]struct{}{
	"не": {}, "нет": {}, "никак": {},
	"not": {}, "no": {}, "never": {},
}

// Polarity computes a lexical sentiment score in [-1, 1] with no network
// access. Zero means no sentiment-bearing vocabulary was found.
func Polarity(text string) float64 {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return 0
	}

	var sum float64
	var matched int
	negate := false
	for _, word := range words {
		if _, ok := negators[word]; ok {
			negate = true
			continue
		}
		weight, ok := polarityLexicon[word]
		if ok {
			if negate {
				weight = -weight
			}
			sum += weight
			matched++
		}
		negate = false
	}
	if matched == 0 {
		return 0
	}

	score := sum / float64(matched)
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

// FallbackAnalysis is the local heuristic used when the model API is
// unavailable or returns invalid output. It must stay side-effect-free.
func FallbackAnalysis(text string) models.EnrichmentResult {
	score := Polarity(text)

	label := models.SentimentNeutral
	if score > positiveThreshold {
		label = models.SentimentPositive
	} else if score < negativeThreshold {
		label = models.SentimentNegative
	}

	summary := truncateRunes(text, fallbackSummaryLimit)
	return models.EnrichmentResult{
		Sentiment:      label,
		SentimentScore: &score,
		Summary:        &summary,
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
