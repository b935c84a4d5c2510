package scrape

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/L0ckR/LCT-hackaton/internal/llmjson"
	"github.com/L0ckR/LCT-hackaton/internal/models"
)

const (
	freeformChunkSize    = 6000
	freeformChunkOverlap = 500
	freeformDedupPrefix  = 100
)

var scriptBlockRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)

// ChatCompleter is the slice of the model API the freeform adapter needs.
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const freeformExtractionPrompt = `Ты извлекаешь отзывы клиентов из текста веб-страницы. ` +
	`Верни строго JSON без пояснений вида {"reviews": [...]}, где каждый элемент — объект с ключами ` +
	`date, author, title, text, rating, status. Если какое-то поле отсутствует в тексте, используй пустую строку. ` +
	`Не выдумывай отзывы: включай только фрагменты, которые выглядят как настоящие отзывы клиентов.` +
	"\n\nТекст страницы:\n"

// FreeformAdapter extracts reviews from pages without a structured endpoint
// by chunking the visible text and asking the chat model for review-shaped
// records. A chunk that yields nothing is skipped, never fatal.
type FreeformAdapter struct {
	client  *Client
	ctrl    *Controller
	chat    ChatCompleter
	logger  *slog.Logger
	source  string
	baseURL string
}

// NewFreeformAdapter wires the language-model assisted adapter for an
// arbitrary listing URL.
func NewFreeformAdapter(client *Client, ctrl *Controller, chat ChatCompleter, logger *slog.Logger, source, baseURL string) *FreeformAdapter {
	return &FreeformAdapter{
		client:  client,
		ctrl:    ctrl,
		chat:    chat,
		logger:  logger,
		source:  source,
		baseURL: baseURL,
	}
}

func (a *FreeformAdapter) Name() string { return a.source }

func (a *FreeformAdapter) FirstPage() int { return 1 }

func (a *FreeformAdapter) PagePolicy() FailurePolicy { return SkipPage }

func (a *FreeformAdapter) DefaultFilename(models.ScrapeJob) string {
	return fmt.Sprintf("%s_reviews.csv", a.source)
}

func (a *FreeformAdapter) pageURL(page int) string {
	if page <= 1 {
		return a.baseURL
	}
	sep := "?"
	if strings.Contains(a.baseURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", a.baseURL, sep, page)
}

// FreeformRecord is one review-shaped record extracted from a chunk.
type FreeformRecord struct {
	Date   string `json:"date"`
	Author string `json:"author"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Rating string `json:"rating"`
	Status string `json:"status"`
}

// FetchPage fetches the rendered page, extracts records chunk by chunk and
// maps them to rows. Rows carry no source-native id, so identity falls back
// to the content hash.
func (a *FreeformAdapter) FetchPage(ctx context.Context, job models.ScrapeJob, page int) (Page, error) {
	pageURL := a.pageURL(page)
	a.logger.Debug("fetching freeform page", "page", page, "url", pageURL)

	body, err := fetchWithRetry(ctx, a.client, a.ctrl, a.logger, pageURL, a.baseURL, page)
	if err != nil {
		return Page{}, err
	}

	text := VisibleText(string(body))
	chunks := ChunkText(text, freeformChunkSize, freeformChunkOverlap)

	var records []FreeformRecord
	for i, chunk := range chunks {
		content, err := a.chat.Complete(ctx, freeformExtractionPrompt+chunk)
		if err != nil {
			a.logger.Warn("chunk extraction call failed, skipping chunk",
				"page", page,
				"chunk", i,
				"error", err)
			continue
		}
		parsed := ParseChunkRecords(content)
		if len(parsed) == 0 {
			a.logger.Info("chunk yielded no valid records", "page", page, "chunk", i)
			continue
		}
		records = append(records, parsed...)
	}

	records = DedupRecords(records)

	result := Page{}
	for _, rec := range records {
		parsed := parseFreeformDate(rec.Date)
		if job.StartDate != nil && parsed != nil && parsed.Before(*job.StartDate) {
			result.ReachedThreshold = true
			continue
		}
		result.Rows = append(result.Rows, models.ReviewRow{
			URL:          pageURL,
			ReviewDate:   rec.Date,
			ParsedDate:   parsed,
			UserName:     rec.Author,
			ReviewTitle:  rec.Title,
			ReviewText:   rec.Text,
			ReviewStatus: rec.Status,
			Rating:       rec.Rating,
			BankName:     job.BankName,
		})
	}

	result.HasMore = !result.ReachedThreshold && len(result.Rows) > 0
	return result, nil
}

// VisibleText strips script, style and markup from a fetched page, leaving
// the text a reader would see.
func VisibleText(htmlContent string) string {
	stripped := scriptBlockRe.ReplaceAllString(htmlContent, " ")
	stripped = lineBreakRe.ReplaceAllString(stripped, "\n")
	stripped = closingParagraphRe.ReplaceAllString(stripped, "\n")
	stripped = anyTagRe.ReplaceAllString(stripped, " ")
	stripped = html.UnescapeString(stripped)
	// Collapse runs of spaces but keep newlines as chunking boundaries.
	lines := strings.Split(stripped, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// ChunkText splits text into chunks of at most size runes with a trailing
// overlap, breaking preferentially at paragraph then sentence boundaries.
func ChunkText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := breakPoint(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// breakPoint looks backwards through the last fifth of the window for a
// paragraph break, then a sentence end, before giving up on a hard cut.
func breakPoint(runes []rune, start, end int) int {
	windowStart := end - (end-start)/5
	for i := end - 1; i >= windowStart; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= windowStart; i-- {
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			return i + 1
		}
	}
	return end
}

// ParseChunkRecords leniently parses one chunk's model output into records.
// It is a pure function of the text: the same input yields the same records.
func ParseChunkRecords(content string) []FreeformRecord {
	var payload struct {
		Reviews []FreeformRecord `json:"reviews"`
	}
	if err := llmjson.Decode(content, &payload); err != nil {
		return nil
	}
	records := payload.Reviews[:0]
	for _, rec := range payload.Reviews {
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// DedupRecords drops records that share a text-prefix key, first seen wins.
// The 100-character key can falsely merge distinct short reviews with
// identical openings; the source offers no better key.
func DedupRecords(records []FreeformRecord) []FreeformRecord {
	seen := make(map[string]struct{}, len(records))
	unique := records[:0]
	for _, rec := range records {
		key := recordKey(rec.Text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, rec)
	}
	return unique
}

func recordKey(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > freeformDedupPrefix {
		runes = runes[:freeformDedupPrefix]
	}
	return string(runes)
}

func parseFreeformDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02", "02.01.2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
