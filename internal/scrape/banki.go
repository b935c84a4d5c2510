package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/L0ckR/LCT-hackaton/internal/models"
)

const (
	bankiSourceName = "banki_ru"

	defaultBankiBaseURL = "https://www.banki.ru"

	bankiDateLayout = "2006-01-02 15:04:05"

	statusVerified = "Отзыв проверен"
	statusRejected = "Отзыв не зачтен"
	statusPending  = "Отзыв проверяется"
)

var (
	moduleOptionsRe = regexp.MustCompile(`(?s)data-module-options=("|')(.*?)("|')`)
	jsonLDScriptRe  = regexp.MustCompile(`(?s)<script type="application/ld\+json">(.*?)</script>`)

	closingParagraphRe = regexp.MustCompile(`(?i)</p>`)
	lineBreakRe        = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTagRe           = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe       = regexp.MustCompile(`\s+`)
)

// BankiAdapter scrapes rendered banki.ru listing pages. The review payload
// lives in a data-module-options script attribute; its absence means the
// markup changed and the job aborts. Ordinary page failures are skipped.
type BankiAdapter struct {
	client  *Client
	ctrl    *Controller
	logger  *slog.Logger
	baseURL string
}

// NewBankiAdapter wires the HTML/JSON-LD adapter.
func NewBankiAdapter(client *Client, ctrl *Controller, logger *slog.Logger) *BankiAdapter {
	return &BankiAdapter{
		client:  client,
		ctrl:    ctrl,
		logger:  logger,
		baseURL: defaultBankiBaseURL,
	}
}

func (a *BankiAdapter) Name() string { return bankiSourceName }

// FirstPage is 1: listing pages are one-indexed.
func (a *BankiAdapter) FirstPage() int { return 1 }

func (a *BankiAdapter) PagePolicy() FailurePolicy { return SkipPage }

func (a *BankiAdapter) DefaultFilename(job models.ScrapeJob) string {
	return fmt.Sprintf("banki_ru_reviews_%s.csv", a.slug(job))
}

func (a *BankiAdapter) slug(job models.ScrapeJob) string {
	if job.BankSlug != "" {
		return job.BankSlug
	}
	return gazprombankSlug
}

func (a *BankiAdapter) bankName(job models.ScrapeJob) string {
	if job.BankName != "" {
		return job.BankName
	}
	return gazprombankName
}

func (a *BankiAdapter) listingURL(slug string) string {
	return fmt.Sprintf("%s/services/responses/bank/%s/", a.baseURL, slug)
}

func (a *BankiAdapter) pageURL(slug string, page, pageSize int) string {
	base := a.listingURL(slug)
	if page <= 1 {
		return fmt.Sprintf("%s?type=all&period=all&perPage=%d", base, pageSize)
	}
	return fmt.Sprintf("%s?page=%d&type=all&period=all&perPage=%d", base, page, pageSize)
}

type bankiItem struct {
	ID              json.Number `json:"id"`
	DateCreate      string      `json:"dateCreate"`
	Title           string      `json:"title"`
	Text            string      `json:"text"`
	Grade           json.Number `json:"grade"`
	IsCountable     *bool       `json:"isCountable"`
	AgentAnswerText string      `json:"agentAnswerText"`
}

// ldReview is a JSON-LD Review entry cross-referenced by position to fill
// author and description when the primary payload omits them.
type ldReview struct {
	Type         string `json:"@type"`
	Author       any    `json:"author"`
	Description  string `json:"description"`
	Name         string `json:"name"`
	ReviewRating *struct {
		RatingValue json.Number `json:"ratingValue"`
	} `json:"reviewRating"`
}

func (r ldReview) authorName() string {
	switch v := r.Author.(type) {
	case string:
		return v
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return name
		}
	}
	return ""
}

// FetchPage retrieves and parses one rendered listing page.
func (a *BankiAdapter) FetchPage(ctx context.Context, job models.ScrapeJob, page int) (Page, error) {
	slug := a.slug(job)
	referer := a.listingURL(slug) + "?type=all&period=all"
	pageURL := a.pageURL(slug, page, job.PageSize)

	a.logger.Debug("fetching banki.ru reviews page", "page", page, "url", pageURL)

	body, err := fetchWithRetry(ctx, a.client, a.ctrl, a.logger, pageURL, referer, page)
	if err != nil {
		return Page{}, err
	}

	items, hasMore, err := a.extractPagePayload(string(body), page)
	if err != nil {
		return Page{}, err
	}
	if len(items) == 0 {
		a.logger.Info("no review items returned, stopping", "page", page)
		return Page{HasMore: false}, nil
	}

	ldReviews := extractJSONLDReviews(string(body))
	statuses := a.extractStatusBadges(string(body), items)

	result := Page{}
	for i, item := range items {
		var meta ldReview
		if i < len(ldReviews) {
			meta = ldReviews[i]
		}
		status := ""
		if i < len(statuses) {
			status = statuses[i]
		}
		row, stop := a.buildRow(job, item, meta, slug, a.bankName(job), status)
		if stop {
			result.ReachedThreshold = true
			break
		}
		result.Rows = append(result.Rows, row)
	}

	result.HasMore = !result.ReachedThreshold && hasMore
	return result, nil
}

// extractPagePayload scans the markup for a data-module-options attribute
// whose value parses as JSON containing a "responses" key.
func (a *BankiAdapter) extractPagePayload(htmlContent string, page int) ([]bankiItem, bool, error) {
	for _, match := range moduleOptionsRe.FindAllStringSubmatch(htmlContent, -1) {
		raw := html.UnescapeString(match[2])

		var keys map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			continue
		}
		rawResponses, ok := keys["responses"]
		if !ok {
			continue
		}

		var responses struct {
			Data         []bankiItem `json:"data"`
			HasMorePages bool        `json:"hasMorePages"`
		}
		if err := json.Unmarshal(rawResponses, &responses); err != nil {
			continue
		}
		return responses.Data, responses.HasMorePages, nil
	}

	return nil, false, &StructuralError{
		Source: bankiSourceName,
		Page:   page,
		Reason: "responses payload not found in markup",
	}
}

func extractJSONLDReviews(htmlContent string) []ldReview {
	for _, match := range jsonLDScriptRe.FindAllStringSubmatch(htmlContent, -1) {
		var payload struct {
			Review []ldReview `json:"review"`
		}
		if err := json.Unmarshal([]byte(match[1]), &payload); err != nil {
			continue
		}
		if len(payload.Review) == 0 {
			continue
		}
		reviews := make([]ldReview, 0, len(payload.Review))
		for _, entry := range payload.Review {
			if entry.Type == "Review" {
				reviews = append(reviews, entry)
			}
		}
		return reviews
	}
	return nil
}

// extractStatusBadges locates each review's status phrase in the rendered
// markup: find the anchor carrying the review id, walk up to the nearest
// block-level ancestor and search its text for the status prefix.
func (a *BankiAdapter) extractStatusBadges(htmlContent string, items []bankiItem) []string {
	statuses := make([]string, len(items))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		a.logger.Debug("failed to parse markup for status badges", "error", err)
		return statuses
	}

	for i, item := range items {
		id := item.ID.String()
		if id == "" {
			continue
		}
		link := doc.Find(fmt.Sprintf("a[href*='?id=%s']", id)).First()
		if link.Length() == 0 {
			continue
		}

		container := link.Parent()
		for depth := 0; depth < 5 && container.Length() > 0; depth++ {
			if name := goquery.NodeName(container); name == "article" || name == "div" || name == "section" {
				if badge := findStatusText(container); badge != "" {
					statuses[i] = badge
					break
				}
			}
			container = container.Parent()
		}
	}
	return statuses
}

func findStatusText(container *goquery.Selection) string {
	found := ""
	container.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		text := strings.TrimSpace(div.Text())
		if strings.HasPrefix(text, "Отзыв") {
			found = text
			return false
		}
		return true
	})
	return found
}

func (a *BankiAdapter) buildRow(job models.ScrapeJob, item bankiItem, meta ldReview, slug, bankName, statusText string) (models.ReviewRow, bool) {
	parsed := parseBankiDate(item.DateCreate)
	if job.StartDate != nil && parsed != nil && parsed.Before(*job.StartDate) {
		return models.ReviewRow{}, true
	}

	id := item.ID.String()
	reviewURL := ""
	if id != "" {
		reviewURL = fmt.Sprintf("%s/services/responses/bank/%s/?id=%s", a.baseURL, slug, id)
	}

	dateValue := item.DateCreate
	if parsed != nil {
		dateValue = parsed.Format("2006-01-02T15:04:05")
	}

	description := meta.Description
	if description == "" {
		description = item.Text
	}
	title := item.Title
	if title == "" {
		title = meta.Name
	}
	rating := item.Grade.String()
	if rating == "" && meta.ReviewRating != nil {
		rating = meta.ReviewRating.RatingValue.String()
	}

	return models.ReviewRow{
		URL:          reviewURL,
		ReviewDate:   dateValue,
		ParsedDate:   parsed,
		UserName:     meta.authorName(),
		ReviewTitle:  title,
		ReviewText:   normalizeMarkupText(description),
		ReviewStatus: inferStatus(statusText, item.IsCountable),
		Rating:       rating,
		BankName:     bankName,
		IsBankAns:    item.AgentAnswerText != "",
		ReviewID:     id,
	}, false
}

// inferStatus falls back to the countable flag when no badge was rendered.
func inferStatus(statusText string, isCountable *bool) string {
	if statusText != "" {
		return statusText
	}
	switch {
	case isCountable == nil:
		return statusPending
	case *isCountable:
		return statusVerified
	default:
		return statusRejected
	}
}

// normalizeMarkupText flattens review HTML to plain text: paragraph and line
// breaks become newlines before tags are stripped, then whitespace collapses.
func normalizeMarkupText(value string) string {
	if value == "" {
		return ""
	}
	normalized := closingParagraphRe.ReplaceAllString(value, "\n")
	normalized = lineBreakRe.ReplaceAllString(normalized, "\n")
	normalized = anyTagRe.ReplaceAllString(normalized, " ")
	normalized = html.UnescapeString(normalized)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(normalized, " "))
}

func parseBankiDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(bankiDateLayout, value)
	if err != nil {
		return nil
	}
	return &t
}
