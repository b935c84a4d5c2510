package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/L0ckR/LCT-hackaton/internal/models"
)

const (
	sravniSourceName = "gazprombank_reviews"

	gazprombankID   = "5bb4f768245bc22a520a6115"
	gazprombankSlug = "gazprombank"
	gazprombankName = "Газпромбанк"

	defaultFingerPrint = "1d345dd221ef718448c6bef7fc795d47"

	defaultSravniBaseURL = "https://www.sravni.ru"
)

// SravniAdapter reads the sravni.ru proxy-reviews JSON API. The endpoint has
// a stable contract, so malformed JSON is treated as structural drift and a
// page failure aborts the whole job.
type SravniAdapter struct {
	client  *Client
	ctrl    *Controller
	logger  *slog.Logger
	baseURL string
}

// NewSravniAdapter wires the structured-API adapter.
func NewSravniAdapter(client *Client, ctrl *Controller, logger *slog.Logger) *SravniAdapter {
	return &SravniAdapter{
		client:  client,
		ctrl:    ctrl,
		logger:  logger,
		baseURL: defaultSravniBaseURL,
	}
}

func (a *SravniAdapter) Name() string { return sravniSourceName }

// FirstPage is 0: the proxy API is zero-indexed.
func (a *SravniAdapter) FirstPage() int { return 0 }

func (a *SravniAdapter) PagePolicy() FailurePolicy { return AbortJob }

func (a *SravniAdapter) DefaultFilename(job models.ScrapeJob) string {
	return fmt.Sprintf("sravni_reviews_%s.csv", a.slug(job))
}

func (a *SravniAdapter) slug(job models.ScrapeJob) string {
	if job.BankSlug != "" {
		return job.BankSlug
	}
	return gazprombankSlug
}

func (a *SravniAdapter) bankName(job models.ScrapeJob) string {
	if job.BankName != "" {
		return job.BankName
	}
	return gazprombankName
}

func (a *SravniAdapter) pageURL(job models.ScrapeJob, page int) string {
	finger := job.FingerPrint
	if finger == "" {
		finger = defaultFingerPrint
	}
	q := url.Values{}
	q.Set("filterBy", "all")
	q.Set("fingerPrint", finger)
	q.Set("isClient", "false")
	q.Set("locationRoute", "")
	q.Set("newIds", "true")
	q.Set("orderBy", "byDate")
	q.Set("pageIndex", fmt.Sprint(page))
	q.Set("pageSize", fmt.Sprint(job.PageSize))
	q.Set("reviewObjectId", gazprombankID)
	q.Set("reviewObjectType", "banks")
	q.Set("specificProductId", "")
	q.Set("tag", "")
	q.Set("withVotes", "true")
	return a.baseURL + "/proxy-reviews/reviews?" + q.Encode()
}

type sravniItem struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	AuthorName   string `json:"authorName"`
	LocationData *struct {
		Name     string `json:"name"`
		FullName string `json:"fullName"`
	} `json:"locationData"`
	Title              string      `json:"title"`
	Text               string      `json:"text"`
	RatingStatus       string      `json:"ratingStatus"`
	Rating             json.Number `json:"rating"`
	ReviewTag          string      `json:"reviewTag"`
	HasCompanyResponse bool        `json:"hasCompanyResponse"`
}

// FetchPage retrieves one page of reviews. Items arrive date-descending, so
// the first item older than the job's start date stops the whole job.
func (a *SravniAdapter) FetchPage(ctx context.Context, job models.ScrapeJob, page int) (Page, error) {
	slug := a.slug(job)
	referer := fmt.Sprintf("%s/bank/%s/otzyvy/", a.baseURL, slug)
	pageURL := a.pageURL(job, page)

	a.logger.Debug("fetching sravni reviews page", "page", page, "url", pageURL)

	body, err := fetchWithRetry(ctx, a.client, a.ctrl, a.logger, pageURL, referer, page)
	if err != nil {
		return Page{}, err
	}

	var payload struct {
		Items []sravniItem `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Page{}, &StructuralError{
			Source: a.Name(),
			Page:   page,
			Reason: fmt.Sprintf("failed to decode JSON: %v", err),
		}
	}

	if len(payload.Items) == 0 {
		a.logger.Info("no review items returned, stopping", "page", page)
		return Page{HasMore: false}, nil
	}

	result := Page{}
	for _, item := range payload.Items {
		parsed := parseISODate(item.Date)
		if job.StartDate != nil && parsed != nil && parsed.Before(*job.StartDate) {
			result.ReachedThreshold = true
			break
		}
		result.Rows = append(result.Rows, a.mapItem(item, slug, a.bankName(job), parsed))
	}

	result.HasMore = !result.ReachedThreshold && len(payload.Items) >= job.PageSize
	return result, nil
}

func (a *SravniAdapter) mapItem(item sravniItem, slug, bankName string, parsed *time.Time) models.ReviewRow {
	reviewURL := ""
	if item.ID != "" {
		reviewURL = fmt.Sprintf("%s/bank/%s/otzyvy/%s/", a.baseURL, slug, item.ID)
	}
	city, cityFull := "", ""
	if item.LocationData != nil {
		city = item.LocationData.Name
		cityFull = item.LocationData.FullName
	}
	return models.ReviewRow{
		URL:          reviewURL,
		ReviewDate:   item.Date,
		ParsedDate:   parsed,
		UserName:     item.AuthorName,
		UserCity:     city,
		UserCityFull: cityFull,
		ReviewTitle:  item.Title,
		ReviewText:   item.Text,
		ReviewStatus: item.RatingStatus,
		Rating:       item.Rating.String(),
		ReviewTag:    item.ReviewTag,
		BankName:     bankName,
		IsBankAns:    item.HasCompanyResponse,
		ReviewID:     item.ID,
	}
}

// parseISODate handles ISO-8601 timestamps with or without a zone.
func parseISODate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
