package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// ReviewColumns is the fixed column set of the row file. Downstream consumers
// rely on this exact shape; do not reorder or rename.
var ReviewColumns = []string{
	"url",
	"review_date",
	"user_name",
	"user_city",
	"user_city_full",
	"review_title",
	"review_text",
	"review_status",
	"rating",
	"review_tag",
	"bank_name",
	"is_bank_ans",
	"review_id",
}

// ReviewRow is a single scraped review. Rows are never mutated after creation.
type ReviewRow struct {
	URL          string
	ReviewDate   string // raw or normalized date string as persisted
	ParsedDate   *time.Time
	UserName     string
	UserCity     string
	UserCityFull string
	ReviewTitle  string
	ReviewText   string
	ReviewStatus string
	Rating       string
	ReviewTag    string
	BankName     string
	IsBankAns    bool
	ReviewID     string
}

// Record returns the row as CSV values, aligned with ReviewColumns.
func (r ReviewRow) Record() []string {
	return []string{
		r.URL,
		r.ReviewDate,
		r.UserName,
		r.UserCity,
		r.UserCityFull,
		r.ReviewTitle,
		r.ReviewText,
		r.ReviewStatus,
		r.Rating,
		r.ReviewTag,
		r.BankName,
		strconv.FormatBool(r.IsBankAns),
		r.ReviewID,
	}
}

// DedupKey identifies the same logical review across pages and runs. The
// source-native id wins when present, otherwise a hash of (date, text).
func (r ReviewRow) DedupKey() string {
	if r.ReviewID != "" {
		return "id:" + r.ReviewID
	}
	sum := sha256.Sum256([]byte(r.ReviewDate + "|" + r.ReviewText))
	return "content:" + hex.EncodeToString(sum[:])
}

// ScrapeJob describes one acquisition run. Immutable once the run starts.
type ScrapeJob struct {
	Source         string
	PageSize       int
	MaxPages       int
	StartDate      *time.Time // stop when reviews older than this are reached
	MinDelay       time.Duration
	MaxDelay       time.Duration
	FingerPrint    string // source-specific auth token, sravni only
	OutputFilename string
	BankSlug       string
	BankName       string
}

const (
	maxPageSize = 200
	maxMaxPages = 1000
	maxMinDelay = 120 * time.Second
	maxMaxDelay = 180 * time.Second
)

// Validate rejects invalid job parameters before any network call is made.
func (j ScrapeJob) Validate() error {
	if j.PageSize < 1 || j.PageSize > maxPageSize {
		return fmt.Errorf("page size must be between 1 and %d, got %d", maxPageSize, j.PageSize)
	}
	if j.MaxPages < 1 || j.MaxPages > maxMaxPages {
		return fmt.Errorf("max pages must be between 1 and %d, got %d", maxMaxPages, j.MaxPages)
	}
	if j.MinDelay < 0 || j.MinDelay > maxMinDelay {
		return fmt.Errorf("min delay must be between 0 and %s, got %s", maxMinDelay, j.MinDelay)
	}
	if j.MaxDelay < 0 || j.MaxDelay > maxMaxDelay {
		return fmt.Errorf("max delay must be between 0 and %s, got %s", maxMaxDelay, j.MaxDelay)
	}
	if j.MinDelay > j.MaxDelay {
		return fmt.Errorf("min delay %s exceeds max delay %s", j.MinDelay, j.MaxDelay)
	}
	return nil
}

// ParseResult is the envelope produced once per scrape job.
type ParseResult struct {
	Source      string
	Filename    string
	Path        string
	RowsWritten int
	Metadata    map[string]any
	Rows        []ReviewRow
}
