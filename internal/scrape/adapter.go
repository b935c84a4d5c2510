package scrape

import (
	"context"

	"github.com/L0ckR/LCT-hackaton/internal/models"
)

// FailurePolicy decides what a page-level fetch failure means for the job.
// The divergence is deliberate per-source behavior: sravni aborts, banki
// records the page as skipped and continues.
type FailurePolicy int

const (
	AbortJob FailurePolicy = iota
	SkipPage
)

func (p FailurePolicy) String() string {
	if p == SkipPage {
		return "skip_page"
	}
	return "abort_job"
}

// Page is the parsed outcome of one page fetch.
type Page struct {
	Rows []models.ReviewRow

	// HasMore reports whether the source has further pages.
	HasMore bool

	// ReachedThreshold is set when an item older than the job's start date
	// was encountered; the orchestrator stops the job.
	ReachedThreshold bool
}

// Adapter is implemented once per external review source. All adapters share
// the same contract and differ only in parsing and policy constants.
type Adapter interface {
	// Name identifies the source in results, logs and metrics.
	Name() string

	// FirstPage is the index the source's pagination starts at.
	FirstPage() int

	// FetchPage retrieves and parses a single page. A *StructuralError means
	// the source's layout drifted and the job must abort regardless of policy.
	FetchPage(ctx context.Context, job models.ScrapeJob, page int) (Page, error)

	// DefaultFilename names the output file when the job does not.
	DefaultFilename(job models.ScrapeJob) string

	// PagePolicy selects abort-job or skip-page handling for non-structural
	// page failures.
	PagePolicy() FailurePolicy
}
