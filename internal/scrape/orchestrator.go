package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/L0ckR/LCT-hackaton/internal/metrics"
	"github.com/L0ckR/LCT-hackaton/internal/models"
)

// State tracks the job through its page loop.
type State int

const (
	StateFetching State = iota
	StateParsed
	StateContinuing
	StateStoppedByThreshold
	StateStoppedByExhaustion
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateParsed:
		return "parsed"
	case StateContinuing:
		return "continuing"
	case StateStoppedByThreshold:
		return "stopped_by_threshold"
	case StateStoppedByExhaustion:
		return "stopped_by_exhaustion"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Orchestrator drives an adapter page by page through the backoff controller,
// aggregates and deduplicates rows, and persists the result.
type Orchestrator struct {
	adapter Adapter
	ctrl    *Controller
	sink    *CSVSink
	metrics *metrics.PipelineCollector // nil disables metrics
	logger  *slog.Logger
}

// NewOrchestrator wires a job runner for one adapter.
func NewOrchestrator(adapter Adapter, ctrl *Controller, sink *CSVSink, collector *metrics.PipelineCollector, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		adapter: adapter,
		ctrl:    ctrl,
		sink:    sink,
		metrics: collector,
		logger:  logger,
	}
}

// Run executes one scrape job to a terminal state and returns its envelope.
// A job has no external cancel signal beyond ctx; it otherwise runs until a
// threshold, exhaustion, or an abort.
func (o *Orchestrator) Run(ctx context.Context, job models.ScrapeJob) (*models.ParseResult, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	jobID := uuid.NewString()
	source := o.adapter.Name()
	logger := o.logger.With("job_id", jobID, "source", source)
	logger.Info("starting scrape job",
		"page_size", job.PageSize,
		"max_pages", job.MaxPages,
		"policy", o.adapter.PagePolicy().String())

	var (
		rows         []models.ReviewRow
		skippedPages []int
		state        State
	)

	first := o.adapter.FirstPage()
	for page := first; page < first+job.MaxPages; page++ {
		state = StateFetching
		parsed, err := o.adapter.FetchPage(ctx, job, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if IsStructural(err) || o.adapter.PagePolicy() == AbortJob {
				state = StateAborted
				o.metrics.ObservePage(source, "aborted")
				logger.Error("aborting job", "page", page, "error", err)
				return nil, err
			}
			// Skip-and-continue sources record the page and move on.
			skippedPages = append(skippedPages, page)
			o.metrics.ObservePage(source, "skipped")
			logger.Error("skipping page after repeated failures", "page", page, "error", err)
			if werr := o.ctrl.Wait(ctx, job.MinDelay, job.MaxDelay); werr != nil {
				return nil, werr
			}
			continue
		}

		state = StateParsed
		o.metrics.ObservePage(source, "ok")
		o.metrics.AddRows(source, len(parsed.Rows))
		rows = append(rows, parsed.Rows...)
		if len(parsed.Rows) > 0 {
			sample := parsed.Rows[0]
			logger.Info("parsed page",
				"page", page,
				"rows", len(parsed.Rows),
				"first_review_id", sample.ReviewID)
		}

		switch {
		case parsed.ReachedThreshold:
			state = StateStoppedByThreshold
			logger.Info("reached start date threshold, stopping", "page", page)
		case !parsed.HasMore:
			state = StateStoppedByExhaustion
			logger.Info("last page reached", "page", page)
		default:
			state = StateContinuing
		}
		if state != StateContinuing {
			break
		}

		if err := o.ctrl.Wait(ctx, job.MinDelay, job.MaxDelay); err != nil {
			return nil, err
		}
	}
	if state == StateContinuing || state == StateParsed {
		state = StateStoppedByExhaustion // max pages reached
	}

	dedup := NewDeduplicator()
	unique := dedup.Filter(rows)
	o.metrics.AddDuplicates(source, dedup.Dropped())
	if dedup.Dropped() > 0 {
		logger.Info("removed duplicate reviews", "count", dedup.Dropped())
	}

	if len(unique) == 0 {
		return nil, fmt.Errorf("source %s: %w", source, ErrNoReviews)
	}

	filename := job.OutputFilename
	if filename == "" {
		filename = o.adapter.DefaultFilename(job)
	}
	path, err := o.sink.Write(filename, unique)
	if err != nil {
		return nil, fmt.Errorf("persist rows: %w", err)
	}

	metadata := map[string]any{
		"job_id":             jobID,
		"bank_slug":          job.BankSlug,
		"bank_name":          job.BankName,
		"max_pages":          job.MaxPages,
		"page_size":          job.PageSize,
		"terminal_state":     state.String(),
		"duplicates_removed": dedup.Dropped(),
	}
	if job.StartDate != nil {
		metadata["start_date"] = job.StartDate.Format("2006-01-02T15:04:05Z07:00")
	} else {
		metadata["start_date"] = nil
	}
	if len(skippedPages) > 0 {
		metadata["skipped_pages"] = skippedPages
	}

	logger.Info("finished scrape job",
		"rows_written", len(unique),
		"terminal_state", state.String())

	name, _ := EnsureCSVFilename(filename)
	return &models.ParseResult{
		Source:      source,
		Filename:    name,
		Path:        path,
		RowsWritten: len(unique),
		Metadata:    metadata,
		Rows:        unique,
	}, nil
}

// IsNoReviews reports whether err is the zero-rows terminal failure.
func IsNoReviews(err error) bool {
	return errors.Is(err, ErrNoReviews)
}
