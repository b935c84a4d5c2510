// Package events carries best-effort progress notifications out of the
// pipeline. Delivery is fire-and-forget: publishing never blocks and never
// fails the caller.
package events

import (
	"log/slog"
	"sync"
)

// Event types emitted by the pipeline.
const (
	TypeImportProgress  = "import_progress"
	TypeReviewsUpdated  = "reviews_updated"
	TypeImportCompleted = "import_completed"
)

// Event is one notification payload.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Total     int    `json:"total,omitempty"`
	Count     int    `json:"count,omitempty"`
}

// Progress reports enrichment progress for a job.
func Progress(jobID string, processed, total int) Event {
	return Event{Type: TypeImportProgress, JobID: jobID, Processed: processed, Total: total}
}

// ReviewsUpdated signals that the review set changed.
func ReviewsUpdated() Event {
	return Event{Type: TypeReviewsUpdated}
}

// Completed reports a finished import with its item count.
func Completed(jobID string, count int) Event {
	return Event{Type: TypeImportCompleted, JobID: jobID, Count: count}
}

// Publisher delivers events to an external pub/sub collaborator.
type Publisher interface {
	Publish(event Event)
}

// LogPublisher writes events to the structured log. Used when no external
// pub/sub transport is wired.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(event Event) {
	p.Logger.Info("pipeline event",
		"type", event.Type,
		"job_id", event.JobID,
		"processed", event.Processed,
		"total", event.Total,
		"count", event.Count)
}

// MemoryPublisher collects events for assertions in tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
