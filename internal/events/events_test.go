package events

import (
	"encoding/json"
	"testing"
)

func TestEventConstructors(t *testing.T) {
	e := Progress("job-1", 3, 10)
	if e.Type != TypeImportProgress || e.JobID != "job-1" || e.Processed != 3 || e.Total != 10 {
		t.Errorf("Progress = %+v", e)
	}

	e = ReviewsUpdated()
	if e.Type != TypeReviewsUpdated {
		t.Errorf("ReviewsUpdated = %+v", e)
	}

	e = Completed("job-1", 42)
	if e.Type != TypeImportCompleted || e.Count != 42 {
		t.Errorf("Completed = %+v", e)
	}
}

func TestEventJSONShape(t *testing.T) {
	data, err := json.Marshal(Progress("job-1", 1, 2))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "import_progress" {
		t.Errorf("type field = %v", decoded["type"])
	}
	if _, ok := decoded["count"]; ok {
		t.Error("zero count must be omitted")
	}
}

func TestMemoryPublisherCollectsInOrder(t *testing.T) {
	var p MemoryPublisher
	p.Publish(Progress("j", 0, 2))
	p.Publish(Progress("j", 1, 2))
	p.Publish(Completed("j", 2))

	got := p.Events()
	if len(got) != 3 {
		t.Fatalf("got %d events", len(got))
	}
	if got[0].Processed != 0 || got[1].Processed != 1 || got[2].Type != TypeImportCompleted {
		t.Errorf("events out of order: %+v", got)
	}

	// The returned slice is a copy.
	got[0].Type = "mutated"
	if p.Events()[0].Type != TypeImportProgress {
		t.Error("Events() must return a copy")
	}
}
