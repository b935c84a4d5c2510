package scrape

import (
	"errors"
	"fmt"
)

// ErrNoReviews is returned when a job reaches a terminal state with zero
// accumulated rows.
var ErrNoReviews = errors.New("no reviews parsed")

// ErrRetryBudget marks a page whose retry budget is exhausted. Whether the
// job aborts or skips the page is the adapter's policy, not the fetcher's.
var ErrRetryBudget = errors.New("retry budget exhausted")

// StructuralError reports a broken contract with the external source: the
// expected payload shape is absent or the markup no longer matches the
// adapter's assumptions. Retrying cannot fix it, so it always aborts the job.
type StructuralError struct {
	Source string
	Page   int
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s page %d: structural drift: %s", e.Source, e.Page, e.Reason)
}

// IsStructural reports whether err is (or wraps) a structural drift error.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
