package scrape

import (
	"github.com/L0ckR/LCT-hackaton/internal/models"
)

// Deduplicator removes duplicate rows across pages and runs. First seen wins.
type Deduplicator struct {
	seen    map[string]struct{}
	dropped int
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Filter returns the rows whose dedup key has not been seen before,
// preserving input order.
func (d *Deduplicator) Filter(rows []models.ReviewRow) []models.ReviewRow {
	unique := make([]models.ReviewRow, 0, len(rows))
	for _, row := range rows {
		key := row.DedupKey()
		if _, ok := d.seen[key]; ok {
			d.dropped++
			continue
		}
		d.seen[key] = struct{}{}
		unique = append(unique, row)
	}
	return unique
}

// Dropped returns the number of duplicates removed so far.
func (d *Deduplicator) Dropped() int {
	return d.dropped
}
