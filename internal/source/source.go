// Package source provides verbatim data sources for the sync integration.
package source

import (
	"context"
	"time"
)

// RawVerbatim is a feedback record in the source system's own shape, before
// conversion to the API comment format.
type RawVerbatim struct {
	ID        string
	Text      string
	NPS       int
	Username  string
	Timestamp time.Time
}

// Source paginates through verbatims in order of timestamp. NewerThan returns
// the page at pageIndex of all records with a timestamp at or after since; an
// empty page means the source is exhausted for that cutoff.
type Source interface {
	NewerThan(ctx context.Context, since time.Time, pageIndex int) ([]RawVerbatim, error)
}
