package source

import (
	"context"
	"fmt"
	"time"
)

// DefaultPageSize is the default page size for sources.
const DefaultPageSize = 40

const fakeRecordsPerMood = 100

// Fake is an in-memory source with synthetic feedback, for demonstration and
// tests. It simulates a system with its own record type and a newer-than
// pagination API.
type Fake struct {
	records  []RawVerbatim
	pageSize int
}

// NewFake creates a Fake source holding 200 records, half enthusiastic and
// half disappointed. Timestamps ascend from now in millisecond steps so that
// pagination order is stable.
func NewFake() *Fake {
	now := time.Now().UTC()
	records := make([]RawVerbatim, 0, 2*fakeRecordsPerMood)

	for i := 0; i < fakeRecordsPerMood; i++ {
		records = append(records, RawVerbatim{
			ID:        fmt.Sprintf("fake-feedback-%04d", i),
			Text:      fmt.Sprintf("Yay, I love this company %d!", i),
			NPS:       i % 11,
			Username:  fmt.Sprintf("user%d", i),
			Timestamp: now.Add(time.Duration(i) * time.Millisecond),
		})
	}
	for i := 0; i < fakeRecordsPerMood; i++ {
		records = append(records, RawVerbatim{
			ID:        fmt.Sprintf("fake-feedback-%04d", fakeRecordsPerMood+i),
			Text:      fmt.Sprintf("Boo, I hate this company %d!", i),
			NPS:       i % 11,
			Username:  fmt.Sprintf("user%d", i),
			Timestamp: now.Add(time.Duration(fakeRecordsPerMood+i) * time.Millisecond),
		})
	}

	return &Fake{records: records, pageSize: DefaultPageSize}
}

// SetPageSize overrides the default page size.
func (f *Fake) SetPageSize(size int) {
	if size > 0 {
		f.pageSize = size
	}
}

// NewerThan returns one page of records with timestamps at or after since.
func (f *Fake) NewerThan(ctx context.Context, since time.Time, pageIndex int) ([]RawVerbatim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	skip := pageIndex * f.pageSize
	var page []RawVerbatim
	for _, raw := range f.records {
		if raw.Timestamp.Before(since) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		page = append(page, raw)
		if len(page) == f.pageSize {
			break
		}
	}
	return page, nil
}
