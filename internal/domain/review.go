package domain

import "time"

// DefaultAuthor is the placeholder name the source platform assigns to
// anonymous shoppers. The rename-authors operator exists to replace it.
const DefaultAuthor = "AliExpress Shopper"

// Rating bounds for a canonical record.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is the canonical record for one scraped or stored review.
// SourceID is the dedup key within a scrape run and across DB imports.
type Review struct {
	Author   string
	Rating   int // 1..5
	Body     string
	Date     time.Time
	Verified bool
	SourceID string
}

func (r Review) RatingValid() bool {
	return r.Rating >= MinRating && r.Rating <= MaxRating
}

// ImportSummary reports the outcome of one database import batch.
type ImportSummary struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// ChangeSummary reports the outcome of one transform run. Preview carries a
// small sample of would-be changes (always populated on dry-run).
type ChangeSummary struct {
	Matched int      `json:"matched"`
	Changed int      `json:"changed"`
	Preview []string `json:"preview,omitempty"`
}

// ScrapeSummary reports the outcome of one scrape run.
type ScrapeSummary struct {
	Fetched    int `json:"fetched"`
	Normalized int `json:"normalized"`
	Skipped    int `json:"skipped"`
	LastPage   int `json:"last_page"`
}
