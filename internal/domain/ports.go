package domain

import "context"

// ReviewSource fetches raw review payloads for one product, paginating until
// the source reports an empty page. A new fetch always starts from the
// requested start page; there is no mid-sequence restart.
type ReviewSource interface {
	FetchReviews(ctx context.Context, productID string, opts FetchOptions) ([]map[string]any, int, error)
}

// FetchOptions tunes one pagination run.
type FetchOptions struct {
	StartPage int // 1-based; zero means 1
	PageSize  int
	Limit     int // max records; zero means unbounded
}

// ReviewTarget is a batch store transforms can read and write: a CSV file or
// a set of comment rows under one table prefix.
type ReviewTarget interface {
	Load(ctx context.Context) ([]Review, error)
	Save(ctx context.Context, batch []Review) error
}

// CommentStore writes canonical records into the comments/commentmeta table
// pair. InsertReviews must keep each record's parent+meta inserts atomic.
type CommentStore interface {
	InsertReviews(ctx context.Context, batch []Review, opts InsertOptions) (ImportSummary, error)
	PlanInsert(ctx context.Context, batch []Review, opts InsertOptions) (ImportSummary, error)
}

// InsertOptions scopes one import batch.
type InsertOptions struct {
	PostID      int64
	RatingKey   string
	VerifiedKey string
	SourceIDKey string
	MinRating   int // skip records below this; zero disables
}

// Checkpoints records the last fully fetched page per product so a failed
// scrape can resume. A nil store disables resume.
type Checkpoints interface {
	LastPage(ctx context.Context, productID string) (int, bool, error)
	SetLastPage(ctx context.Context, productID string, page int) error
	Clear(ctx context.Context, productID string) error
}
