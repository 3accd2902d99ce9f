package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"review_toolkit/internal/domain"
	"review_toolkit/internal/storage/csvfile"
)

// ImportService publishes a CSV batch into the comments store.
type ImportService struct {
	store domain.CommentStore
}

func NewImportService(store domain.CommentStore) *ImportService {
	return &ImportService{store: store}
}

type ImportRequest struct {
	CSVPath string
	Opts    domain.InsertOptions
	DryRun  bool
}

// Run reads the CSV and inserts its records. A schema mismatch aborts before
// any write; malformed rows are skipped during the read and reported via the
// second return value. Dry-run computes the identical plan with reads only.
func (s *ImportService) Run(ctx context.Context, req ImportRequest) (domain.ImportSummary, int, error) {
	recs, skipped, err := csvfile.Import(req.CSVPath)
	if err != nil {
		return domain.ImportSummary{}, 0, err
	}

	var sum domain.ImportSummary
	if req.DryRun {
		sum, err = s.store.PlanInsert(ctx, recs, req.Opts)
	} else {
		sum, err = s.store.InsertReviews(ctx, recs, req.Opts)
	}
	if err != nil {
		return domain.ImportSummary{}, skipped, err
	}
	log.Info().
		Bool("dry_run", req.DryRun).
		Int("inserted", sum.Inserted).
		Int("duplicates", sum.Duplicates).
		Int("failed", sum.Failed).
		Int("csv_skipped", skipped).
		Msg("import complete")
	return sum, skipped, nil
}
