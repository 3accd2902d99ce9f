package app

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	"review_toolkit/internal/adapters/observability"
	"review_toolkit/internal/domain"
	"review_toolkit/internal/storage/csvfile"
)

// ScrapeService drives one ingestion run: source -> normalizer -> CSV.
type ScrapeService struct {
	source      domain.ReviewSource
	checkpoints domain.Checkpoints // nil disables resume
}

func NewScrapeService(src domain.ReviewSource, cp domain.Checkpoints) *ScrapeService {
	return &ScrapeService{source: src, checkpoints: cp}
}

type ScrapeRequest struct {
	ProductID string
	OutFile   string
	PageSize  int
	Limit     int
	Resume    bool
	DryRun    bool
}

// Run scrapes the product's reviews and exports them to the CSV file. The
// batch is deduplicated on source_id and sorted by it before export, so page
// fetch order never leaks into the output. Dry-run performs the full fetch
// and normalization but leaves the file untouched.
//
// When the source exhausts its retries the records fetched up to that point
// are still exported and the last completed page is written to the checkpoint
// store; a later Run with Resume fetches from checkpoint+1 and merges into
// the existing file, so a failed run never loses its partial batch.
func (s *ScrapeService) Run(ctx context.Context, req ScrapeRequest) (domain.ScrapeSummary, error) {
	start := 1
	if req.Resume && s.checkpoints != nil {
		if page, ok, err := s.checkpoints.LastPage(ctx, req.ProductID); err == nil && ok {
			start = page + 1
			log.Info().Str("product", req.ProductID).Int("page", start).Msg("resuming from checkpoint")
		}
	}

	raws, last, ferr := s.source.FetchReviews(ctx, req.ProductID, domain.FetchOptions{
		StartPage: start,
		PageSize:  req.PageSize,
		Limit:     req.Limit,
	})
	var su *domain.SourceUnavailableError
	if ferr != nil && !errors.As(ferr, &su) {
		return domain.ScrapeSummary{LastPage: last}, ferr
	}

	recs, skipped := NormalizeBatch(raws)
	recs = dedupBySourceID(recs)

	observability.ObserveRecords("scrape", "ok", len(recs))
	observability.ObserveRecords("scrape", "skipped", skipped)

	sum := domain.ScrapeSummary{
		Fetched:    len(raws),
		Normalized: len(recs),
		Skipped:    skipped,
		LastPage:   last,
	}

	if !req.DryRun && (ferr == nil || len(recs) > 0) {
		if err := s.export(req, recs); err != nil {
			return sum, err
		}
	}

	if ferr != nil {
		if s.checkpoints != nil && su.LastPage >= 1 {
			if cerr := s.checkpoints.SetLastPage(ctx, req.ProductID, su.LastPage); cerr != nil {
				log.Warn().Err(cerr).Msg("checkpoint write failed")
			}
		}
		return sum, ferr
	}

	if req.DryRun {
		return sum, nil
	}
	if s.checkpoints != nil {
		_ = s.checkpoints.Clear(ctx, req.ProductID)
	}
	log.Info().Str("product", req.ProductID).Int("records", len(recs)).Int("skipped", skipped).Str("out", req.OutFile).Msg("scrape complete")
	return sum, nil
}

// export rewrites the output file. On resume the batch is merged with the
// records already in the file; earlier records win on duplicate source_id.
func (s *ScrapeService) export(req ScrapeRequest, recs []domain.Review) error {
	if req.Resume {
		if prev, _, err := csvfile.Import(req.OutFile); err == nil {
			recs = dedupBySourceID(append(prev, recs...))
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].SourceID < recs[j].SourceID })
	return csvfile.Export(req.OutFile, recs)
}

func dedupBySourceID(recs []domain.Review) []domain.Review {
	seen := make(map[string]struct{}, len(recs))
	out := recs[:0]
	for _, r := range recs {
		if _, ok := seen[r.SourceID]; ok {
			continue
		}
		seen[r.SourceID] = struct{}{}
		out = append(out, r)
	}
	return out
}
