// Package csvfile reads and writes canonical review records as CSV with the
// fixed column order author,rating,body,date,verified,source_id.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"review_toolkit/internal/domain"
)

// Header is the canonical column order. Export writes it verbatim; Import
// resolves columns by name so a reordered file still round-trips.
var Header = []string{"author", "rating", "body", "date", "verified", "source_id"}

// DateLayout matches the WordPress comment_date format.
const DateLayout = "2006-01-02 15:04:05"

// Export writes the batch to path, creating parent directories as needed.
func Export(path string, batch []domain.Review) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, r := range batch {
		row := []string{
			r.Author,
			strconv.Itoa(r.Rating),
			r.Body,
			r.Date.UTC().Format(DateLayout),
			strconv.FormatBool(r.Verified),
			r.SourceID,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// Import reads records back, skipping and counting rows whose cells cannot be
// parsed. A header missing any required column fails with ErrSchemaMismatch
// before any row is consumed.
func Import(path string) ([]domain.Review, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are per-row skips, not fatal
	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", domain.ErrSchemaMismatch)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, col := range Header {
		if _, ok := idx[col]; !ok {
			return nil, 0, fmt.Errorf("column %q absent: %w", col, domain.ErrSchemaMismatch)
		}
	}

	var out []domain.Review
	skipped := 0
	rows, err := r.ReadAll()
	if err != nil {
		return nil, 0, err
	}
	for _, row := range rows {
		rec, err := parseRow(row, idx)
		if err != nil {
			skipped++
			log.Debug().Err(err).Msg("csv row skipped")
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

func parseRow(row []string, idx map[string]int) (domain.Review, error) {
	cell := func(name string) string {
		i := idx[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	rating, err := strconv.Atoi(cell("rating"))
	if err != nil {
		return domain.Review{}, fmt.Errorf("rating %q: %w", cell("rating"), domain.ErrMalformedRecord)
	}
	rec := domain.Review{
		Author:   cell("author"),
		Rating:   rating,
		Body:     cell("body"),
		SourceID: cell("source_id"),
	}
	if !rec.RatingValid() {
		return domain.Review{}, fmt.Errorf("rating %d out of range: %w", rating, domain.ErrMalformedRecord)
	}
	if rec.SourceID == "" {
		return domain.Review{}, fmt.Errorf("empty source_id: %w", domain.ErrMalformedRecord)
	}
	rec.Date, err = time.ParseInLocation(DateLayout, cell("date"), time.UTC)
	if err != nil {
		return domain.Review{}, fmt.Errorf("date %q: %w", cell("date"), domain.ErrMalformedRecord)
	}
	rec.Verified, err = strconv.ParseBool(cell("verified"))
	if err != nil {
		return domain.Review{}, fmt.Errorf("verified %q: %w", cell("verified"), domain.ErrMalformedRecord)
	}
	return rec, nil
}

// Target adapts one CSV file to the transform batch contract.
type Target struct{ Path string }

func (t Target) Load(ctx context.Context) ([]domain.Review, error) {
	recs, skipped, err := Import(t.Path)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Str("path", t.Path).Msg("malformed csv rows ignored")
	}
	return recs, nil
}

func (t Target) Save(ctx context.Context, batch []domain.Review) error {
	return Export(t.Path, batch)
}
