package app

import (
	"context"
	"fmt"
	"regexp"

	"review_toolkit/internal/adapters/observability"
	"review_toolkit/internal/domain"
)

const previewSize = 5

// Transform rewrites a batch without mutating it, reporting what changed.
// Records are value types; the returned slice is a fresh copy.
type Transform func(batch []domain.Review) ([]domain.Review, domain.ChangeSummary)

// RenameDefaultAuthor replaces authors exactly matching the placeholder name
// with generated names.
func RenameDefaultAuthor(match string, gen *NameGenerator) Transform {
	if match == "" {
		match = domain.DefaultAuthor
	}
	return func(batch []domain.Review) ([]domain.Review, domain.ChangeSummary) {
		out := make([]domain.Review, len(batch))
		copy(out, batch)
		var sum domain.ChangeSummary
		for i := range out {
			if out[i].Author != match {
				continue
			}
			sum.Matched++
			name := gen.Name()
			addPreview(&sum, fmt.Sprintf("%s: %s -> %s", out[i].SourceID, out[i].Author, name))
			out[i].Author = name
			sum.Changed++
		}
		return out, sum
	}
}

// RenameByRating replaces the author of every record rated strictly below
// threshold; records at or above it are untouched.
func RenameByRating(threshold int, gen *NameGenerator) Transform {
	return func(batch []domain.Review) ([]domain.Review, domain.ChangeSummary) {
		out := make([]domain.Review, len(batch))
		copy(out, batch)
		var sum domain.ChangeSummary
		for i := range out {
			if out[i].Rating >= threshold {
				continue
			}
			sum.Matched++
			name := gen.Name()
			addPreview(&sum, fmt.Sprintf("%s (rating %d): %s -> %s", out[i].SourceID, out[i].Rating, out[i].Author, name))
			out[i].Author = name
			sum.Changed++
		}
		return out, sum
	}
}

// ReplaceWord rewrites a token inside review bodies. Matching policy:
// case-insensitive with \b word boundaries on both sides, so the target
// never touches partial-word occurrences ("shop" leaves "shopper" alone).
// The replacement text is inserted verbatim.
func ReplaceWord(search, replace string) (Transform, error) {
	if search == "" {
		return nil, &domain.InvalidParameterError{Name: "search", Reason: "must not be empty"}
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(search) + `\b`)
	if err != nil {
		return nil, &domain.InvalidParameterError{Name: "search", Reason: err.Error()}
	}
	return func(batch []domain.Review) ([]domain.Review, domain.ChangeSummary) {
		out := make([]domain.Review, len(batch))
		copy(out, batch)
		var sum domain.ChangeSummary
		for i := range out {
			if !re.MatchString(out[i].Body) {
				continue
			}
			sum.Matched++
			next := re.ReplaceAllString(out[i].Body, replace)
			if next == out[i].Body {
				continue
			}
			addPreview(&sum, fmt.Sprintf("%s: %q -> %q", out[i].SourceID, out[i].Body, next))
			out[i].Body = next
			sum.Changed++
		}
		return out, sum
	}, nil
}

// ApplyTransform loads the target batch, applies the transform and, unless
// dry-run, persists the modified batch back. Dry-run performs the exact same
// computation and leaves the target untouched.
func ApplyTransform(ctx context.Context, target domain.ReviewTarget, t Transform, dryRun bool) (domain.ChangeSummary, error) {
	batch, err := target.Load(ctx)
	if err != nil {
		return domain.ChangeSummary{}, err
	}
	next, sum := t(batch)
	observability.ObserveRecords("transform", "ok", sum.Changed)
	if dryRun || sum.Changed == 0 {
		return sum, nil
	}
	if err := target.Save(ctx, next); err != nil {
		return domain.ChangeSummary{}, err
	}
	return sum, nil
}

func addPreview(sum *domain.ChangeSummary, line string) {
	if len(sum.Preview) < previewSize {
		sum.Preview = append(sum.Preview, line)
	}
}
