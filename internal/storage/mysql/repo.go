package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"review_toolkit/internal/adapters/observability"
	"review_toolkit/internal/domain"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Default meta key names; overridable per invocation.
const (
	DefaultRatingKey   = "rating"
	DefaultVerifiedKey = "verified"
	DefaultSourceIDKey = "source_id"
)

const dateLayout = "2006-01-02 15:04:05"

// Repo writes canonical records into the <prefix>comments and
// <prefix>commentmeta table pair.
type Repo struct {
	db     *sql.DB
	prefix string

	insertComment   string
	insertMeta      string
	selectSourceIDs string
	selectReviews   string
	updateComment   string
}

func New(db *sql.DB, prefix string) (*Repo, error) {
	if !identifierRe.MatchString(prefix) {
		return nil, &domain.InvalidParameterError{Name: "prefix", Reason: "must match [A-Za-z0-9_]+"}
	}
	return &Repo{
		db:              db,
		prefix:          prefix,
		insertComment:   fmt.Sprintf(insertCommentTpl, prefix),
		insertMeta:      fmt.Sprintf(insertMetaTpl, prefix),
		selectSourceIDs: fmt.Sprintf(selectSourceIDsTpl, prefix, prefix),
		selectReviews:   fmt.Sprintf(selectReviewsTpl, prefix, prefix, prefix, prefix),
		updateComment:   fmt.Sprintf(updateCommentTpl, prefix, prefix),
	}, nil
}

func fillKeys(opts *domain.InsertOptions) {
	if opts.RatingKey == "" {
		opts.RatingKey = DefaultRatingKey
	}
	if opts.VerifiedKey == "" {
		opts.VerifiedKey = DefaultVerifiedKey
	}
	if opts.SourceIDKey == "" {
		opts.SourceIDKey = DefaultSourceIDKey
	}
}

// InsertReviews inserts one parent comment plus metadata rows per record.
// Each record's inserts run in one transaction: a failure rolls that record
// back, is counted, and the batch continues. Records whose source_id already
// exists under the post are skipped as duplicates, making re-runs idempotent.
func (r *Repo) InsertReviews(ctx context.Context, batch []domain.Review, opts domain.InsertOptions) (domain.ImportSummary, error) {
	fillKeys(&opts)
	seen, err := r.existingSourceIDs(ctx, opts.PostID, opts.SourceIDKey)
	if err != nil {
		return domain.ImportSummary{}, err
	}

	var sum domain.ImportSummary
	for _, rec := range batch {
		if opts.MinRating > 0 && rec.Rating < opts.MinRating {
			continue
		}
		if seen[rec.SourceID] {
			sum.Duplicates++
			continue
		}
		if err := r.insertOne(ctx, rec, opts); err != nil {
			sum.Failed++
			log.Warn().Err(err).Str("source_id", rec.SourceID).Msg("insert failed, record skipped")
			continue
		}
		seen[rec.SourceID] = true
		sum.Inserted++
	}
	observability.ObserveRecords("import", "ok", sum.Inserted)
	observability.ObserveRecords("import", "duplicate", sum.Duplicates)
	observability.ObserveRecords("import", "failed", sum.Failed)
	return sum, nil
}

// PlanInsert computes the same summary as InsertReviews using reads only.
func (r *Repo) PlanInsert(ctx context.Context, batch []domain.Review, opts domain.InsertOptions) (domain.ImportSummary, error) {
	fillKeys(&opts)
	seen, err := r.existingSourceIDs(ctx, opts.PostID, opts.SourceIDKey)
	if err != nil {
		return domain.ImportSummary{}, err
	}

	var sum domain.ImportSummary
	for _, rec := range batch {
		if opts.MinRating > 0 && rec.Rating < opts.MinRating {
			continue
		}
		if seen[rec.SourceID] {
			sum.Duplicates++
			continue
		}
		seen[rec.SourceID] = true
		sum.Inserted++
	}
	return sum, nil
}

func (r *Repo) insertOne(ctx context.Context, rec domain.Review, opts domain.InsertOptions) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	date := rec.Date.UTC().Format(dateLayout)
	res, err := tx.ExecContext(ctx, r.insertComment, opts.PostID, rec.Author, date, date, rec.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	cid, err := res.LastInsertId()
	if err != nil {
		return err
	}

	verified := "0"
	if rec.Verified {
		verified = "1"
	}
	metas := [][2]string{
		{opts.RatingKey, strconv.Itoa(rec.Rating)},
		{opts.VerifiedKey, verified},
		{opts.SourceIDKey, rec.SourceID},
	}
	for _, m := range metas {
		if _, err := tx.ExecContext(ctx, r.insertMeta, cid, m[0], m[1]); err != nil {
			return fmt.Errorf("insert meta %s: %w", m[0], err)
		}
	}
	return tx.Commit()
}

func (r *Repo) existingSourceIDs(ctx context.Context, postID int64, key string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, r.selectSourceIDs, postID, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ReviewsTarget adapts the comment rows of one post to the transform batch
// contract. Save matches rows by source_id meta and updates author/content.
type ReviewsTarget struct {
	repo *Repo
	opts domain.InsertOptions
}

func NewReviewsTarget(repo *Repo, opts domain.InsertOptions) *ReviewsTarget {
	fillKeys(&opts)
	return &ReviewsTarget{repo: repo, opts: opts}
}

func (t *ReviewsTarget) Load(ctx context.Context) ([]domain.Review, error) {
	rows, err := t.repo.db.QueryContext(ctx, t.repo.selectReviews,
		t.opts.RatingKey, t.opts.VerifiedKey, t.opts.SourceIDKey, t.opts.PostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rec domain.Review
		var date sql.NullTime // requires parseTime=true in the DSN
		var rating, verified, sourceID sql.NullString
		if err := rows.Scan(&rec.Author, &rec.Body, &date, &rating, &verified, &sourceID); err != nil {
			return nil, err
		}
		if rating.Valid {
			rec.Rating, _ = strconv.Atoi(rating.String)
		}
		rec.Verified = verified.Valid && verified.String == "1"
		rec.SourceID = sourceID.String
		if date.Valid {
			rec.Date = date.Time.UTC()
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *ReviewsTarget) Save(ctx context.Context, batch []domain.Review) error {
	for _, rec := range batch {
		if rec.SourceID == "" {
			continue
		}
		_, err := t.repo.db.ExecContext(ctx, t.repo.updateComment,
			rec.Author, rec.Body, t.opts.PostID, t.opts.SourceIDKey, rec.SourceID)
		if err != nil {
			return fmt.Errorf("update %s: %w", rec.SourceID, err)
		}
	}
	return nil
}
