package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"review_toolkit/internal/domain"
)

/********** alias registries (single source of truth) **********/

// The feedback API has gone through several schema revisions; these are the
// field names observed across them.
var reviewAliases = map[string][]string{
	"author":    {"buyerName", "author", "name", "userName", "reviewer"},
	"body":      {"buyerFeedback", "content", "body", "review", "comment", "text", "message"},
	"source_id": {"evaluationId", "id", "review_id", "reviewId", "feedbackId"},
	"verified":  {"verifiedPurchase", "verified", "isVerified", "buyerVerified"},
}

var ratingPaths = []string{"buyerEval", "rating", "rate", "score", "evalStar"}

var datePaths = []string{"gmtCreate", "createTime", "createTimestamp", "gmtOrderCreateTime", "feedbackCreateTime", "evalDate", "date"}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		switch s := v.(type) {
		case string:
			return s
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, key string) string {
	for _, p := range reviewAliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "4,5").
func getFloatFlexible(m map[string]any, paths ...string) (float64, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func getBoolFlexible(m map[string]any, paths ...string) (bool, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "true", "yes", "y":
				return true, true
			case "0", "false", "no", "n":
				return false, true
			}
		case float64:
			return v != 0, true
		}
	}
	return false, false
}

/********** normalizer **********/

// Normalize converts one raw payload into a canonical record. It is pure: a
// record either normalizes cleanly or fails with ErrMalformedRecord.
//
// Required: a source id and a rating that lands in [1,5] after scaling.
// A missing author falls back to the platform placeholder, which is what the
// rename-authors operator targets.
func Normalize(raw map[string]any) (domain.Review, error) {
	sourceID := firstNonEmptyAlias(raw, "source_id")
	if sourceID == "" {
		return domain.Review{}, fmt.Errorf("missing source id: %w", domain.ErrMalformedRecord)
	}

	f, ok := getFloatFlexible(raw, ratingPaths...)
	if !ok {
		return domain.Review{}, fmt.Errorf("record %s: missing rating: %w", sourceID, domain.ErrMalformedRecord)
	}
	rating := scaleRating(f)
	if rating < domain.MinRating || rating > domain.MaxRating {
		return domain.Review{}, fmt.Errorf("record %s: rating %v out of range: %w", sourceID, f, domain.ErrMalformedRecord)
	}

	author := firstNonEmptyAlias(raw, "author")
	if author == "" {
		author = domain.DefaultAuthor
	}

	verified, ok := getBoolFlexible(raw, reviewAliases["verified"]...)
	if !ok {
		verified = true // historical feedback payloads omit the flag for confirmed orders
	}

	return domain.Review{
		Author:   author,
		Rating:   rating,
		Body:     firstNonEmptyAlias(raw, "body"),
		Date:     parseDate(raw),
		Verified: verified,
		SourceID: sourceID,
	}, nil
}

// NormalizeBatch normalizes a batch, skipping and counting malformed records.
func NormalizeBatch(raws []map[string]any) ([]domain.Review, int) {
	out := make([]domain.Review, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		rec, err := Normalize(raw)
		if err != nil {
			skipped++
			log.Debug().Err(err).Msg("record skipped")
			continue
		}
		out = append(out, rec)
	}
	return out, skipped
}

// scaleRating maps the 0-100 percentage scale onto stars; values already in
// star range pass through.
func scaleRating(f float64) int {
	if f > domain.MaxRating {
		f = f / 20
	}
	return int(math.Round(f))
}

// parseDate reads the creation timestamp (epoch millis or RFC-ish strings);
// unknown timestamps fall back to now, matching the upstream feed behavior.
func parseDate(raw map[string]any) time.Time {
	for _, k := range datePaths {
		switch v := lookupAny(raw, k).(type) {
		case float64:
			if v > 0 {
				return time.UnixMilli(int64(v)).UTC()
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
				return time.UnixMilli(ms).UTC()
			}
			for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC()
				}
			}
		}
	}
	return time.Now().UTC().Truncate(time.Second)
}
