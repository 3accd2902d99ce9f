package mysql

// Table names are built from a caller-supplied prefix, so these are format
// templates rather than final statements. New validates the prefix against
// identifierRe before any of them is rendered.

const insertCommentTpl = `
INSERT INTO %scomments
  (comment_post_ID, comment_author, comment_date, comment_date_gmt, comment_content, comment_approved)
VALUES
  (?, ?, ?, ?, ?, 1)
`

const insertMetaTpl = `
INSERT INTO %scommentmeta (comment_id, meta_key, meta_value)
VALUES (?, ?, ?)
`

// Existing source ids under one post, used as the dedup set for idempotent
// re-runs.
const selectSourceIDsTpl = `
SELECT m.meta_value
FROM %scommentmeta m
JOIN %scomments c ON c.comment_ID = m.comment_id
WHERE c.comment_post_ID = ? AND m.meta_key = ?
`

// One row per comment with the three known meta keys pivoted via LEFT JOINs.
const selectReviewsTpl = `
SELECT
  c.comment_author,
  c.comment_content,
  c.comment_date,
  mr.meta_value AS rating,
  mv.meta_value AS verified,
  ms.meta_value AS source_id
FROM %scomments c
LEFT JOIN %scommentmeta mr ON mr.comment_id = c.comment_ID AND mr.meta_key = ?
LEFT JOIN %scommentmeta mv ON mv.comment_id = c.comment_ID AND mv.meta_key = ?
LEFT JOIN %scommentmeta ms ON ms.comment_id = c.comment_ID AND ms.meta_key = ?
WHERE c.comment_post_ID = ?
ORDER BY c.comment_ID
`

const updateCommentTpl = `
UPDATE %scomments c
JOIN %scommentmeta m ON m.comment_id = c.comment_ID
SET c.comment_author = ?, c.comment_content = ?
WHERE c.comment_post_ID = ? AND m.meta_key = ? AND m.meta_value = ?
`
