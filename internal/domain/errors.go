package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord marks a record that cannot be normalized or parsed.
// Absorbed into summary counts, never fatal to a batch.
var ErrMalformedRecord = errors.New("malformed record")

// Per-run errors: abort the whole operation before any destructive write.
var (
	ErrSchemaMismatch  = errors.New("csv schema mismatch")
	ErrUnknownOperator = errors.New("unknown operator")
)

// SourceUnavailableError means the source exhausted its retries. LastPage is
// the last fully fetched page index so a caller can resume from there.
type SourceUnavailableError struct {
	LastPage int
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable after page %d: %v", e.LastPage, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// MissingParameterError rejects an invocation lacking a required parameter.
type MissingParameterError struct{ Name string }

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// InvalidParameterError rejects an invocation whose parameter value cannot be
// parsed or violates a declared constraint.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Name, e.Reason)
}
