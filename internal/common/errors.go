// Package common defines shared constants and sentinel errors used across
// the sync layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Configuration errors (integration disabled or no credentials).
	ErrNotConfigured = errors.New("integration not configured")

	// Validation errors (caller-side contract violations).
	ErrValidation = errors.New("validation error")

	// ErrSkip marks a feed event referencing a document that is not locally
	// recognized. Not a failure: shared feeds carry documents that did not
	// originate here. Handlers log and drop these.
	ErrSkip = errors.New("not locally recognized")
)
