package model

import "errors"

var (
	// ErrAuthFailure means the portal rejected the derived credentials after
	// all attempts, the job must not be retried automatically.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrNavigationTimeout means a single page did not load in time, only
	// that page is skipped.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrExtractionMismatch marks values that had to be corrected or
	// cross-checks that did not add up.
	ErrExtractionMismatch = errors.New("extraction mismatch")
	// ErrDriverFatal means the browser could not be started or crashed.
	ErrDriverFatal = errors.New("browser driver failure")
	// ErrCancelled is returned when a job observed a cancellation request.
	ErrCancelled = errors.New("sync cancelled")
)
