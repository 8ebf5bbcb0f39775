package domain

import "errors"

var (
	// ErrStorageUnavailable marks tracker connection or query failures.
	// Fatal for the current source run: callers must abort rather than
	// fabricate an empty "no new articles" result.
	ErrStorageUnavailable = errors.New("article store unavailable")

	// ErrExtraction marks a page fetch/parse failure. Fatal for the current
	// source run; other sources proceed.
	ErrExtraction = errors.New("extraction failed")

	// ErrNoMatch means the AI could not pair a headline with a container.
	// Skips the one candidate, never the batch.
	ErrNoMatch = errors.New("no matching container")

	// ErrNotConfigured is raised at first use of a collaborator whose API
	// key or connection string is absent from the environment.
	ErrNotConfigured = errors.New("missing required configuration")
)
