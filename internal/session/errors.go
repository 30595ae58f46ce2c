package session

import "errors"

var (
	// ErrSessionNotFound means the session id does not exist (or expired).
	// It is an expected outcome, distinct from storage I/O failure.
	ErrSessionNotFound = errors.New("session not found")

	// ErrHighlightNotFound means a highlight index is outside the current
	// highlight list. Stale indices are rejected, never clamped.
	ErrHighlightNotFound = errors.New("highlight not found")

	// ErrInvalidInput is a malformed or stage-illegal request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable means a collaborator failed or returned nothing usable.
	// Re-invoking the same action is safe.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrConflict is a lost optimistic write; the caller reloads and retries.
	ErrConflict = errors.New("session version conflict")
)
