package models

import "errors"

// Failure taxonomy for location resolution and nearby search. The resolver
// absorbs the first three internally and falls through to the next source;
// callers only ever see the terminal kinds.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")
	ErrUnsupported         = errors.New("no location capability available")
	ErrNetworkError        = errors.New("network error contacting provider")
	ErrParse               = errors.New("malformed provider response")

	// ErrSuperseded marks an operation that lost the authoritative slot to a
	// newer one. It is resolved silently, never surfaced to callers.
	ErrSuperseded = errors.New("operation superseded")

	ErrNotFound = errors.New("requested item not found")
)
