// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing session or failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrEmptyEntry rejects a save whose title and stripped content are both blank.
	ErrEmptyEntry = errors.New("empty entry")

	// ErrInvalidFilter indicates an unparsable archive filter (bad date).
	ErrInvalidFilter = errors.New("invalid filter")
)
