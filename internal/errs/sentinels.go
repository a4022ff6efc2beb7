// Package errs contains sentinel and typed errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service layers.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., login taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates failed credential verification.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary lockout after repeated failed verifications.
	ErrRateLimited = errors.New("rate limited")
)

// Validation sentinels, one per ValidationError kind.
var (
	ErrEmptyLogin     = errors.New("login is empty")
	ErrInvalidLogin   = errors.New("login must contain only letters and digits")
	ErrDuplicateLogin = errors.New("login already in use")
	ErrWeakPassword   = errors.New("password does not satisfy complexity policy")
)
