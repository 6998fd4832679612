// Package common defines shared constants and sentinel errors used across
// client and server layers of LinkVault. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Access link errors. ErrLinkExpired covers both a passed deadline and
	// a revoked link.
	ErrLinkExpired = errors.New("link expired")
	ErrInvalidLink = errors.New("invalid link")

	// ErrSelfCopy is advisory: the requester already owns the linked object.
	ErrSelfCopy = errors.New("object already owned by requester")

	// Ingestion errors.
	ErrFetchFailed = errors.New("fetch failed")

	// Storage accounting.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// Payment errors.
	ErrSignatureInvalid = errors.New("payment signature invalid")
	ErrReconciliation   = errors.New("payment verified but quota not applied")
)
