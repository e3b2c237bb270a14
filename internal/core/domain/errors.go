package domain

import "errors"

// Authentication errors. These are classified into fixed user-facing
// sentences by the auth flow and never leave it as HTTP errors.
var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUnconfirmedEmail        = errors.New("email not confirmed")
	ErrRateLimited             = errors.New("rate limited")
	ErrPasswordMismatch        = errors.New("passwords do not match")
	ErrPasswordTooShort        = errors.New("password too short")
	ErrAdminVerificationFailed = errors.New("admin verification failed")
)

// Session and authorization errors.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("access forbidden")
	ErrSessionNotFound = errors.New("session not found")
)

// AI orchestration errors.
var (
	ErrMalformedAIResponse = errors.New("malformed AI response")
	ErrProviderUnavailable = errors.New("AI provider unavailable")
	ErrUnknownProvider     = errors.New("unknown AI provider")
	ErrSuperseded          = errors.New("request superseded by a newer one")
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid auth flow transition")
	ErrInvalidPreference = errors.New("invalid preference")
)
