package auth

import "errors"

var (
	// ErrUserNotFound indicates no user row matched the lookup
	ErrUserNotFound = errors.New("auth.user_not_found")

	// ErrSessionNotFound indicates no live session matched the token
	ErrSessionNotFound = errors.New("auth.session_not_found")

	// ErrTokenGeneration indicates the random source failed
	ErrTokenGeneration = errors.New("auth.token_generation_failed")

	// ErrInvalidCode indicates the provider rejected the authorization code
	ErrInvalidCode = errors.New("auth.invalid_code")

	// ErrProfileFetch indicates the provider profile endpoint failed
	ErrProfileFetch = errors.New("auth.profile_fetch_failed")
)
