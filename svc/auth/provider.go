package auth

import "context"

// Provider abstracts the external identity provider behind the primitives the
// flow controller needs. The GitHub implementation lives in github.go; tests
// substitute a fake.
type Provider interface {
	// AuthURL builds the provider authorization URL for the given CSRF
	// state token.
	AuthURL(state string) string

	// Exchange trades an authorization code for an access token.
	// Returns ErrInvalidCode when the provider rejects the code.
	Exchange(ctx context.Context, code string) (string, error)

	// FetchProfile returns the authenticated user's profile.
	// Returns ErrProfileFetch on a non-success response.
	FetchProfile(ctx context.Context, accessToken string) (Profile, error)

	// FetchPrimaryEmail returns the address marked both primary and
	// verified, or empty when none qualifies. Callers treat failures here
	// as non-fatal.
	FetchPrimaryEmail(ctx context.Context, accessToken string) (string, error)
}

// Profile is the normalized provider profile.
type Profile struct {
	// ID is the provider's stable numeric user id.
	ID int64

	// Login is the provider username.
	Login string

	// AvatarURL points at the profile picture (optional).
	AvatarURL string

	// Email is the public profile email; empty when the user hides it.
	Email string
}
