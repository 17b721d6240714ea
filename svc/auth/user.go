package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a Havoptic account backed by a GitHub identity. Rows are created on
// first login and updated on every subsequent one; they are never deleted.
type User struct {
	ID              uuid.UUID `json:"id"`
	GithubID        int64     `json:"githubId"`
	GithubUsername  string    `json:"githubUsername"`
	GithubAvatarURL string    `json:"githubAvatarUrl,omitempty"`
	Email           *string   `json:"email,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	LastLogin       time.Time `json:"lastLogin"`
}

// UserStore persists users keyed by their GitHub identity.
type UserStore interface {
	// Upsert inserts the user or, on a github_id conflict, refreshes
	// username, avatar, and last_login. The stored email is only replaced
	// when the incoming one is non-nil; GitHub users who hide their email
	// after first login keep the address we already have.
	Upsert(ctx context.Context, user User) error

	// GetByGithubID returns the canonical row for a GitHub identity.
	// Needed after Upsert because the conflict path keeps the original id.
	GetByGithubID(ctx context.Context, githubID int64) (*User, error)
}
