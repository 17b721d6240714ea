package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is an opaque-bearer-token session row. Expired rows are excluded
// from lookups but not reaped in-process; DeleteExpired exists for external
// cleanup jobs.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	UserAgent string
	IPAddress string
}

// NewSession creates a session for the user with a fresh token.
func NewSession(userID uuid.UUID, ttl time.Duration, userAgent, ipAddress string) (*Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}, nil
}

// SessionStore persists sessions and resolves tokens to users.
type SessionStore interface {
	// Create stores a new session row.
	Create(ctx context.Context, session *Session) error

	// GetUserByToken returns the user joined to a session whose token
	// matches and whose expiry is strictly in the future. Returns
	// ErrSessionNotFound otherwise.
	GetUserByToken(ctx context.Context, token string) (*User, error)

	// Delete removes the session with the given token. Deleting a missing
	// token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes expired rows and reports how many were deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}

// GenerateToken returns 32 cryptographically random bytes, hex-encoded
// (64 characters).
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return hex.EncodeToString(b), nil
}
