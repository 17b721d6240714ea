package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements UserStore and SessionStore in process memory.
// Used by tests and local development without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]User      // keyed by github id
	sessions map[string]*Session // keyed by token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]User),
		sessions: make(map[string]*Session),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.GithubID]
	if !ok {
		s.users[user.GithubID] = user
		return nil
	}

	existing.GithubUsername = user.GithubUsername
	existing.GithubAvatarURL = user.GithubAvatarURL
	existing.LastLogin = user.LastLogin
	if user.Email != nil {
		existing.Email = user.Email
	}
	s.users[user.GithubID] = existing
	return nil
}

func (s *MemoryStore) GetByGithubID(ctx context.Context, githubID int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[githubID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := user
	return &u, nil
}

func (s *MemoryStore) Create(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.Token] = &copied
	return nil
}

func (s *MemoryStore) GetUserByToken(ctx context.Context, token string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok || !session.ExpiresAt.After(time.Now()) {
		return nil, ErrSessionNotFound
	}

	for _, user := range s.users {
		if user.ID == session.UserID {
			u := user
			return &u, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := time.Now()
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

// SessionCount reports live sessions. Test helper.
func (s *MemoryStore) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// UserCount reports stored users. Test helper.
func (s *MemoryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
