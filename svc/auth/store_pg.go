package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havoptic/havoptic/pkg/pg"
)

// PgStore implements UserStore and SessionStore on PostgreSQL.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Upsert(ctx context.Context, user User) error {
	// COALESCE keeps the stored email when the provider returns none.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, github_id, github_username, github_avatar_url, email, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (github_id) DO UPDATE SET
			github_username   = EXCLUDED.github_username,
			github_avatar_url = EXCLUDED.github_avatar_url,
			last_login        = EXCLUDED.last_login,
			email             = COALESCE(EXCLUDED.email, users.email)`,
		user.ID, user.GithubID, user.GithubUsername, user.GithubAvatarURL,
		user.Email, user.CreatedAt, user.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PgStore) GetByGithubID(ctx context.Context, githubID int64) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx, `
		SELECT id, github_id, github_username, github_avatar_url, email, created_at, last_login
		FROM users
		WHERE github_id = $1`,
		githubID,
	).Scan(
		&user.ID, &user.GithubID, &user.GithubUsername, &user.GithubAvatarURL,
		&user.Email, &user.CreatedAt, &user.LastLogin,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by github id: %w", err)
	}
	return &user, nil
}

func (s *PgStore) Create(ctx context.Context, session *Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, session.Token, session.ExpiresAt,
		session.UserAgent, session.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PgStore) GetUserByToken(ctx context.Context, token string) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.github_id, u.github_username, u.github_avatar_url, u.email, u.created_at, u.last_login
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > now()`,
		token,
	).Scan(
		&user.ID, &user.GithubID, &user.GithubUsername, &user.GithubAvatarURL,
		&user.Email, &user.CreatedAt, &user.LastLogin,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get user by token: %w", err)
	}
	return &user, nil
}

func (s *PgStore) Delete(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
