// Package auth implements the GitHub OAuth login flow and the
// database-backed sessions behind /api/auth.
//
// Flow: the browser hits the initiate endpoint, which plants a CSRF state
// nonce and the post-login destination in short-lived cookies and redirects to
// GitHub. The callback validates the nonce, exchanges the code, upserts the
// user, creates a session row, and redirects back into the SPA with the
// session cookie set. Every failure on that path degrades to a redirect
// carrying an auth_error message; the browser never sees a raw error status.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/havoptic/havoptic/pkg/async"
	"github.com/havoptic/havoptic/pkg/clientip"
	"github.com/havoptic/havoptic/pkg/cookie"
)

// NewsletterService is the slice of the newsletter module the login flow
// touches. Subscription runs fire-and-forget after a successful callback.
type NewsletterService interface {
	Subscribe(ctx context.Context, email, source string) error
	IsSubscribed(ctx context.Context, email string) (bool, error)
}

// Service orchestrates the OAuth flow. All dependencies are injected;
// newsletter may be nil, which disables auto-subscription.
type Service struct {
	cfg        Config
	provider   Provider
	users      UserStore
	sessions   SessionStore
	newsletter NewsletterService
	cookies    *cookie.Manager
	log        *slog.Logger
}

func NewService(
	cfg Config,
	provider Provider,
	users UserStore,
	sessions SessionStore,
	newsletter NewsletterService,
	log *slog.Logger,
) *Service {
	return &Service{
		cfg:        cfg,
		provider:   provider,
		users:      users,
		sessions:   sessions,
		newsletter: newsletter,
		cookies:    cookie.New(cookie.WithSecure(cfg.SecureCookies)),
		log:        log,
	}
}

// handleInitiate plants the CSRF nonce and redirect cookies, then sends the
// browser to GitHub's authorization page.
func (s *Service) handleInitiate(w http.ResponseWriter, r *http.Request) {
	state, err := GenerateToken()
	if err != nil {
		s.log.Error("oauth initiate: state generation failed", slog.String("error", err.Error()))
		s.redirectWithError(w, r, "Authentication failed")
		return
	}

	redirect := r.URL.Query().Get("redirect")
	if redirect == "" {
		redirect = "/"
	}

	stateTTL := int(s.cfg.StateTTL.Seconds())
	s.cookies.Set(w, s.cfg.StateCookieName, state, cookie.WithMaxAge(stateTTL))
	s.cookies.Set(w, s.cfg.RedirectCookieName, url.QueryEscape(redirect), cookie.WithMaxAge(stateTTL))

	http.Redirect(w, r, s.provider.AuthURL(state), http.StatusFound)
}

// handleCallback completes the flow. Each validation failure redirects with a
// human-readable message; a panic anywhere in the handler degrades to the
// generic failure redirect.
func (s *Service) handleCallback(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("oauth callback: panic recovered", slog.Any("panic", rec))
			s.redirectWithError(w, r, "Authentication failed")
		}
	}()

	ctx := r.Context()
	query := r.URL.Query()

	storedState, stateErr := s.cookies.Get(r, s.cfg.StateCookieName)
	dest, destErr := s.cookies.GetDecoded(r, s.cfg.RedirectCookieName)
	if destErr != nil || dest == "" {
		dest = "/"
	}

	// State cookies are single-use; clear them before any response is written
	s.cookies.Delete(w, s.cfg.StateCookieName)
	s.cookies.Delete(w, s.cfg.RedirectCookieName)

	if errParam := query.Get("error"); errParam != "" {
		msg := query.Get("error_description")
		if msg == "" {
			msg = errParam
		}
		s.log.Info("oauth callback: provider error", slog.String("error", errParam))
		s.redirectWithError(w, r, msg)
		return
	}

	code := query.Get("code")
	if code == "" {
		s.redirectWithError(w, r, "No authorization code received")
		return
	}

	if stateErr != nil || storedState == "" || query.Get("state") != storedState {
		// Fails closed: absent cookie and mismatched nonce are treated alike
		s.log.Warn("oauth callback: state mismatch")
		s.redirectWithError(w, r, "Invalid state")
		return
	}

	accessToken, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.log.Error("oauth callback: code exchange failed", slog.String("error", err.Error()))
		s.redirectWithError(w, r, "Authentication failed")
		return
	}

	profile, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		s.log.Error("oauth callback: profile fetch failed", slog.String("error", err.Error()))
		s.redirectWithError(w, r, "Failed to fetch profile")
		return
	}

	email := profile.Email
	if email == "" {
		// Non-fatal: a login without email is still a login
		email, err = s.provider.FetchPrimaryEmail(ctx, accessToken)
		if err != nil {
			s.log.Warn("oauth callback: email list fetch failed", slog.String("error", err.Error()))
			email = ""
		}
	}

	user, err := s.upsertUser(ctx, profile, email)
	if err != nil {
		s.log.Error("oauth callback: user upsert failed",
			slog.Int64("github_id", profile.ID),
			slog.String("error", err.Error()),
		)
		s.redirectWithError(w, r, "Authentication failed")
		return
	}

	session, err := NewSession(user.ID, s.cfg.SessionTTL, r.UserAgent(), clientip.GetIP(r))
	if err != nil {
		s.log.Error("oauth callback: session creation failed", slog.String("error", err.Error()))
		s.redirectWithError(w, r, "Authentication failed")
		return
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.log.Error("oauth callback: session insert failed", slog.String("error", err.Error()))
		s.redirectWithError(w, r, "Authentication failed")
		return
	}

	s.cookies.Set(w, s.cfg.SessionCookieName, session.Token,
		cookie.WithExpires(session.ExpiresAt),
	)

	s.log.Info("user authenticated",
		slog.String("user_id", user.ID.String()),
		slog.String("github_username", user.GithubUsername),
	)

	if s.newsletter != nil && user.Email != nil {
		email := *user.Email
		async.Fire(s.log, "newsletter-subscribe", func(ctx context.Context) error {
			return s.newsletter.Subscribe(ctx, email, "github-login")
		})
	}

	// The SPA uses hash routing; the destination rides in the fragment
	http.Redirect(w, r, "/#"+dest, http.StatusFound)
}

func (s *Service) upsertUser(ctx context.Context, profile Profile, email string) (*User, error) {
	var emailPtr *string
	if email != "" {
		emailPtr = &email
	}

	now := time.Now()
	if err := s.users.Upsert(ctx, User{
		ID:              uuid.New(),
		GithubID:        profile.ID,
		GithubUsername:  profile.Login,
		GithubAvatarURL: profile.AvatarURL,
		Email:           emailPtr,
		CreatedAt:       now,
		LastLogin:       now,
	}); err != nil {
		return nil, err
	}

	// Re-read for the canonical id: the upsert may have matched an existing
	// row instead of inserting the one generated above.
	return s.users.GetByGithubID(ctx, profile.ID)
}

// handleMe reports the current user, or null without a valid session.
// Storage errors degrade to "no user" rather than surfacing.
func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	user := s.userFromRequest(r)

	isSubscribed := false
	if s.newsletter != nil && user != nil && user.Email != nil {
		subscribed, err := s.newsletter.IsSubscribed(r.Context(), *user.Email)
		if err != nil {
			s.log.Warn("subscription lookup failed", slog.String("error", err.Error()))
		} else {
			isSubscribed = subscribed
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"isSubscribed": isSubscribed,
	})
}

// handleLogout is best effort: the response always reports success and clears
// the cookie, whether or not a session existed or the delete worked.
func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := s.cookies.Get(r, s.cfg.SessionCookieName)
	if err == nil && token != "" {
		if err := s.sessions.Delete(r.Context(), token); err != nil {
			s.log.Error("logout: session delete failed", slog.String("error", err.Error()))
		}
	}

	s.cookies.Delete(w, s.cfg.SessionCookieName)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// userFromRequest resolves the session cookie to a user, or nil.
func (s *Service) userFromRequest(r *http.Request) *User {
	token, err := s.cookies.Get(r, s.cfg.SessionCookieName)
	if err != nil || token == "" {
		return nil
	}

	user, err := s.sessions.GetUserByToken(r.Context(), token)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			s.log.Error("session lookup failed", slog.String("error", err.Error()))
		}
		return nil
	}
	return user
}

func (s *Service) redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/#/?auth_error="+url.QueryEscape(msg), http.StatusFound)
}
