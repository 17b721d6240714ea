package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havoptic/havoptic/svc/auth"
)

// fakeProvider scripts provider behavior per test.
type fakeProvider struct {
	exchangeErr   error
	profile       auth.Profile
	profileErr    error
	primaryEmail  string
	primaryErr    error
	exchangedCode string
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://github.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (string, error) {
	p.exchangedCode = code
	if p.exchangeErr != nil {
		return "", p.exchangeErr
	}
	return "tok", nil
}

func (p *fakeProvider) FetchProfile(ctx context.Context, accessToken string) (auth.Profile, error) {
	if p.profileErr != nil {
		return auth.Profile{}, p.profileErr
	}
	return p.profile, nil
}

func (p *fakeProvider) FetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	if p.primaryErr != nil {
		return "", p.primaryErr
	}
	return p.primaryEmail, nil
}

// fakeNewsletter records subscribe calls.
type fakeNewsletter struct {
	mu         sync.Mutex
	subscribed []string
	present    map[string]bool
}

func (n *fakeNewsletter) Subscribe(ctx context.Context, email, source string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribed = append(n.subscribed, email)
	return nil
}

func (n *fakeNewsletter) IsSubscribed(ctx context.Context, email string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.present[email], nil
}

func (n *fakeNewsletter) subscribeCalls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.subscribed))
	copy(out, n.subscribed)
	return out
}

func testConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.GithubClientID = "client-id"
	cfg.GithubClientSecret = "client-secret"
	cfg.CallbackURL = "https://havoptic.com/api/auth/github/callback"
	return cfg
}

func newTestService(t *testing.T, provider auth.Provider, newsletter auth.NewsletterService) (*auth.Service, *auth.MemoryStore) {
	t.Helper()
	store := auth.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := auth.NewService(testConfig(), provider, store, store, newsletter, log)
	return svc, store
}

func cookieByName(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestInitiate(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider, nil)
	handler := svc.Handle()

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/github?redirect=/tools/cursor", nil)
	handler.ServeHTTP(w, r)

	resp := w.Result()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	state := cookieByName(t, resp, "oauth_state")
	require.NotNil(t, state)
	assert.Len(t, state.Value, 64)
	assert.Equal(t, 600, state.MaxAge)
	assert.True(t, state.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, state.SameSite)

	redirect := cookieByName(t, resp, "oauth_redirect")
	require.NotNil(t, redirect)
	assert.Equal(t, url.QueryEscape("/tools/cursor"), redirect.Value)

	location := resp.Header.Get("Location")
	assert.Contains(t, location, "state="+state.Value)
}

// callbackRequest builds a callback request carrying the state cookies.
func callbackRequest(query, state, redirect string) *http.Request {
	r := httptest.NewRequest("GET", "/github/callback?"+query, nil)
	if state != "" {
		r.AddCookie(&http.Cookie{Name: "oauth_state", Value: state})
	}
	if redirect != "" {
		r.AddCookie(&http.Cookie{Name: "oauth_redirect", Value: redirect})
	}
	return r
}

func TestCallback_Success(t *testing.T) {
	provider := &fakeProvider{
		profile: auth.Profile{ID: 42, Login: "alice", AvatarURL: "https://a.example/alice.png", Email: "alice@example.com"},
	}
	newsletter := &fakeNewsletter{}
	svc, store := newTestService(t, provider, newsletter)
	handler := svc.Handle()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, callbackRequest("code=abc123&state=xyz", "xyz", url.QueryEscape("/tools/cursor")))

	resp := w.Result()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/#/tools/cursor", resp.Header.Get("Location"))
	assert.Equal(t, "abc123", provider.exchangedCode)

	session := cookieByName(t, resp, "havoptic_session")
	require.NotNil(t, session)
	assert.Len(t, session.Value, 64)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
	assert.True(t, session.Expires.After(time.Now()))

	user, err := store.GetByGithubID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.GithubUsername)
	require.NotNil(t, user.Email)
	assert.Equal(t, "alice@example.com", *user.Email)
	assert.Equal(t, 1, store.SessionCount())

	// Session token resolves to the user
	got, err := store.GetUserByToken(context.Background(), session.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Newsletter subscription dispatched in the background
	require.Eventually(t, func() bool {
		return len(newsletter.subscribeCalls()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "alice@example.com", newsletter.subscribeCalls()[0])

	// State cookies cleared
	state := cookieByName(t, resp, "oauth_state")
	require.NotNil(t, state)
	assert.Equal(t, -1, state.MaxAge)
}

func TestCallback_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		query    string
		state    string
		wantErr  string
	}{
		{
			name:     "provider error parameter",
			provider: &fakeProvider{},
			query:    "error=access_denied&error_description=The+user+denied+access",
			state:    "xyz",
			wantErr:  "The user denied access",
		},
		{
			name:     "missing code",
			provider: &fakeProvider{},
			query:    "state=xyz",
			state:    "xyz",
			wantErr:  "No authorization code received",
		},
		{
			name:     "state mismatch",
			provider: &fakeProvider{},
			query:    "code=abc&state=evil",
			state:    "xyz",
			wantErr:  "Invalid state",
		},
		{
			name:     "absent state cookie",
			provider: &fakeProvider{},
			query:    "code=abc&state=xyz",
			state:    "",
			wantErr:  "Invalid state",
		},
		{
			name:     "exchange failure",
			provider: &fakeProvider{exchangeErr: auth.ErrInvalidCode},
			query:    "code=abc&state=xyz",
			state:    "xyz",
			wantErr:  "Authentication failed",
		},
		{
			name:     "profile fetch failure",
			provider: &fakeProvider{profileErr: auth.ErrProfileFetch},
			query:    "code=abc&state=xyz",
			state:    "xyz",
			wantErr:  "Failed to fetch profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, tt.provider, nil)
			handler := svc.Handle()

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, callbackRequest(tt.query, tt.state, ""))

			resp := w.Result()
			require.Equal(t, http.StatusFound, resp.StatusCode)

			location := resp.Header.Get("Location")
			assert.Contains(t, location, "auth_error="+url.QueryEscape(tt.wantErr))

			// No session issued on any failure path
			assert.Nil(t, cookieByName(t, resp, "havoptic_session"))
			assert.Equal(t, 0, store.SessionCount())
		})
	}
}

func TestCallback_EmailFallback(t *testing.T) {
	t.Run("email list consulted when profile email hidden", func(t *testing.T) {
		provider := &fakeProvider{
			profile:      auth.Profile{ID: 7, Login: "bob"},
			primaryEmail: "bob@example.com",
		}
		svc, store := newTestService(t, provider, nil)

		w := httptest.NewRecorder()
		svc.Handle().ServeHTTP(w, callbackRequest("code=abc&state=xyz", "xyz", ""))
		require.Equal(t, http.StatusFound, w.Result().StatusCode)

		user, err := store.GetByGithubID(context.Background(), 7)
		require.NoError(t, err)
		require.NotNil(t, user.Email)
		assert.Equal(t, "bob@example.com", *user.Email)
	})

	t.Run("email list failure is non-fatal", func(t *testing.T) {
		provider := &fakeProvider{
			profile:    auth.Profile{ID: 7, Login: "bob"},
			primaryErr: errors.New("rate limited"),
		}
		svc, store := newTestService(t, provider, nil)

		w := httptest.NewRecorder()
		svc.Handle().ServeHTTP(w, callbackRequest("code=abc&state=xyz", "xyz", ""))

		resp := w.Result()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.NotContains(t, resp.Header.Get("Location"), "auth_error")
		require.NotNil(t, cookieByName(t, resp, "havoptic_session"))

		user, err := store.GetByGithubID(context.Background(), 7)
		require.NoError(t, err)
		assert.Nil(t, user.Email)
	})
}

func TestCallback_Reauthentication(t *testing.T) {
	provider := &fakeProvider{
		profile: auth.Profile{ID: 42, Login: "alice", Email: "alice@example.com"},
	}
	svc, store := newTestService(t, provider, nil)
	handler := svc.Handle()

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, callbackRequest("code=one&state=xyz", "xyz", ""))
	require.Equal(t, http.StatusFound, w1.Result().StatusCode)

	first, err := store.GetByGithubID(context.Background(), 42)
	require.NoError(t, err)

	// Second login: new username/avatar, email now hidden
	provider.profile = auth.Profile{ID: 42, Login: "alice-renamed", AvatarURL: "https://a.example/new.png"}
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, callbackRequest("code=two&state=xyz", "xyz", ""))
	require.Equal(t, http.StatusFound, w2.Result().StatusCode)

	assert.Equal(t, 1, store.UserCount(), "re-authentication must not create a second user row")

	second, err := store.GetByGithubID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice-renamed", second.GithubUsername)
	require.NotNil(t, second.Email, "previously stored email must survive a login without one")
	assert.Equal(t, "alice@example.com", *second.Email)
}

func TestMe(t *testing.T) {
	provider := &fakeProvider{
		profile: auth.Profile{ID: 42, Login: "alice", Email: "alice@example.com"},
	}
	newsletter := &fakeNewsletter{present: map[string]bool{"alice@example.com": true}}
	svc, _ := newTestService(t, provider, newsletter)
	handler := svc.Handle()

	t.Run("null without a session", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/me", nil))

		resp := w.Result()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			User         *auth.User `json:"user"`
			IsSubscribed bool       `json:"isSubscribed"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Nil(t, body.User)
		assert.False(t, body.IsSubscribed)
	})

	t.Run("returns user and subscription flag", func(t *testing.T) {
		// Log in to obtain a session cookie
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, callbackRequest("code=abc&state=xyz", "xyz", ""))
		session := cookieByName(t, w.Result(), "havoptic_session")
		require.NotNil(t, session)

		r := httptest.NewRequest("GET", "/me", nil)
		r.AddCookie(&http.Cookie{Name: "havoptic_session", Value: session.Value})
		w2 := httptest.NewRecorder()
		handler.ServeHTTP(w2, r)

		resp := w2.Result()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			User         *auth.User `json:"user"`
			IsSubscribed bool       `json:"isSubscribed"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.NotNil(t, body.User)
		assert.Equal(t, "alice", body.User.GithubUsername)
		assert.True(t, body.IsSubscribed)
	})

	t.Run("null for unknown token", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/me", nil)
		r.AddCookie(&http.Cookie{Name: "havoptic_session", Value: "deadbeef"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		var body struct {
			User *auth.User `json:"user"`
		}
		require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&body))
		assert.Nil(t, body.User)
	})
}

func TestLogout(t *testing.T) {
	provider := &fakeProvider{profile: auth.Profile{ID: 42, Login: "alice"}}

	t.Run("deletes session and clears cookie", func(t *testing.T) {
		svc, store := newTestService(t, provider, nil)
		handler := svc.Handle()

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, callbackRequest("code=abc&state=xyz", "xyz", ""))
		session := cookieByName(t, w.Result(), "havoptic_session")
		require.NotNil(t, session)
		require.Equal(t, 1, store.SessionCount())

		r := httptest.NewRequest("POST", "/logout", nil)
		r.AddCookie(&http.Cookie{Name: "havoptic_session", Value: session.Value})
		w2 := httptest.NewRecorder()
		handler.ServeHTTP(w2, r)

		resp := w2.Result()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, store.SessionCount())

		cleared := cookieByName(t, resp, "havoptic_session")
		require.NotNil(t, cleared)
		assert.Equal(t, -1, cleared.MaxAge)

		body, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"success":true}`, string(body))
	})

	t.Run("succeeds without a session", func(t *testing.T) {
		svc, _ := newTestService(t, provider, nil)

		w := httptest.NewRecorder()
		svc.Handle().ServeHTTP(w, httptest.NewRequest("POST", "/logout", nil))

		resp := w.Result()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"success":true}`, string(body))
	})
}

func TestCORS(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider, nil)
	handler := svc.Handle()

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/me", nil))

		resp := w.Result()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
		assert.Equal(t, "https://havoptic.com", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("headers on actual responses", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/me", nil))

		assert.Equal(t, "true", w.Result().Header.Get("Access-Control-Allow-Credentials"))
	})
}

func TestSessionExpiry(t *testing.T) {
	store := auth.NewMemoryStore()
	ctx := context.Background()

	u := auth.User{ID: uuid.New(), GithubID: 1, GithubUsername: "x", CreatedAt: time.Now(), LastLogin: time.Now()}
	require.NoError(t, store.Upsert(ctx, u))

	session, err := auth.NewSession(u.ID, -time.Minute, "", "")
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, session))

	_, err = store.GetUserByToken(ctx, session.Token)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		token, err := auth.GenerateToken()
		require.NoError(t, err)
		assert.Len(t, token, 64)
		_, dup := seen[token]
		assert.False(t, dup)
		seen[token] = struct{}{}
	}
}
