package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultGithubAPIBaseURL = "https://api.github.com"

// GithubProvider implements Provider for GitHub's authorization code flow.
// The code-for-token exchange happens server to server; the access token
// never reaches the browser.
type GithubProvider struct {
	config     *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// GithubOption configures GithubProvider construction.
type GithubOption func(*GithubProvider)

// WithAPIBaseURL overrides the GitHub API base URL. Test use.
func WithAPIBaseURL(baseURL string) GithubOption {
	return func(p *GithubProvider) {
		p.apiBaseURL = baseURL
	}
}

// WithEndpoint overrides the OAuth endpoint. Test use.
func WithEndpoint(endpoint oauth2.Endpoint) GithubOption {
	return func(p *GithubProvider) {
		p.config.Endpoint = endpoint
	}
}

// WithHTTPClient sets the client used for API calls.
func WithHTTPClient(client *http.Client) GithubOption {
	return func(p *GithubProvider) {
		p.httpClient = client
	}
}

// NewGithubProvider creates a provider for the registered OAuth app.
// Scopes: read:user for the profile, user:email for the email-list fallback.
func NewGithubProvider(clientID, clientSecret, callbackURL string, opts ...GithubOption) *GithubProvider {
	p := &GithubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBaseURL: defaultGithubAPIBaseURL,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *GithubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GithubProvider) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	return token.AccessToken, nil
}

// githubUser is the slice of GitHub's /user response we care about.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func (p *GithubProvider) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	var user githubUser
	if err := p.apiGet(ctx, accessToken, "/user", &user); err != nil {
		return Profile{}, err
	}

	return Profile{
		ID:        user.ID,
		Login:     user.Login,
		AvatarURL: user.AvatarURL,
		Email:     user.Email,
	}, nil
}

// githubEmail is an entry from GitHub's /user/emails response.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *GithubProvider) FetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmail
	if err := p.apiGet(ctx, accessToken, "/user/emails", &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func (p *GithubProvider) apiGet(ctx context.Context, accessToken, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrProfileFetch, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrProfileFetch, path, err)
	}
	return nil
}
