package auth

import "time"

// Config holds everything the auth flow needs. Cookie names and TTLs are
// configuration, not constants, so deployments can vary them without a build.
type Config struct {
	GithubClientID     string `env:"GITHUB_CLIENT_ID,required"`
	GithubClientSecret string `env:"GITHUB_CLIENT_SECRET,required"`

	// CallbackURL must exactly match the OAuth app's registered callback.
	CallbackURL string `env:"OAUTH_CALLBACK_URL,required"`

	// AllowedOrigin is the frontend origin echoed in CORS headers.
	AllowedOrigin string `env:"AUTH_ALLOWED_ORIGIN" envDefault:"https://havoptic.com"`

	SessionCookieName  string `env:"SESSION_COOKIE_NAME" envDefault:"havoptic_session"`
	StateCookieName    string `env:"OAUTH_STATE_COOKIE_NAME" envDefault:"oauth_state"`
	RedirectCookieName string `env:"OAUTH_REDIRECT_COOKIE_NAME" envDefault:"oauth_redirect"`

	// StateTTL bounds the window between initiation and callback.
	StateTTL time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// SecureCookies should be true on the production origin (HTTPS only).
	SecureCookies bool `env:"SESSION_SECURE_COOKIES" envDefault:"false"`
}

// DefaultConfig returns the configuration used when no environment is loaded,
// mirroring the envDefault tags.
func DefaultConfig() Config {
	return Config{
		AllowedOrigin:      "https://havoptic.com",
		SessionCookieName:  "havoptic_session",
		StateCookieName:    "oauth_state",
		RedirectCookieName: "oauth_redirect",
		StateTTL:           10 * time.Minute,
		SessionTTL:         30 * 24 * time.Hour,
	}
}
