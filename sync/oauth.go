// ABOUTME: OAuth configuration and token management for Strava, Whoop, and Google
// ABOUTME: Serves valid bearer tokens from the token store, refreshing when expired
package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/harperreed/fitsync/providers/strava"
	"github.com/harperreed/fitsync/providers/whoop"
)

// Connected services.
const (
	ServiceStrava = "strava"
	ServiceWhoop  = "whoop"
	ServiceGoogle = "google"
)

// Services lists every service that can be connected.
var Services = []string{ServiceStrava, ServiceWhoop, ServiceGoogle}

// ClientCredentials is an OAuth app registration.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

func (c ClientCredentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// CallbackPath is where a service's authorization code is delivered.
func CallbackPath(service string) string {
	return "/auth/" + service + "/callback"
}

// NewOAuthConfig creates the OAuth2 config for a service. Redirects land on
// baseURL + CallbackPath(service).
func NewOAuthConfig(service string, creds ClientCredentials, baseURL string) (*oauth2.Config, error) {
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  strings.TrimRight(baseURL, "/") + CallbackPath(service),
	}

	switch service {
	case ServiceStrava:
		cfg.Endpoint = oauth2.Endpoint{
			AuthURL:   strava.AuthURL,
			TokenURL:  strava.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}
		// Strava expects a single comma-separated scope value.
		cfg.Scopes = []string{"read,activity:read_all"}
	case ServiceWhoop:
		cfg.Endpoint = oauth2.Endpoint{
			AuthURL:   whoop.AuthURL,
			TokenURL:  whoop.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}
		cfg.Scopes = []string{"read:workout", "read:sleep", "read:recovery", "read:profile", "offline"}
	case ServiceGoogle:
		cfg.Endpoint = google.Endpoint
		cfg.Scopes = []string{"https://www.googleapis.com/auth/calendar"}
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
	return cfg, nil
}

// TokenStore persists tokens per service.
type TokenStore interface {
	Load(ctx context.Context, service string) (*oauth2.Token, error)
	Save(ctx context.Context, service string, tok *oauth2.Token) error
}

// OAuthTokenProvider implements TokenProvider over a TokenStore.
type OAuthTokenProvider struct {
	store   TokenStore
	configs map[string]*oauth2.Config

	// Serializes refreshes so a rotated refresh token is never used twice.
	mu gosync.Mutex
}

func NewOAuthTokenProvider(store TokenStore, configs map[string]*oauth2.Config) *OAuthTokenProvider {
	return &OAuthTokenProvider{store: store, configs: configs}
}

// ValidToken returns a non-expired access token, refreshing and persisting
// it when needed. Missing or unrefreshable credentials yield ErrNotConnected.
func (p *OAuthTokenProvider) ValidToken(ctx context.Context, service string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.store.Load(ctx, service)
	if err != nil {
		return "", err
	}
	if tok == nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%s: %w", service, ErrNotConnected)
	}
	if tok.Valid() {
		return tok.AccessToken, nil
	}

	cfg, ok := p.configs[service]
	if !ok || tok.RefreshToken == "" {
		return "", fmt.Errorf("%s token expired and cannot be refreshed: %w", service, ErrNotConnected)
	}

	fresh, err := cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return "", fmt.Errorf("%w: refreshing %s token: %v", ErrNotConnected, service, err)
	}
	if err := p.store.Save(ctx, service, fresh); err != nil {
		return "", fmt.Errorf("failed to persist refreshed %s token: %w", service, err)
	}
	return fresh.AccessToken, nil
}
