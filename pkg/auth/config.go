// Package auth manages the OAuth2 client-credentials bearer token used by
// every authenticated API request.
package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/falcon-client/pkg/retry"
)

var (
	// ErrConfigurationInvalid is returned when the base URL or credentials are unusable.
	// It is raised before any network call and is never retried.
	ErrConfigurationInvalid = errors.New("configuration invalid")

	// ErrAuthenticationFailed is returned when no token could be obtained from the
	// token endpoint after exhausting retries, or the response carried no token.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNoAccessToken is wrapped when the token endpoint answered without an access_token.
	ErrNoAccessToken = errors.New("no access token returned")
)

// Token defaults.
const (
	DefaultRefreshBuffer      = 60 * time.Second
	DefaultEarlyRefreshWindow = 10 * time.Second
	DefaultTTL                = 300 * time.Second
	DefaultRefreshCooldown    = 60 * time.Second
	DefaultProbePath          = "/devices/queries/devices/v1?limit=1"

	tokenPath = "/oauth2/token"
)

// Config holds the token manager configuration.
type Config struct {
	// BaseURL of the API, e.g. "https://api.crowdstrike.com". Must be https.
	BaseURL string

	// OAuth2 client credentials
	ClientID     string
	ClientSecret string

	// RefreshBuffer is subtracted from the nominal expiry so a token handed
	// out stays valid for at least one typical request.
	RefreshBuffer time.Duration

	// EarlyRefreshWindow is how long before a token turns stale the
	// background refresher renews it.
	EarlyRefreshWindow time.Duration

	// DefaultTTL is the lower bound for a token's lifetime when expires_in
	// is missing, zero or shorter.
	DefaultTTL time.Duration

	// RefreshCooldown is the wait after a failed background refresh.
	RefreshCooldown time.Duration

	// ProbePath is the authenticated GET issued by IsReachable.
	ProbePath string

	// Retry applies to the token request.
	Retry retry.Config
}

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig(baseURL, clientID, clientSecret string) Config {
	return Config{
		BaseURL:            baseURL,
		ClientID:           clientID,
		ClientSecret:       clientSecret,
		RefreshBuffer:      DefaultRefreshBuffer,
		EarlyRefreshWindow: DefaultEarlyRefreshWindow,
		DefaultTTL:         DefaultTTL,
		RefreshCooldown:    DefaultRefreshCooldown,
		ProbePath:          DefaultProbePath,
		Retry:              retry.DefaultConfig(),
	}
}

// Validate checks the configuration without touching the network.
func (c Config) Validate() error {
	if err := ValidateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client id is required", ErrConfigurationInvalid)
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("%w: client secret is required", ErrConfigurationInvalid)
	}
	if c.RefreshBuffer < 0 || c.EarlyRefreshWindow < 0 {
		return fmt.Errorf("%w: refresh windows must not be negative", ErrConfigurationInvalid)
	}
	if c.EarlyRefreshWindow > c.RefreshBuffer {
		return fmt.Errorf("%w: early refresh window (%s) must not exceed refresh buffer (%s)",
			ErrConfigurationInvalid, c.EarlyRefreshWindow, c.RefreshBuffer)
	}
	if 2*c.RefreshBuffer >= c.DefaultTTL {
		return fmt.Errorf("%w: refresh buffer (%s) must be less than half the default ttl (%s)",
			ErrConfigurationInvalid, c.RefreshBuffer, c.DefaultTTL)
	}
	return nil
}

// ValidateBaseURL fails unless raw is a non-empty absolute https URL.
func ValidateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: base url is required", ErrConfigurationInvalid)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: parse base url: %v", ErrConfigurationInvalid, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: base url must be https (got %q)", ErrConfigurationInvalid, raw)
	}
	return nil
}

func (c Config) tokenURL() string {
	return strings.TrimRight(c.BaseURL, "/") + tokenPath
}

func (c Config) probeURL() string {
	path := c.ProbePath
	if path == "" {
		path = DefaultProbePath
	}
	return strings.TrimRight(c.BaseURL, "/") + path
}
