package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/falcon-client/pkg/auth"
	"github.com/Sternrassler/falcon-client/pkg/retry"
)

// DefaultBaseURL is the US-1 cloud.
const DefaultBaseURL = "https://api.crowdstrike.com"

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API. Must be https.
	BaseURL string

	// OAuth2 client credentials
	ClientID     string
	ClientSecret string

	// Token lifecycle, see auth.Config
	RefreshBuffer      time.Duration
	EarlyRefreshWindow time.Duration

	// Retry applies to token requests, page requests and GetWithRetry.
	Retry retry.Config

	// Redis enables the entity cache and shares rate limit state. Optional.
	Redis *redis.Client

	// CacheTTL is how long cached detail records are served.
	CacheTTL time.Duration

	// RequestsPerSecond enables the client-side throttle when positive.
	RequestsPerSecond float64

	// User-Agent header
	UserAgent string

	// HTTPTimeout bounds each HTTP exchange, token requests included.
	HTTPTimeout time.Duration

	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// DefaultConfig returns a configuration for the default cloud.
func DefaultConfig(clientID, clientSecret string) Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		ClientID:           clientID,
		ClientSecret:       clientSecret,
		RefreshBuffer:      auth.DefaultRefreshBuffer,
		EarlyRefreshWindow: auth.DefaultEarlyRefreshWindow,
		Retry:              retry.DefaultConfig(),
		CacheTTL:           15 * time.Minute,
		UserAgent:          "falcon-client/1.0",
		HTTPTimeout:        30 * time.Second,
	}
}

// Validate checks the configuration without touching the network.
func (c Config) Validate() error {
	if err := c.authConfig().Validate(); err != nil {
		return err
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http timeout must not be negative", ErrConfigurationInvalid)
	}
	if c.Redis != nil && c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive when redis is configured (got %s)", ErrConfigurationInvalid, c.CacheTTL)
	}
	return nil
}

func (c Config) authConfig() auth.Config {
	cfg := auth.DefaultConfig(c.BaseURL, c.ClientID, c.ClientSecret)
	cfg.RefreshBuffer = c.RefreshBuffer
	cfg.EarlyRefreshWindow = c.EarlyRefreshWindow
	cfg.Retry = c.Retry
	return cfg
}
