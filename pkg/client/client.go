// Package client provides the HTTP client for the API: credential and
// base URL validation, bearer token injection, rate limit tracking and
// error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/Sternrassler/falcon-client/pkg/auth"
	"github.com/Sternrassler/falcon-client/pkg/cache"
	"github.com/Sternrassler/falcon-client/pkg/ratelimit"
	"github.com/Sternrassler/falcon-client/pkg/retry"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "falcon_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "falcon_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "falcon_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})

	apiLevelErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "falcon_api_level_errors_total",
		Help: "Total successful responses that carried an errors array, by endpoint",
	}, []string{"endpoint"})
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 64 << 20

// Response is a successful (2xx) API response with its body read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// APIErrors are entries of the body's errors array. A 2xx response may
	// carry them; they are reported here instead of failing the request.
	APIErrors []APIError
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client is the main API client.
type Client struct {
	httpClient  *http.Client
	tokens      *auth.Manager
	rateLimiter *ratelimit.Tracker
	throttle    *ratelimit.Throttle
	cache       *cache.Manager
	config      Config
	baseURL     string
	logger      zerolog.Logger
}

// New creates a new API client. The configuration is validated before any
// network call; an invalid one yields ErrConfigurationInvalid.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.With().Str("component", "falcon-client").Logger()

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	tokens, err := auth.NewManager(cfg.authConfig(), &http.Client{Transport: base, Timeout: timeout}, log.Logger)
	if err != nil {
		return nil, err
	}

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient:  &http.Client{Transport: base, Timeout: timeout},
		tokens:      tokens,
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		throttle:    ratelimit.NewThrottle(cfg.RequestsPerSecond, max(1, int(cfg.RequestsPerSecond))),
		cache:       cacheManager,
		config:      cfg,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		logger:      logger,
	}, nil
}

// Get performs a single authenticated GET of target, either a path with
// query relative to the base URL or an absolute URL built from BaseURL().
// It does not retry; see GetWithRetry.
//
// A non-2xx status is returned as *FalconError. A 401 also drops the cached
// token so the next request authenticates again.
func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	endpoint := c.endpointLabel(target)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	// A token refresh runs under the caller's ctx.
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(target), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &FalconError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &FalconError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	status := strconv.Itoa(resp.StatusCode)
	requestsTotal.WithLabelValues(endpoint, status).Inc()
	apiErrors := parseAPIErrors(body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}

		message := resp.Status
		if len(apiErrors) > 0 {
			message = FormatAPIErrors(apiErrors)
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Str("message", message).
			Msg("API request error")

		return nil, &FalconError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    message,
			Body:       body,
			APIErrors:  apiErrors,
		}
	}

	if len(apiErrors) > 0 {
		apiLevelErrorsTotal.WithLabelValues(endpoint).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("errors", FormatAPIErrors(apiErrors)).
			Msg("API returned errors in a successful response")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		APIErrors:  apiErrors,
	}, nil
}

// GetWithRetry is Get wrapped in retry.OnFailure with the configured policy.
func (c *Client) GetWithRetry(ctx context.Context, target string) (*Response, error) {
	return retry.OnFailure(ctx, "GET "+c.endpointLabel(target), c.config.Retry, func(ctx context.Context) (*Response, error) {
		return c.Get(ctx, target)
	})
}

// IsReachable reports whether a token can be obtained and a minimal
// authenticated request succeeds.
func (c *Client) IsReachable(ctx context.Context) bool {
	return c.tokens.IsReachable(ctx)
}

// URL resolves target against the base URL. Absolute URLs are returned
// unchanged.
func (c *Client) URL(target string) string {
	if strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "http://") {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return c.baseURL + target
}

// BaseURL returns the validated base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens returns the token manager. Start its background refresher with
// go c.Tokens().Run(ctx).
func (c *Client) Tokens() *auth.Manager {
	return c.tokens
}

// Cache returns the entity cache, or nil when no Redis client is configured.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// CacheTTL returns how long cached detail records are served.
func (c *Client) CacheTTL() time.Duration {
	return c.config.CacheTTL
}

// RateLimit returns the rate limit tracker.
func (c *Client) RateLimit() *ratelimit.Tracker {
	return c.rateLimiter
}

// RetryConfig returns the configured retry policy.
func (c *Client) RetryConfig() retry.Config {
	return c.config.Retry
}

// Close releases idle connections. The Redis client is owned by the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// endpointLabel reduces target to its path so metrics stay low-cardinality.
func (c *Client) endpointLabel(target string) string {
	target = strings.TrimPrefix(target, c.baseURL)
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
