package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/falcon-client/pkg/retry"
)

// Prometheus metrics for token management.
var (
	tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "falcon_token_refreshes_total",
		Help: "Total token refreshes by result",
	}, []string{"result"})

	tokenRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "falcon_token_refresh_duration_seconds",
		Help:    "Token refresh duration in seconds including retries",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	})

	tokenExpiryTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "falcon_token_expiry_timestamp_seconds",
		Help: "Unix time at which the cached token stops being handed out",
	})
)

// maxTokenResponseBytes bounds how much of a token response is read.
const maxTokenResponseBytes = 1 << 20

// Doer executes a single HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Manager owns the cached bearer token.
//
// Readers take the lock-free fast path through an atomic pointer. Refreshes
// are serialized by mu and re-check the cache after acquiring it, so any
// number of concurrent callers hitting a stale cache cause one token request.
type Manager struct {
	cfg        Config
	httpClient Doer
	logger     zerolog.Logger

	token atomic.Pointer[Token]
	mu    sync.Mutex

	now func() time.Time
}

// NewManager creates a token manager. The configuration is validated before
// anything else happens.
func NewManager(cfg Config, httpClient Doer, logger zerolog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Manager{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "token-manager").Logger(),
		now:        time.Now,
	}, nil
}

// GetToken returns a bearer token that stays valid for at least the refresh
// buffer. A cached token is returned without I/O; otherwise the token endpoint
// is called (with retries).
func (m *Manager) GetToken(ctx context.Context) (string, error) {
	if tok := m.cached(); tok != nil {
		return tok.Value, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if tok := m.cached(); tok != nil {
		return tok.Value, nil
	}

	tok, err := m.refreshLocked(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// Current returns the cached token if it is still usable, nil otherwise.
func (m *Manager) Current() *Token {
	return m.cached()
}

// Invalidate drops the cached token so the next GetToken re-authenticates.
func (m *Manager) Invalidate() {
	m.token.Store(nil)
	m.logger.Debug().Msg("Cached token invalidated")
}

// IsReachable obtains a token and issues a minimal authenticated GET.
// Errors are logged and reported as false.
func (m *Manager) IsReachable(ctx context.Context) bool {
	token, err := m.GetToken(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("API not reachable: token unavailable")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.probeURL(), nil)
	if err != nil {
		m.logger.Warn().Err(err).Msg("API not reachable: build probe request")
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Warn().Err(err).Msg("API not reachable: probe request failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.Warn().Int("status", resp.StatusCode).Msg("API not reachable: probe returned error status")
		return false
	}
	return true
}

func (m *Manager) cached() *Token {
	tok := m.token.Load()
	if tok.UsableAt(m.now(), m.cfg.RefreshBuffer) {
		return tok
	}
	return nil
}

// refreshLocked requests a new token and publishes it. mu must be held.
func (m *Manager) refreshLocked(ctx context.Context) (*Token, error) {
	start := time.Now()
	tok, err := retry.OnFailure(ctx, "oauth2_token", m.cfg.Retry, m.requestToken)
	tokenRefreshDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		tokenRefreshesTotal.WithLabelValues("failure").Inc()
		m.logger.Error().Err(err).Msg("Token refresh failed")
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	m.token.Store(tok)
	tokenRefreshesTotal.WithLabelValues("success").Inc()
	tokenExpiryTimestamp.Set(float64(tok.StaleAt(m.cfg.RefreshBuffer).Unix()))

	m.logger.Info().
		Time("expires_at", tok.ExpiresAt).
		Dur("refresh_duration", time.Since(start)).
		Msg("Fetched new access token")

	return tok, nil
}

// requestToken performs a single token request.
func (m *Manager) requestToken(ctx context.Context) (*Token, error) {
	form := url.Values{
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	var payload tokenResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode token response: %w", err)
		}
	}

	if len(payload.Errors) > 0 {
		m.logger.Warn().
			Int("status", resp.StatusCode).
			Int("error_count", len(payload.Errors)).
			RawJSON("errors", mustJSON(payload.Errors)).
			Msg("Token endpoint reported errors")
	}

	if payload.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned status %d: %w", resp.StatusCode, ErrNoAccessToken)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	now := m.now()
	return &Token{
		Value:     payload.AccessToken,
		ExpiresAt: now.Add(payload.lifetime(m.cfg.DefaultTTL) - m.cfg.RefreshBuffer),
	}, nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
