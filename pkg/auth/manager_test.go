package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/falcon-client/internal/testutil"
	"github.com/Sternrassler/falcon-client/pkg/retry"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig(baseURL, "client-id", "client-secret")
	cfg.Retry = retry.Config{MaxAttempts: 3, Delay: time.Millisecond}
	return cfg
}

func newTestManager(t *testing.T, mock *testutil.MockFalcon, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg, mock.Client(), zerolog.Nop())
	require.NoError(t, err)
	return m
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "http base url", mutate: func(c *Config) { c.BaseURL = "http://api.example.com" }, wantErr: true},
		{name: "empty base url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: true},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "/oauth2" }, wantErr: true},
		{name: "empty client id", mutate: func(c *Config) { c.ClientID = " " }, wantErr: true},
		{name: "empty client secret", mutate: func(c *Config) { c.ClientSecret = "" }, wantErr: true},
		{name: "negative buffer", mutate: func(c *Config) { c.RefreshBuffer = -time.Second }, wantErr: true},
		{name: "early window exceeds buffer", mutate: func(c *Config) { c.EarlyRefreshWindow = 2 * time.Minute }, wantErr: true},
		{name: "buffer too large for ttl", mutate: func(c *Config) { c.RefreshBuffer = 150 * time.Second }, wantErr: true},
		{name: "buffer just under half the ttl", mutate: func(c *Config) { c.RefreshBuffer = 149 * time.Second }},
		{name: "zero windows", mutate: func(c *Config) { c.RefreshBuffer = 0; c.EarlyRefreshWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("https://api.example.com", "id", "secret")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfigurationInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewManager_InvalidConfigMakesNoRequest(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()

	cfg := testConfig(mock.URL())
	cfg.ClientSecret = ""

	_, err := NewManager(cfg, mock.Client(), zerolog.Nop())
	require.ErrorIs(t, err, ErrConfigurationInvalid)
	assert.Contains(t, err.Error(), "client secret is required")
	assert.Equal(t, 0, mock.TokenRequestCount())
}

func TestGetToken_ReusesCachedToken(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()

	m := newTestManager(t, mock, testConfig(mock.URL()))
	ctx := context.Background()

	first, err := m.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.TokenValue(1), first)

	for i := 0; i < 5; i++ {
		tok, err := m.GetToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, tok)
	}

	assert.Equal(t, 1, mock.TokenRequestCount())

	form := mock.LastTokenForm()
	assert.Equal(t, "client-id", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))
}

func TestGetToken_RefreshesOnceStale(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()

	m := newTestManager(t, mock, testConfig(mock.URL()))
	now := time.Now()
	m.now = func() time.Time { return now }

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)

	// 1799s lifetime minus two 60s buffers leaves 1679s of use.
	now = now.Add(1600 * time.Second)
	tok, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.TokenValue(1), tok)
	assert.Equal(t, 1, mock.TokenRequestCount())

	now = now.Add(100 * time.Second)
	tok, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.TokenValue(2), tok)
	assert.Equal(t, 2, mock.TokenRequestCount())
}

func TestGetToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()
	mock.SetTokenBehavior(testutil.TokenBehavior{ExpiresIn: 1799, Delay: 50 * time.Millisecond})

	m := newTestManager(t, mock, testConfig(mock.URL()))

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.GetToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, testutil.TokenValue(1), tokens[i])
	}
	assert.Equal(t, 1, mock.TokenRequestCount())
}

func TestGetToken_DefaultTTLWhenExpiresInMissing(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()
	mock.SetTokenBehavior(testutil.TokenBehavior{ExpiresIn: 0})

	m := newTestManager(t, mock, testConfig(mock.URL()))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)

	cur := m.Current()
	require.NotNil(t, cur)
	assert.Equal(t, now.Add(DefaultTTL-DefaultRefreshBuffer), cur.ExpiresAt)
}

func TestGetToken_EmptyTokenFailsAfterRetries(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()
	mock.SetTokenBehavior(testutil.TokenBehavior{
		StatusCode: 201,
		Body:       `{"access_token":"","expires_in":1799}`,
	})

	m := newTestManager(t, mock, testConfig(mock.URL()))

	_, err := m.GetToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, ErrNoAccessToken)
	assert.ErrorIs(t, err, retry.ErrRetryExhausted)
	assert.Equal(t, 3, mock.TokenRequestCount())
	assert.Nil(t, m.Current())
}

func TestGetToken_RecoversFromTransientFailures(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()
	mock.FailTokenRequests(2)

	m := newTestManager(t, mock, testConfig(mock.URL()))

	tok, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.TokenValue(3), tok)
	assert.Equal(t, 3, mock.TokenRequestCount())
}

func TestGetToken_ErrorsArrayIsNotFatal(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()
	mock.SetTokenBehavior(testutil.TokenBehavior{
		StatusCode: 201,
		Body:       `{"access_token":"abc","expires_in":1799,"errors":[{"code":0,"message":"deprecated scope"}]}`,
	})

	m := newTestManager(t, mock, testConfig(mock.URL()))

	tok, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	assert.Equal(t, 1, mock.TokenRequestCount())
}

func TestInvalidate(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()

	m := newTestManager(t, mock, testConfig(mock.URL()))

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m.Current())

	m.Invalidate()
	assert.Nil(t, m.Current())

	tok, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.TokenValue(2), tok)
}

func TestIsReachable(t *testing.T) {
	t.Run("probe succeeds", func(t *testing.T) {
		mock := testutil.NewMockFalcon()
		defer mock.Close()

		m := newTestManager(t, mock, testConfig(mock.URL()))
		assert.True(t, m.IsReachable(context.Background()))
		assert.Equal(t, "Bearer "+testutil.TokenValue(1), mock.LastAuthorization())
		assert.Equal(t, 1, mock.RequestCount("/devices/queries/devices/v1"))
	})

	t.Run("probe rejected", func(t *testing.T) {
		mock := testutil.NewMockFalcon()
		defer mock.Close()
		mock.SetResponse("/devices/queries/devices/v1", testutil.MockResponse{StatusCode: 403})

		m := newTestManager(t, mock, testConfig(mock.URL()))
		assert.False(t, m.IsReachable(context.Background()))
	})

	t.Run("token unavailable", func(t *testing.T) {
		mock := testutil.NewMockFalcon()
		defer mock.Close()
		mock.FailTokenRequests(10)

		m := newTestManager(t, mock, testConfig(mock.URL()))
		assert.False(t, m.IsReachable(context.Background()))
		assert.Equal(t, 0, mock.RequestCount("/devices/queries/devices/v1"))
	})
}

func TestRun_RefreshesAheadAndStops(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()
	mock.SetTokenBehavior(testutil.TokenBehavior{ExpiresIn: 0})

	cfg := testConfig(mock.URL())
	cfg.RefreshBuffer = 0
	cfg.EarlyRefreshWindow = 0
	cfg.DefaultTTL = time.Second
	m := newTestManager(t, mock, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return mock.TokenRequestCount() >= 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRefreshAhead_SkipsWhenTokenAlreadyReplaced(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()

	m := newTestManager(t, mock, testConfig(mock.URL()))

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.refreshAhead(context.Background()))
	assert.Equal(t, 2, mock.TokenRequestCount())
	assert.Equal(t, testutil.TokenValue(2), m.Current().Value)
}

func TestNextRefreshIn(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()

	m := newTestManager(t, mock, testConfig(mock.URL()))
	now := time.Now()
	m.now = func() time.Time { return now }

	assert.Equal(t, time.Duration(0), m.nextRefreshIn())

	m.token.Store(&Token{Value: "x", ExpiresAt: now.Add(5 * time.Minute)})
	// stale at +4m, early window 10s
	assert.Equal(t, 4*time.Minute-10*time.Second, m.nextRefreshIn())

	m.token.Store(&Token{Value: "x", ExpiresAt: now})
	assert.Equal(t, minRefreshInterval, m.nextRefreshIn())
}

func TestTokenSource(t *testing.T) {
	mock := testutil.NewMockFalcon()
	defer mock.Close()

	m := newTestManager(t, mock, testConfig(mock.URL()))

	tok, err := m.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, testutil.TokenValue(1), tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.False(t, tok.Expiry.IsZero())
	assert.True(t, tok.Valid())
}
