package auth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// minRefreshInterval keeps the refresher from spinning when the clock or a
// very short token lifetime yields a non-positive wait.
const minRefreshInterval = time.Second

// Run keeps the cached token fresh in the background until ctx is cancelled,
// so foreground callers rarely block on the token endpoint. The owner starts
// it explicitly:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go tokens.Run(ctx)
//
// A failed refresh is logged and retried after RefreshCooldown.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info().
		Dur("early_refresh_window", m.cfg.EarlyRefreshWindow).
		Dur("cooldown", m.cfg.RefreshCooldown).
		Msg("Background token refresher started")

	timer := time.NewTimer(m.nextRefreshIn())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Background token refresher stopped")
			return
		case <-timer.C:
		}

		next := m.cfg.RefreshCooldown
		if err := m.refreshAhead(ctx); err != nil {
			if ctx.Err() != nil {
				m.logger.Info().Msg("Background token refresher stopped")
				return
			}
			m.logger.Warn().
				Err(err).
				Dur("retry_in", next).
				Msg("Background token refresh failed")
		} else {
			next = m.nextRefreshIn()
		}

		timer.Reset(next)
	}
}

// nextRefreshIn returns how long to sleep until EarlyRefreshWindow before the
// cached token turns stale. Zero when there is no token yet.
func (m *Manager) nextRefreshIn() time.Duration {
	tok := m.token.Load()
	if tok == nil {
		return 0
	}
	d := tok.StaleAt(m.cfg.RefreshBuffer).Sub(m.now()) - m.cfg.EarlyRefreshWindow
	if d < minRefreshInterval {
		return minRefreshInterval
	}
	return d
}

// refreshAhead renews the token even though it may still be usable, unless
// a foreground caller already replaced it with a fresher one.
func (m *Manager) refreshAhead(ctx context.Context) error {
	seen := m.token.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.token.Load(); cur != seen && cur.UsableAt(m.now(), m.cfg.RefreshBuffer) {
		return nil
	}
	_, err := m.refreshLocked(ctx)
	return err
}

// TokenSource adapts the manager to oauth2.TokenSource so an oauth2.Transport
// can inject the bearer header. ctx bounds token requests made by the source.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	value, err := s.m.GetToken(s.ctx)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken: value,
		TokenType:   "Bearer",
	}
	if cur := s.m.token.Load(); cur != nil && cur.Value == value {
		tok.Expiry = cur.StaleAt(s.m.cfg.RefreshBuffer)
	}
	return tok, nil
}
