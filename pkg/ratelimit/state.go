// Package ratelimit tracks the API's X-RateLimit-* response headers and
// provides an optional client-side request throttle.
//
// The tracker only observes: it records the remaining request budget, exports
// it as a metric and warns when it runs low. Requests are never blocked on
// the server-reported budget.
package ratelimit

import (
	"time"
)

// Response headers carrying the rate limit budget.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "X-RateLimit-RetryAfter"
)

// Redis keys for shared rate limit state.
const (
	RedisKeyLimit      = "falcon:rate_limit:limit"
	RedisKeyRemaining  = "falcon:rate_limit:remaining"
	RedisKeyRetryAfter = "falcon:rate_limit:retry_after"
	RedisKeyLastUpdate = "falcon:rate_limit:last_update"

	// redisStateTTL matches the API's one minute budget window plus slack.
	redisStateTTL = 2 * time.Minute
)

// LowWatermarkRatio marks the budget as low when less than this share of
// the limit remains.
const LowWatermarkRatio = 0.1

// RateLimitState is the last observed request budget.
type RateLimitState struct {
	// Limit is the request budget per window (X-RateLimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the budget left in the current window (X-RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// RetryAfter is when the budget is replenished. Zero unless the API
	// sent X-RateLimit-RetryAfter.
	RetryAfter time.Time `json:"retry_after"`

	// LastUpdate is when the headers were observed.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is false while the budget is low.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsLow reports whether less than LowWatermarkRatio of the limit remains.
// Without a known limit only an exhausted budget counts as low.
func (s *RateLimitState) IsLow() bool {
	if s.Limit <= 0 {
		return s.Remaining <= 0
	}
	return float64(s.Remaining) < float64(s.Limit)*LowWatermarkRatio
}

// TimeUntilRetry returns the duration until RetryAfter.
// Returns 0 if unknown or already passed.
func (s *RateLimitState) TimeUntilRetry() time.Duration {
	if s.RetryAfter.IsZero() {
		return 0
	}
	duration := time.Until(s.RetryAfter)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on the remaining budget.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = !s.IsLow()
}
