package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "falcon_rate_limit_remaining",
		Help: "Requests remaining in the current API rate limit window",
	})

	rateLimitLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "falcon_rate_limit_limit",
		Help: "Request budget of the API rate limit window",
	})

	rateLimitLowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "falcon_rate_limit_low_total",
		Help: "Total responses observed while the rate limit budget was low",
	})
)

// Tracker records the rate limit budget reported by the API.
//
// With a Redis client the state is shared between processes using the same
// credentials; without one it is kept in memory.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.RWMutex
	local *RateLimitState
}

// NewTracker creates a new rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState returns the last observed state. Before any headers were seen it
// returns a healthy state with unknown limit.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	if t.redis != nil {
		return t.getShared(ctx)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.local == nil {
		return defaultState(), nil
	}
	state := *t.local
	return &state, nil
}

// UpdateFromHeaders parses the X-RateLimit-* headers of a response.
// A response without X-RateLimit-Remaining leaves the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	var limit int
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	var retryAfter time.Time
	if retryStr := headers.Get(HeaderRetryAfter); retryStr != "" {
		epoch, err := strconv.ParseInt(retryStr, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderRetryAfter, err)
		}
		retryAfter = time.Unix(epoch, 0)
	}

	state := &RateLimitState{
		Limit:      limit,
		Remaining:  remain,
		RetryAfter: retryAfter,
		LastUpdate: time.Now(),
	}
	state.UpdateHealth()

	t.mu.Lock()
	t.local = state
	t.mu.Unlock()

	if t.redis != nil {
		if err := t.storeShared(ctx, state); err != nil {
			return err
		}
	}

	rateLimitRemaining.Set(float64(remain))
	if limit > 0 {
		rateLimitLimit.Set(float64(limit))
	}

	if state.IsLow() {
		rateLimitLowTotal.Inc()
		t.logger.Warn().
			Int("remaining", remain).
			Int("limit", limit).
			Dur("retry_in", state.TimeUntilRetry()).
			Msg("API rate limit budget low")
	} else {
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("API rate limit state updated")
	}

	return nil
}

func (t *Tracker) storeShared(ctx context.Context, state *RateLimitState) error {
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyLimit, state.Limit, redisStateTTL)
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, redisStateTTL)
	pipe.Set(ctx, RedisKeyRetryAfter, state.RetryAfter.Unix(), redisStateTTL)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.UnixMilli(), redisStateTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

func (t *Tracker) getShared(ctx context.Context) (*RateLimitState, error) {
	values, err := t.redis.MGet(ctx, RedisKeyLimit, RedisKeyRemaining, RedisKeyRetryAfter, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if values[1] == nil {
		t.logger.Debug().Msg("No rate limit state in Redis, returning default healthy state")
		return defaultState(), nil
	}

	ints := make([]int64, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("unexpected rate limit state type in redis")
		}
		if ints[i], err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, fmt.Errorf("parse rate limit state: %w", err)
		}
	}

	state := &RateLimitState{
		Limit:      int(ints[0]),
		Remaining:  int(ints[1]),
		LastUpdate: time.UnixMilli(ints[3]),
	}
	if ints[2] > 0 {
		state.RetryAfter = time.Unix(ints[2], 0)
	}
	state.UpdateHealth()

	return state, nil
}

func defaultState() *RateLimitState {
	return &RateLimitState{
		Remaining:  -1,
		LastUpdate: time.Now(),
		IsHealthy:  true,
	}
}
