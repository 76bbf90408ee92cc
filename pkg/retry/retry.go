// Package retry wraps an operation with bounded retry-on-failure and a fixed delay.
//
// The wrapper is deliberately simple: every failure is retried the same way
// (transport errors, non-2xx responses and parse errors alike), there is no
// exponential backoff and no jitter. The terminal error of the last attempt
// is surfaced to the caller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "falcon_retries_total",
		Help: "Total number of retry attempts by operation",
	}, []string{"operation"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "falcon_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by operation",
	}, []string{"operation"})
)

var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a retry delay.
	ErrContextCancelled = errors.New("context cancelled")
)

const (
	// DefaultMaxAttempts is the number of attempts including the first call.
	DefaultMaxAttempts = 3

	// DefaultDelay is the fixed wait between attempts.
	DefaultDelay = 500 * time.Millisecond
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the initial call).
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the fixed wait between two attempts.
	Delay time.Duration
}

// DefaultConfig returns the default retry configuration (3 attempts, 500ms).
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
	}
}

// Operation is a single attempt of a retried call.
type Operation[T any] func(ctx context.Context) (T, error)

// OnFailure invokes op until it succeeds or cfg.MaxAttempts attempts were made.
// Between attempts it waits cfg.Delay. The name labels metrics and logs.
//
// When every attempt fails the returned error wraps both ErrRetryExhausted and
// the last attempt's error, so errors.Is and errors.As work on either.
func OnFailure[T any](ctx context.Context, name string, cfg Config, op Operation[T]) (T, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Str("operation", name).
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return result, nil
		}

		lastErr = err

		if attempt == maxAttempts {
			break
		}

		retriesTotal.WithLabelValues(name).Inc()

		log.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("delay", cfg.Delay).
			Msg("Operation failed, retrying after delay")

		if err := wait(ctx, cfg.Delay); err != nil {
			return zero, fmt.Errorf("%w: %w (last error: %w)", ErrContextCancelled, err, lastErr)
		}
	}

	retryExhaustedTotal.WithLabelValues(name).Inc()
	log.Warn().
		Err(lastErr).
		Str("operation", name).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return zero, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrRetryExhausted, maxAttempts, lastErr)
}

// Do is OnFailure for operations that only return an error.
func Do(ctx context.Context, name string, cfg Config, fn func(ctx context.Context) error) error {
	_, err := OnFailure(ctx, name, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
