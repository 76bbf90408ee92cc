package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "falcon_throttle_wait_seconds",
	Help:    "Time requests spent waiting on the client-side throttle",
	Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

// Throttle spaces out outgoing requests with a token bucket.
// A nil *Throttle never waits.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle returns a throttle allowing requestsPerSecond with the given
// burst. It returns nil (no throttling) when requestsPerSecond is not positive.
func NewThrottle(requestsPerSecond float64, burst int) *Throttle {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}
	throttleWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}
