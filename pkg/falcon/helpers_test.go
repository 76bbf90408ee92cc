package falcon

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/falcon-client/internal/testutil"
	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/retry"
)

func newMock(t *testing.T) *testutil.MockFalcon {
	t.Helper()
	mock := testutil.NewMockFalcon()
	t.Cleanup(mock.Close)
	return mock
}

func newTestClient(t *testing.T, mock *testutil.MockFalcon, redisClient *redis.Client) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("client-id", "client-secret")
	cfg.BaseURL = mock.URL()
	cfg.Transport = mock.Client().Transport
	cfg.Retry = retry.Config{MaxAttempts: 3, Delay: time.Millisecond}
	cfg.Redis = redisClient

	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// localRedis connects to a local Redis and skips when none is running.
func localRedis(t *testing.T) *redis.Client {
	t.Helper()

	rc := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 14})
	ctx := context.Background()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	require.NoError(t, rc.FlushDB(ctx).Err())

	t.Cleanup(func() {
		rc.FlushDB(context.Background())
		rc.Close()
	})
	return rc
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%03d", prefix, i)
	}
	return out
}

func anys(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// deviceLookup serves a device for every id except those in missing.
func deviceLookup(missing ...string) func(id string) any {
	return func(id string) any {
		for _, m := range missing {
			if id == m {
				return nil
			}
		}
		return map[string]any{
			"device_id":    id,
			"hostname":     "host-" + id,
			"product_type": "1",
		}
	}
}
