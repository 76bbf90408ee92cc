package falcon

import (
	"context"
	"fmt"

	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/pagination"
)

// Options tunes detail fetching.
type Options struct {
	// ChunkSize is the number of ids per detail request.
	ChunkSize int

	// MaxConcurrency bounds detail chunks in flight. Values below 2 fetch
	// sequentially.
	MaxConcurrency int
}

// DefaultOptions returns sequential fetching in chunks of 100.
func DefaultOptions() Options {
	return Options{
		ChunkSize:      pagination.DefaultChunkSize,
		MaxConcurrency: 1,
	}
}

func (o Options) chunkConfig(c *client.Client) pagination.ChunkConfig {
	return pagination.ChunkConfig{
		ChunkSize:      o.ChunkSize,
		MaxConcurrency: o.MaxConcurrency,
		Retry:          c.RetryConfig(),
	}
}

// getter issues single-attempt GETs; retries belong to the pagination engine.
func getter[K any](c *client.Client, build func(key K) string, log *responseLog) pagination.FetchFunc[K, *client.Response] {
	return func(ctx context.Context, key K) (*client.Response, error) {
		resp, err := c.Get(ctx, build(key))
		if err != nil {
			return nil, err
		}
		if log != nil {
			log.record(resp)
		}
		return resp, nil
	}
}

// fetchEntities fetches one chunk from an entities endpoint.
func fetchEntities[T any](ctx context.Context, c *client.Client, target string, log *responseLog) ([]T, error) {
	resp, err := c.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	if log != nil {
		log.record(resp)
	}
	env, err := DecodeEnvelope[T](resp)
	if err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	return env.Resources, nil
}
