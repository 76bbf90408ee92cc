package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/falcon-client/pkg/retry"
)

// DefaultChunkSize is used when ChunkConfig.ChunkSize is not positive.
const DefaultChunkSize = 100

// ChunkConfig configures FetchChunked.
type ChunkConfig struct {
	// ChunkSize is the number of ids per detail request.
	ChunkSize int

	// MaxConcurrency bounds the number of chunks in flight. Values below 2
	// fetch sequentially.
	MaxConcurrency int

	Retry retry.Config
}

// ChunkFunc fetches the detail records for one chunk of ids.
type ChunkFunc[T any] func(ctx context.Context, chunk []string) ([]T, error)

// Chunks splits ids into consecutive slices of at most size elements.
func Chunks(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// FetchChunked fetches ids chunk by chunk and concatenates the results in
// chunk order. If any chunk fails after retries, nil is returned with the
// error; no partial result is exposed.
func FetchChunked[T any](ctx context.Context, cfg ChunkConfig, ids []string, fetch ChunkFunc[T]) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}

	start := time.Now()
	chunks := Chunks(ids, cfg.ChunkSize)
	perChunk := make([][]T, len(chunks))

	fetchOne := func(ctx context.Context, i int) error {
		items, err := retry.OnFailure(ctx, "fetch_chunk", cfg.Retry, func(ctx context.Context) ([]T, error) {
			return fetch(ctx, chunks[i])
		})
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		perChunk[i] = items
		observePage("chunked", len(items))
		return nil
	}

	if cfg.MaxConcurrency > 1 && len(chunks) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.MaxConcurrency)
		for i := range chunks {
			g.Go(func() error { return fetchOne(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range chunks {
			if err := fetchOne(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	size := 0
	for _, items := range perChunk {
		size += len(items)
	}
	results := make([]T, 0, size)
	for _, items := range perChunk {
		results = append(results, items...)
	}

	log.Debug().
		Int("ids", len(ids)).
		Int("chunks", len(chunks)).
		Int("items", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Chunked fetch complete")

	return results, nil
}
