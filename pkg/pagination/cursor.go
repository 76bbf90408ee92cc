package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/falcon-client/pkg/retry"
)

// FetchAllCursor fetches pages until the parsed cursor is absent or empty.
// The first request is made with an empty cursor.
//
// On failure the items accumulated so far are returned with the error.
func FetchAllCursor[R any, T any](
	ctx context.Context,
	cfg retry.Config,
	fetch FetchFunc[string, R],
	parse ParseFunc[R, T],
) ([]T, error) {
	var (
		results []T
		cursor  string
		pages   int
	)

	for {
		raw, err := retry.OnFailure(ctx, "fetch_page", cfg, func(ctx context.Context) (R, error) {
			return fetch(ctx, cursor)
		})
		if err != nil {
			return results, fmt.Errorf("fetch page %d: %w", pages+1, err)
		}

		page, err := retry.OnFailure(ctx, "parse_page", cfg, func(ctx context.Context) (Page[T], error) {
			return parse(ctx, raw)
		})
		if err != nil {
			return results, fmt.Errorf("parse page %d: %w", pages+1, err)
		}

		pages++
		results = append(results, page.Items...)
		observePage("cursor", len(page.Items))

		if page.Cursor == nil || *page.Cursor == "" {
			break
		}
		cursor = *page.Cursor
	}

	log.Debug().
		Int("pages", pages).
		Int("items", len(results)).
		Msg("Cursor pagination complete")

	return results, nil
}
