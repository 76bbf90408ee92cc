package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/falcon-client/pkg/retry"
)

// Termination selects when FetchAllOffset stops.
type Termination int

const (
	// UntilTotal stops once the last known total is reached, or on an empty page.
	UntilTotal Termination = iota

	// UntilShortPage stops on the first page holding fewer than PageSize items.
	UntilShortPage
)

func (t Termination) String() string {
	switch t {
	case UntilTotal:
		return "until_total"
	case UntilShortPage:
		return "until_short_page"
	default:
		return fmt.Sprintf("termination(%d)", int(t))
	}
}

// DefaultPageSize is used when OffsetConfig.PageSize is not positive.
const DefaultPageSize = 100

// OffsetConfig configures FetchAllOffset.
type OffsetConfig struct {
	PageSize    int
	Termination Termination
	Retry       retry.Config
}

// FetchAllOffset fetches pages at offset 0, PageSize, 2*PageSize, ...
//
// With UntilTotal a page without a total keeps the last known one; while no
// total has been seen the loop continues until an empty page.
// On failure the items accumulated so far are returned with the error.
func FetchAllOffset[R any, T any](
	ctx context.Context,
	cfg OffsetConfig,
	fetch FetchFunc[int, R],
	parse ParseFunc[R, T],
) ([]T, error) {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var (
		results []T
		offset  int
		total   *int
		pages   int
	)

	for {
		raw, err := retry.OnFailure(ctx, "fetch_page", cfg.Retry, func(ctx context.Context) (R, error) {
			return fetch(ctx, offset)
		})
		if err != nil {
			return results, fmt.Errorf("fetch offset %d: %w", offset, err)
		}

		page, err := retry.OnFailure(ctx, "parse_page", cfg.Retry, func(ctx context.Context) (Page[T], error) {
			return parse(ctx, raw)
		})
		if err != nil {
			return results, fmt.Errorf("parse offset %d: %w", offset, err)
		}

		pages++
		results = append(results, page.Items...)
		observePage("offset", len(page.Items))
		offset += pageSize

		if page.Total != nil {
			total = page.Total
		}

		if done(cfg.Termination, len(page.Items), pageSize, offset, total) {
			break
		}
	}

	ev := log.Debug().
		Int("pages", pages).
		Int("items", len(results)).
		Stringer("termination", cfg.Termination)
	if total != nil {
		ev = ev.Int("total", *total)
	}
	ev.Msg("Offset pagination complete")

	return results, nil
}

func done(rule Termination, items, pageSize, offset int, total *int) bool {
	if rule == UntilShortPage {
		return items < pageSize
	}
	if items == 0 {
		return true
	}
	return total != nil && offset >= *total
}
