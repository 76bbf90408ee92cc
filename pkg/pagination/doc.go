// Package pagination drains paged list endpoints into a single slice.
//
// Three strategies are provided, selected by the endpoint's paging style:
//
//   - FetchAllCursor follows an opaque cursor (next_token, after) until the
//     server returns none.
//   - FetchAllOffset advances an offset by a fixed page size and stops by
//     exactly one Termination rule chosen per call site.
//   - FetchChunked splits a known id list into consecutive chunks and fetches
//     detail records for each chunk, optionally in parallel.
//
// Every page request and every parse step is wrapped in retry.OnFailure.
// Results keep arrival order; duplicates across overlapping pages are not
// removed.
//
// Example usage:
//
//	ids, err := pagination.FetchAllCursor(ctx, retry.DefaultConfig(),
//		func(ctx context.Context, cursor string) (*client.Response, error) {
//			return c.Get(ctx, falcon.AlertQueryURL(c.BaseURL(), filter, cursor))
//		},
//		falcon.ParsePage[string](falcon.CursorNextToken),
//	)
//
// FetchAllCursor enforces no iteration cap: a server that never stops
// returning a cursor makes it loop until ctx is cancelled.
package pagination
