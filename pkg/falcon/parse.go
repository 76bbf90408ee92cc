package falcon

import (
	"context"

	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/pagination"
)

// CursorField selects which meta.pagination field carries the next cursor.
type CursorField int

const (
	// CursorNextToken reads meta.pagination.next_token (alerts).
	CursorNextToken CursorField = iota
	// CursorAfter reads meta.pagination.after (spotlight).
	CursorAfter
)

// DecodeEnvelope decodes a response body into an Envelope.
func DecodeEnvelope[T any](resp *client.Response) (*Envelope[T], error) {
	var env Envelope[T]
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ParsePage returns a parser for cursor paged responses.
func ParsePage[T any](field CursorField) pagination.ParseFunc[*client.Response, T] {
	return func(_ context.Context, resp *client.Response) (pagination.Page[T], error) {
		env, err := DecodeEnvelope[T](resp)
		if err != nil {
			return pagination.Page[T]{}, err
		}

		page := pagination.Page[T]{Items: env.Resources}
		if p := env.paging(); p != nil {
			page.Total = p.Total
			if field == CursorAfter {
				page.Cursor = p.After
			} else {
				page.Cursor = p.NextToken
			}
		}
		return page, nil
	}
}

// ParseOffsetPage returns a parser for offset paged responses.
func ParseOffsetPage[T any]() pagination.ParseFunc[*client.Response, T] {
	return func(_ context.Context, resp *client.Response) (pagination.Page[T], error) {
		env, err := DecodeEnvelope[T](resp)
		if err != nil {
			return pagination.Page[T]{}, err
		}

		page := pagination.Page[T]{Items: env.Resources}
		if p := env.paging(); p != nil {
			page.Total = p.Total
		}
		return page, nil
	}
}

func (e *Envelope[T]) paging() *Pagination {
	if e.Meta == nil {
		return nil
	}
	return e.Meta.Pagination
}
